package actorutil

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"

	"computherm2mqtt/internal/core/domain"
	"computherm2mqtt/internal/mqtt"
	"computherm2mqtt/pkg/bseries"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an MQTT command onto a thermostat command
// request. A nil, nil return means the topic matched no known entity.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch cmd.Command {
	case mqtt.COMMAND_CLIMATE_TEMPERATURE:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		return domain.SetTargetTemperatureRequest{
			ThermostatCommandRequestMixIn: thermostatCommand(cmd.DeviceId),
			Celsius:                       value,
		}, nil
	case mqtt.COMMAND_CLIMATE_MODE:
		mode := strings.ToLower(cmd.Payload)
		switch mode {
		case domain.HVAC_MODE_HEAT, domain.HVAC_MODE_COOL, domain.HVAC_MODE_OFF:
		default:
			return nil, fmt.Errorf("unknown climate mode %q", cmd.Payload)
		}
		return domain.SetHVACModeRequest{
			ThermostatCommandRequestMixIn: thermostatCommand(cmd.DeviceId),
			HVACMode:                      mode,
		}, nil
	case mqtt.COMMAND_SELECT:
		return selectCommandToRequest(cmd)
	}
	return nil, nil
}

func selectCommandToRequest(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	sep := strings.LastIndex(cmd.DeviceId, "_")
	if sep <= 0 {
		return nil, nil
	}
	serial, suffix := cmd.DeviceId[:sep], cmd.DeviceId[sep+1:]
	value := strings.ToLower(cmd.Payload)
	switch suffix {
	case domain.SELECT_SUFFIX_MODE:
		switch value {
		case bseries.ModeSchedule, bseries.ModeManual, bseries.ModeOff:
		default:
			return nil, fmt.Errorf("unknown mode option %q", cmd.Payload)
		}
		return domain.SetModeRequest{
			ThermostatCommandRequestMixIn: thermostatCommand(serial),
			Mode:                          value,
		}, nil
	case domain.SELECT_SUFFIX_FUNCTION:
		switch value {
		case bseries.FunctionHeating, bseries.FunctionCooling:
		default:
			return nil, fmt.Errorf("unknown function option %q", cmd.Payload)
		}
		return domain.SetFunctionRequest{
			ThermostatCommandRequestMixIn: thermostatCommand(serial),
			Function:                      value,
		}, nil
	}
	return nil, nil
}

func thermostatCommand(serial string) domain.ThermostatCommandRequestMixIn {
	return domain.ThermostatCommandRequestMixIn{
		SerialNumber: serial,
	}
}
