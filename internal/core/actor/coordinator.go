package actor

import (
	"fmt"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"

	adactor "computherm2mqtt/internal/adapter/actor"
	"computherm2mqtt/internal/config"
	"computherm2mqtt/internal/core/domain"
	"computherm2mqtt/internal/core/events"
	"computherm2mqtt/internal/core/port"
	"computherm2mqtt/internal/metrics"
	. "computherm2mqtt/internal/util/actorutil"
	"computherm2mqtt/pkg/bseries"
)

// cloud requests run as background tasks with their own 30s timeout, so the
// future has to outlive that
const coordinatorRequestTimeout = 35 * time.Second

// CoordinatorActor owns the device registry and the per-device state cache.
// It fetches the registry through the cloud actor, spawns the stream actor
// for real-time updates, publishes state changes on the eventstream and
// translates thermostat commands into cloud API calls.
type CoordinatorActor struct {
	behavior actor.Behavior
	stash    *Stash

	config        *config.Config
	cloudActor    *actor.PID
	streamActor   *actor.PID
	streamFactory port.StreamFactory
	eventStream   *eventstream.EventStream

	devices         map[string]*trackedDevice
	streamConnected bool

	logger *zap.Logger
}

// trackedDevice pairs a registry entry with its state cache, keyed by
// lowercase serial number.
type trackedDevice struct {
	device     bseries.Device
	state      domain.DeviceState
	discovered bool
}

func NewCoordinatorActor(config *config.Config, cloudActor *actor.PID, streamFactory port.StreamFactory, eventStream *eventstream.EventStream, logger *zap.Logger) *CoordinatorActor {
	act := &CoordinatorActor{
		config:        config,
		cloudActor:    cloudActor,
		streamFactory: streamFactory,
		eventStream:   eventStream,
		devices:       map[string]*trackedDevice{},
		behavior:      actor.NewBehavior(),
		stash:         &Stash{},
		logger:        ActorLogger(domain.ACTOR_ID_COORDINATOR, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *CoordinatorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CoordinatorActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("coordinator@starting started")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.GetDevicesRequest{}, coordinatorRequestTimeout), func(err error) any {
			return domain.GetDevicesResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingDevicesReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("coordinator@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CoordinatorActor) WaitingDevicesReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDevicesResponse:
		// without a registry there is nothing to bridge, so let the
		// supervisor restart us and retry
		if msg.HasResponseError() {
			state.logger.Error("coordinator@waitingDevices GetDevicesResponse error", zap.Error(msg.GetResponseError()))
			panic(msg.GetResponseError())
		}
		state.logger.Info("coordinator@waitingDevices device registry loaded", zap.Int("devices", len(msg.Devices)))
		serials := make([]string, 0, len(msg.Devices))
		for _, dev := range msg.Devices {
			serials = append(serials, dev.SerialNumber)
			state.devices[strings.ToLower(dev.SerialNumber)] = &trackedDevice{
				device: dev,
				state:  domain.NewDeviceState(dev.SerialNumber),
			}
		}
		if err := state.startStreamActor(ctx, msg.Token, serials); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("coordinator@waitingDevices stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CoordinatorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("coordinator@default ActorHealthRequest")
		healthState := "stream disconnected"
		if state.streamConnected {
			healthState = "stream connected"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_COORDINATOR,
			Healthy: state.streamConnected,
			State:   healthState,
		})
	case domain.StreamDeviceUpdate:
		state.handleDeviceUpdate(msg.Update)
	case domain.StreamConnectedEvent:
		state.logger.Info("coordinator@default stream connected")
		state.streamConnected = true
		// base_info never arrives unsolicited, so rescan after every connect
		for _, tracked := range state.devices {
			ctx.Send(state.streamActor, domain.StreamRequestScan{SerialNumber: tracked.device.SerialNumber})
		}
	case domain.StreamDisconnectedEvent:
		state.logger.Warn("coordinator@default stream disconnected", zap.Error(msg.Error))
		state.streamConnected = false
		state.markAllOffline()
	case domain.StreamTokenRefreshNeededEvent:
		state.logger.Info("coordinator@default token refresh requested by stream")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.RefreshTokenRequest{}, coordinatorRequestTimeout), func(err error) any {
			return domain.RefreshTokenResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.RefreshTokenResponse:
		if msg.HasResponseError() {
			// the stream keeps reconnecting with the stale token and will
			// ask again on the next Forbidden exception
			state.logger.Error("coordinator@default RefreshTokenResponse error", zap.Error(msg.GetResponseError()))
			return
		}
		state.logger.Info("coordinator@default token refreshed")
		metrics.TokenRefreshes.Inc()
		ctx.Send(state.streamActor, domain.StreamUpdateToken{Token: msg.Token})
	case domain.DeviceRescanTick:
		state.logger.Debug("coordinator@default rescan tick")
		if !state.streamConnected {
			return
		}
		for _, tracked := range state.devices {
			ctx.Send(state.streamActor, domain.StreamRequestScan{SerialNumber: tracked.device.SerialNumber})
		}
	case domain.GetThermostatsRequest:
		state.logger.Debug("coordinator@default GetThermostatsRequest")
		ctx.Respond(domain.GetThermostatsResponse{
			Thermostats: state.thermostats(),
		})
	case domain.ThermostatCommandRequest:
		state.handleCommand(ctx, msg)
	case domain.SendDeviceCommandResponse:
		if msg.HasResponseError() {
			state.logger.Error("coordinator@default SendDeviceCommandResponse error", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Debug("coordinator@default command delivered")
		}
	default:
		state.logger.Debug("coordinator@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CoordinatorActor) handleDeviceUpdate(update *bseries.DeviceUpdate) {
	tracked, ok := state.devices[strings.ToLower(update.SerialNumber)]
	if !ok {
		state.logger.Warn("coordinator@default update for unknown device", zap.String("serial", update.SerialNumber))
		return
	}
	if !tracked.state.Apply(update) {
		return
	}
	metrics.ObserveDeviceState(tracked.state)
	for _, ev := range events.ThermostatStateToUpdateEvents(tracked.state) {
		state.eventStream.Publish(ev)
	}
	if tracked.state.HasBaseInfo && !tracked.discovered {
		tracked.discovered = true
		state.eventStream.Publish(domain.ThermostatDiscoveredEvent{
			Thermostat: domain.Thermostat{
				Device: tracked.device,
				State:  tracked.state,
			},
		})
	}
}

// markAllOffline pushes an offline snapshot for every device so entities go
// unavailable/off while the stream is down.
func (state *CoordinatorActor) markAllOffline() {
	for _, tracked := range state.devices {
		if !tracked.state.Apply(&bseries.DeviceUpdate{SerialNumber: tracked.state.SerialNumber, Online: false}) {
			continue
		}
		metrics.ObserveDeviceState(tracked.state)
		for _, ev := range events.ThermostatStateToUpdateEvents(tracked.state) {
			state.eventStream.Publish(ev)
		}
	}
}

func (state *CoordinatorActor) handleCommand(ctx actor.Context, msg domain.ThermostatCommandRequest) {
	tracked, ok := state.devices[strings.ToLower(msg.TargetSerialNumber())]
	if !ok {
		state.logger.Warn("coordinator@default command for unknown device", zap.String("serial", msg.TargetSerialNumber()))
		return
	}

	var cmd bseries.Command
	switch req := msg.(type) {
	case domain.SetTargetTemperatureRequest:
		cmd = bseries.SetPointCommand(req.Celsius)
		// a setpoint only takes effect in manual mode
		if tracked.state.Mode != bseries.ModeManual {
			cmd.Mode = strings.ToUpper(bseries.ModeManual)
		}
	case domain.SetHVACModeRequest:
		switch req.HVACMode {
		case domain.HVAC_MODE_OFF:
			cmd = bseries.ModeCommand(bseries.ModeOff)
		case domain.HVAC_MODE_HEAT, domain.HVAC_MODE_COOL:
			function := bseries.FunctionHeating
			if req.HVACMode == domain.HVAC_MODE_COOL {
				function = bseries.FunctionCooling
			}
			cmd = bseries.FunctionCommand(function)
			// leaving off requires an explicit mode
			if tracked.state.Mode == bseries.ModeOff {
				cmd.Mode = strings.ToUpper(bseries.ModeManual)
			}
		default:
			state.logger.Warn("coordinator@default unsupported hvac mode", zap.String("mode", req.HVACMode))
			return
		}
	case domain.SetModeRequest:
		cmd = bseries.ModeCommand(req.Mode)
	case domain.SetFunctionRequest:
		cmd = bseries.FunctionCommand(req.Function)
	default:
		state.logger.Warn("coordinator@default unsupported command", zap.String("type", fmt.Sprintf("%T", msg)))
		return
	}

	state.logger.Info("coordinator@default sending command",
		zap.String("serial", tracked.device.SerialNumber), zap.Any("command", cmd))
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.SendDeviceCommandRequest{
		DeviceID: tracked.device.ID,
		Command:  cmd,
	}, coordinatorRequestTimeout), func(err error) any {
		return domain.SendDeviceCommandResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *CoordinatorActor) thermostats() []domain.Thermostat {
	out := make([]domain.Thermostat, 0, len(state.devices))
	for _, tracked := range state.devices {
		out = append(out, domain.Thermostat{
			Device: tracked.device,
			State:  tracked.state,
		})
	}
	return out
}

func (state *CoordinatorActor) startStreamActor(ctx actor.Context, token string, serials []string) error {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	streamProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewStreamActor(bseries.StreamConfig{
			BaseURL: state.config.Cloud.BaseURL,
			Token:   token,
			Serials: serials,
			Logger:  state.logger,
		}, state.streamFactory, state.logger)
	}, actor.WithSupervisor(supervisor))
	streamActorPID, err := ctx.SpawnNamed(streamProps, domain.ACTOR_ID_STREAM)
	if err != nil {
		return err
	}
	state.streamActor = streamActorPID
	return nil
}
