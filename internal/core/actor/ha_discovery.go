package actor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"

	"computherm2mqtt/internal/config"
	"computherm2mqtt/internal/core/domain"
	"computherm2mqtt/internal/util/actorutil"
)

// HADiscoveryActor publishes Home Assistant discovery configs. It waits for
// the cloud and MQTT actors to be healthy, publishes the bridge entities and
// any thermostat that already reported base_info, then keeps listening for
// ThermostatDiscoveredEvent to publish late arrivals.
type HADiscoveryActor struct {
	config           *config.Config
	behavior         actor.Behavior
	stash            *actorutil.Stash
	cloudActor       *actor.PID
	mqttActor        *actor.PID
	coordinatorActor *actor.PID
	eventStream      *eventstream.EventStream
	eventStreamSub   *eventstream.Subscription

	cloudActorHealthy bool
	mqttActorHealthy  bool
	healthyRecv       int
	published         map[string]bool

	logger *zap.Logger
}

type onDiscoveredEvent struct {
	event domain.ThermostatDiscoveredEvent
}

func NewHADiscoveryActor(config *config.Config, cloudActor, mqttActor, coordinatorActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:           config,
		cloudActor:       cloudActor,
		mqttActor:        mqttActor,
		coordinatorActor: coordinatorActor,
		eventStream:      eventStream,
		published:        map[string]bool{},
		behavior:         actor.NewBehavior(),
		stash:            &actorutil.Stash{},
		logger:           actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check cloud and MQTT actor healthy
		state.healthyRecv = 0
		state.cloudActorHealthy = false
		state.mqttActorHealthy = false
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CLOUD,
				Healthy: false,
			}
		})
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_CLOUD:
				state.cloudActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.cloudActorHealthy && state.mqttActorHealthy {
				state.publishBridgeDiscovery(ctx)
				// Ask coordinator for the known thermostats
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.coordinatorActor, domain.GetThermostatsRequest{}, 2*time.Second), func(err error) any {
					return domain.GetThermostatsResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: err,
						},
					}
				})
				state.behavior.Become(state.WaitingInfoReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Cloud Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetThermostatsResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@info: GetThermostatsResponse", zap.Int("thermostats", len(msg.Thermostats)))

		for _, thermostat := range msg.Thermostats {
			if thermostat.State.HasBaseInfo {
				state.publishThermostatDiscovery(ctx, thermostat)
			}
		}

		// base_info arrives with the scan responses, so keep listening for
		// thermostats discovered after boot
		system := ctx.ActorSystem()
		self := ctx.Self()
		state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
			if ev, ok := value.(domain.ThermostatDiscoveredEvent); ok {
				system.Root.Send(self, onDiscoveredEvent{event: ev})
			}
		})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@info: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case onDiscoveredEvent:
		state.publishThermostatDiscovery(ctx, msg.event.Thermostat)
	case *actor.Stopping, *actor.Restarting:
		if state.eventStreamSub != nil {
			state.eventStream.Unsubscribe(state.eventStreamSub)
			state.eventStreamSub = nil
		}
	default:
		state.logger.Debug("hadiscovery@default: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) publishBridgeDiscovery(ctx actor.Context) {
	bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)
	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors: domain.BridgeSensors(bridgeDevice),
	})
}

func (state *HADiscoveryActor) publishThermostatDiscovery(ctx actor.Context, thermostat domain.Thermostat) {
	serial := strings.ToLower(thermostat.Device.SerialNumber)
	if state.published[serial] {
		return
	}
	state.published[serial] = true

	state.logger.Info("hadiscovery: publishing discovery", zap.String("serial", thermostat.Device.SerialNumber))

	bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)
	haDevice := domain.ThermostatHADevice(thermostat.Device, thermostat.State)
	haDevice.ViaDevice = bridgeDevice.Id

	climates := []domain.GenericClimate{domain.ThermostatClimate(haDevice, thermostat.State)}

	// the climate carries the full device block; the rest only repeat the id
	sensors := domain.ThermostatSensors(domain.IdDevice(haDevice), thermostat.Device.SerialNumber)
	selects := domain.ThermostatSelects(domain.IdDevice(haDevice), thermostat.Device.SerialNumber)

	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Climates: climates,
		Sensors:  sensors,
		Selects:  selects,
	})
}
