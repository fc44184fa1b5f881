package actor

import (
	"context"
	"fmt"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"computherm2mqtt/internal/core/domain"
	"computherm2mqtt/internal/core/port"
	"computherm2mqtt/internal/metrics"
	"computherm2mqtt/internal/util/actorutil"
	"computherm2mqtt/pkg/bseries"
)

// StreamActor owns the socket.io device stream. Stream callbacks run on the
// reader goroutine, so the bridge routes them through the actor system as
// messages to self; decoded updates are forwarded to the parent coordinator.
type StreamActor struct {
	cfg       bseries.StreamConfig
	factory   port.StreamFactory
	stream    port.DeviceStream
	connected bool
	logger    *zap.Logger
}

type streamBridge struct {
	system *actor.ActorSystem
	target *actor.PID
}

func (b streamBridge) OnDeviceUpdate(update *bseries.DeviceUpdate) {
	b.system.Root.Send(b.target, domain.StreamDeviceUpdate{Update: update})
}

func (b streamBridge) OnStreamConnected() {
	b.system.Root.Send(b.target, domain.StreamConnectedEvent{})
}

func (b streamBridge) OnStreamDisconnected(err error) {
	b.system.Root.Send(b.target, domain.StreamDisconnectedEvent{Error: err})
}

func (b streamBridge) OnTokenRefreshNeeded() {
	b.system.Root.Send(b.target, domain.StreamTokenRefreshNeededEvent{})
}

func NewStreamActor(cfg bseries.StreamConfig, factory port.StreamFactory, logger *zap.Logger) *StreamActor {
	return &StreamActor{
		cfg:     cfg,
		factory: factory,
		logger:  actorutil.ActorLogger(domain.ACTOR_ID_STREAM, logger),
	}
}

func (state *StreamActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("stream@started")
		bridge := streamBridge{system: ctx.ActorSystem(), target: ctx.Self()}
		state.stream = state.factory(state.cfg, bridge)
		state.stream.Start(context.Background())
	case *actor.Restarting, *actor.Stopping:
		if state.stream != nil {
			state.stream.Stop()
		}
	case domain.StreamUpdateToken:
		state.logger.Debug("stream: token updated")
		state.stream.UpdateToken(msg.Token)
	case domain.StreamRequestScan:
		state.logger.Debug("stream: scan requested", zap.String("serial", msg.SerialNumber))
		state.stream.RequestScan(msg.SerialNumber)
	case domain.StreamDeviceUpdate:
		ctx.Send(ctx.Parent(), msg)
	case domain.StreamConnectedEvent:
		state.logger.Info("stream connected")
		state.connected = true
		ctx.Send(ctx.Parent(), msg)
	case domain.StreamDisconnectedEvent:
		state.logger.Warn("stream disconnected", zap.Error(msg.Error))
		state.connected = false
		metrics.StreamReconnects.Inc()
		ctx.Send(ctx.Parent(), msg)
	case domain.StreamTokenRefreshNeededEvent:
		ctx.Send(ctx.Parent(), msg)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_STREAM,
			Healthy: state.connected,
			State:   streamStateName(state.connected),
		})
	default:
		state.logger.Debug("stream: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func streamStateName(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}
