package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"computherm2mqtt/internal/core/domain"
	"computherm2mqtt/internal/core/port"
	"computherm2mqtt/internal/util/actorutil"
)

const cloudRequestTimeout = 30 * time.Second

// CloudActor owns the vendor REST client. Requests run as background tasks
// so the actor never blocks on the network; while one is in flight, further
// requests are stashed.
type CloudActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	cloud    port.CloudService
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

type loginResult struct {
	err error
}

func NewCloudActor(cloud port.CloudService, logger *zap.Logger) *CloudActor {
	act := &CloudActor{
		cloud:    cloud,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_CLOUD, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *CloudActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CloudActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("cloud@starting started")
		actorutil.NewBackgroundTaskNoError(ctx, func() *loginResult {
			reqCtx, cancel := context.WithTimeout(context.Background(), cloudRequestTimeout)
			defer cancel()
			_, err := state.cloud.Login(reqCtx)
			return &loginResult{err: err}
		}).WithTimeout(cloudRequestTimeout + time.Second).Recover(func(err error) loginResult {
			return loginResult{err: err}
		}).PipeTo(ctx.Self())
	case loginResult:
		// a failed login stops the actor so the supervisor retries with backoff
		if msg.err != nil {
			state.logger.Error("cloud@starting login failed", zap.Error(msg.err))
			panic(msg.err)
		}
		state.logger.Info("cloud@starting logged in")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("cloud@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CloudActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("cloud@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CLOUD,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetDevicesRequest:
		state.logger.Debug("cloud@default GetDevicesRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getDevices),
			mapTaskResult[domain.GetDevicesResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDevicesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(cloudRequestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.SendDeviceCommandRequest:
		state.logger.Debug("cloud@default SendDeviceCommandRequest",
			zap.Int("device", msg.DeviceID), zap.Any("command", msg.Command))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.SendDeviceCommandResponse, error) {
			return state.sendCommand(msg)
		}), mapTaskResult[domain.SendDeviceCommandResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SendDeviceCommandResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(cloudRequestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.RefreshTokenRequest:
		state.logger.Debug("cloud@default RefreshTokenRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.refreshToken),
			mapTaskResult[domain.RefreshTokenResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.RefreshTokenResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(cloudRequestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	default:
		state.logger.Debug("cloud@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CloudActor) WaitingCloud(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("cloud@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("cloud@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// ensureFreshToken re-logins before a request when the stored token is about
// to expire, so calls do not fail on a stale bearer token.
func (a *CloudActor) ensureFreshToken(ctx context.Context) error {
	if !a.cloud.TokenNeedsRefresh() {
		return nil
	}
	a.logger.Info("cloud: token near expiry, logging in again")
	_, err := a.cloud.Login(ctx)
	return err
}

func (a *CloudActor) getDevices() (*domain.GetDevicesResponse, error) {
	reqCtx, cancel := context.WithTimeout(context.Background(), cloudRequestTimeout)
	defer cancel()
	if err := a.ensureFreshToken(reqCtx); err != nil {
		return nil, err
	}
	devices, err := a.cloud.Devices(reqCtx)
	if err != nil {
		return nil, err
	}
	token, err := a.cloud.Token()
	if err != nil {
		return nil, err
	}
	return &domain.GetDevicesResponse{
		Devices: devices,
		Token:   token,
	}, nil
}

func (a *CloudActor) sendCommand(msg domain.SendDeviceCommandRequest) (*domain.SendDeviceCommandResponse, error) {
	reqCtx, cancel := context.WithTimeout(context.Background(), cloudRequestTimeout)
	defer cancel()
	if err := a.ensureFreshToken(reqCtx); err != nil {
		return nil, err
	}
	if err := a.cloud.SendCommand(reqCtx, msg.DeviceID, msg.Command); err != nil {
		return nil, err
	}
	return &domain.SendDeviceCommandResponse{}, nil
}

func (a *CloudActor) refreshToken() (*domain.RefreshTokenResponse, error) {
	reqCtx, cancel := context.WithTimeout(context.Background(), cloudRequestTimeout)
	defer cancel()
	token, err := a.cloud.Login(reqCtx)
	if err != nil {
		return nil, err
	}
	return &domain.RefreshTokenResponse{
		Token: token,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
