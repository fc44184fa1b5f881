package actor

import (
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"computherm2mqtt/internal/core/domain"
	"computherm2mqtt/internal/util/actorutil"
	"computherm2mqtt/pkg/bseries"
)

func testDevices() []bseries.Device {
	return []bseries.Device{{
		ID:              42,
		SerialNumber:    "AB01CD02",
		Brand:           "COMPUTHERM",
		Type:            "B300",
		FirmwareVersion: "1.5.0",
	}}
}

func TestGetDevicesCloudActor(t *testing.T) {

	assert := assert.New(t)

	client := bseries.NewTestClient(testDevices())

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewCloudActor(client, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetDevicesRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetDevicesResponse)

	assert.False(resp.HasResponseError(), "no response error")
	assert.Equal(len(resp.Devices), 1, "device count")
	assert.Equal(resp.Devices[0].SerialNumber, "AB01CD02", "device serial")
	assert.Equal(resp.Token, "test-token", "token")

	context.Stop(pid)

	as.Shutdown()
}

func TestSendCommandCloudActor(t *testing.T) {

	assert := assert.New(t)

	client := bseries.NewTestClient(testDevices())

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewCloudActor(client, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.SendDeviceCommandRequest{
		DeviceID: 42,
		Command:  bseries.SetPointCommand(21.5),
	}

	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.SendDeviceCommandResponse)

	assert.False(resp.HasResponseError(), "no response error")

	sent := client.SentCommands()
	assert.Equal(len(sent), 1, "one command sent")
	assert.Equal(sent[0].DeviceID, 42, "device id")
	assert.Equal(*sent[0].Command.ManualSetPoint, 21.5, "setpoint value")

	context.Stop(pid)

	as.Shutdown()
}

func TestStaleTokenRefreshedBeforeRequestCloudActor(t *testing.T) {

	assert := assert.New(t)

	client := bseries.NewTestClient(testDevices())

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewCloudActor(client, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	client.SetNeedsRefresh(true)

	result, err := context.RequestFuture(pid, domain.GetDevicesRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetDevicesResponse)

	assert.False(resp.HasResponseError(), "no response error")
	// startup login plus the refresh before the device list
	assert.Equal(client.LoginCount, 2, "login count")
	assert.False(client.TokenNeedsRefresh(), "token fresh again")

	context.Stop(pid)

	as.Shutdown()
}

func TestRefreshTokenCloudActor(t *testing.T) {

	assert := assert.New(t)

	client := bseries.NewTestClient(testDevices())

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewCloudActor(client, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	result, err := context.RequestFuture(pid, domain.RefreshTokenRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.RefreshTokenResponse)

	assert.False(resp.HasResponseError(), "no response error")
	assert.Equal(resp.Token, "test-token", "token")
	// startup login plus explicit refresh
	assert.Equal(client.LoginCount, 2, "login count")

	context.Stop(pid)

	as.Shutdown()
}
