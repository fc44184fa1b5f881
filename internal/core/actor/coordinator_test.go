package actor

import (
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	adactor "computherm2mqtt/internal/adapter/actor"
	"computherm2mqtt/internal/core/domain"
	"computherm2mqtt/internal/core/port"
	"computherm2mqtt/internal/util"
	"computherm2mqtt/pkg/bseries"
)

type coordinatorFixture struct {
	as          *actor.ActorSystem
	context     *actor.RootContext
	client      *bseries.TestClient
	eventStream *eventstream.EventStream
	coordinator *actor.PID
	cloud       *actor.PID

	mu     sync.Mutex
	stream *bseries.TestStream
}

func (f *coordinatorFixture) testStream() *bseries.TestStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stream
}

func startCoordinatorFixture(t *testing.T) *coordinatorFixture {
	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	as := actor.NewActorSystem()
	context := as.Root

	client := bseries.NewTestClient([]bseries.Device{{
		ID:           42,
		SerialNumber: "AB01CD02",
		Type:         "B300",
	}})

	fixture := &coordinatorFixture{
		as:          as,
		context:     context,
		client:      client,
		eventStream: &eventstream.EventStream{},
	}

	cloudProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewCloudActor(client, logger)
	})
	cloudPID, err := context.SpawnNamed(cloudProps, "cloud")
	if err != nil {
		t.Fatal(err)
	}
	fixture.cloud = cloudPID

	factory := func(streamCfg bseries.StreamConfig, handler bseries.StreamHandler) port.DeviceStream {
		stream := bseries.NewTestStream(handler)
		fixture.mu.Lock()
		fixture.stream = stream
		fixture.mu.Unlock()
		return stream
	}

	coordProps := actor.PropsFromProducer(func() actor.Actor {
		return NewCoordinatorActor(&cfg, cloudPID, factory, fixture.eventStream, logger)
	})
	coordPID, err := context.SpawnNamed(coordProps, "coordinator")
	if err != nil {
		t.Fatal(err)
	}
	fixture.coordinator = coordPID

	return fixture
}

func (f *coordinatorFixture) stop() {
	f.context.Stop(f.coordinator)
	f.context.Stop(f.cloud)
	f.as.Shutdown()
}

func TestCoordinatorScansOnConnect(t *testing.T) {

	assert := assert.New(t)

	fixture := startCoordinatorFixture(t)
	defer fixture.stop()

	time.Sleep(2 * time.Second)

	stream := fixture.testStream()
	assert.NotNil(stream, "stream created")
	assert.True(stream.Started, "stream started")
	assert.Contains(stream.Scans, "AB01CD02", "scan requested on connect")

	res, err := fixture.context.RequestFuture(fixture.coordinator, domain.ActorHealthRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	health := res.(domain.ActorHealthResponse)
	assert.True(health.Healthy, "coordinator healthy while stream connected")
}

func TestCoordinatorPublishesUpdates(t *testing.T) {

	assert := assert.New(t)

	fixture := startCoordinatorFixture(t)
	defer fixture.stop()

	time.Sleep(2 * time.Second)

	var mu sync.Mutex
	var climate []domain.ClimateStateUpdateEvent
	sub := fixture.eventStream.Subscribe(func(value any) {
		if ev, ok := value.(domain.ClimateStateUpdateEvent); ok {
			mu.Lock()
			climate = append(climate, ev)
			mu.Unlock()
		}
	})
	defer fixture.eventStream.Unsubscribe(sub)

	temp := 21.5
	relayOn := true
	fixture.testStream().EmitUpdate(&bseries.DeviceUpdate{
		SerialNumber: "AB01CD02",
		Online:       true,
		Temperature:  &temp,
		RelayOn:      &relayOn,
	})

	time.Sleep(1 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(climate, "climate events published")
	fields := map[string]string{}
	for _, ev := range climate {
		assert.Equal(ev.Id, "ab01cd02", "event id is lowercase serial")
		fields[ev.Field] = ev.Value
	}
	assert.Equal(fields[domain.CLIMATE_FIELD_CURRENT_TEMPERATURE], "21.5", "current temperature")
	assert.Equal(fields[domain.CLIMATE_FIELD_ACTION], domain.HVAC_ACTION_HEATING, "hvac action")

	res, err := fixture.context.RequestFuture(fixture.coordinator, domain.GetThermostatsRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	thermostats := res.(domain.GetThermostatsResponse)
	assert.Equal(len(thermostats.Thermostats), 1, "one thermostat")
	assert.Equal(*thermostats.Thermostats[0].State.Temperature, 21.5, "cached temperature")
}

func TestCoordinatorSendsCommands(t *testing.T) {

	assert := assert.New(t)

	fixture := startCoordinatorFixture(t)
	defer fixture.stop()

	time.Sleep(2 * time.Second)

	fixture.context.Send(fixture.coordinator, domain.SetTargetTemperatureRequest{
		ThermostatCommandRequestMixIn: domain.ThermostatCommandRequestMixIn{
			SerialNumber: "ab01cd02",
		},
		Celsius: 22.5,
	})

	time.Sleep(1 * time.Second)

	sent := fixture.client.SentCommands()
	assert.Equal(len(sent), 1, "one command sent")
	assert.Equal(sent[0].DeviceID, 42, "device id resolved from serial")
	assert.Equal(*sent[0].Command.ManualSetPoint, 22.5, "setpoint")
	// initial mode is schedule, so a setpoint forces manual mode
	assert.Equal(sent[0].Command.Mode, "MANUAL", "manual mode forced")
}

func TestCoordinatorRefreshesToken(t *testing.T) {

	assert := assert.New(t)

	fixture := startCoordinatorFixture(t)
	defer fixture.stop()

	time.Sleep(2 * time.Second)

	fixture.testStream().EmitTokenRefreshNeeded()

	time.Sleep(1 * time.Second)

	stream := fixture.testStream()
	assert.Contains(stream.Tokens, "test-token", "stream token updated")
}
