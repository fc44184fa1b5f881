package domain

import (
	"github.com/asynkron/protoactor-go/actor"

	"computherm2mqtt/pkg/bseries"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_CLOUD        = "cloud"
	ACTOR_ID_COORDINATOR  = "coordinator"
	ACTOR_ID_STREAM       = "stream"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

// Cloud actor messages

type GetDevicesRequest struct {
	ActorRequestMixIn
}

type GetDevicesResponse struct {
	ActorResponseMixIn
	Devices []bseries.Device
	Token   string
}

type SendDeviceCommandRequest struct {
	ActorRequestMixIn
	DeviceID int
	Command  bseries.Command
}

type SendDeviceCommandResponse struct {
	ActorResponseMixIn
}

type RefreshTokenRequest struct {
	ActorRequestMixIn
}

type RefreshTokenResponse struct {
	ActorResponseMixIn
	Token string
}

// Stream actor messages (coordinator -> stream)

type StreamUpdateToken struct {
	Token string
}

type StreamRequestScan struct {
	SerialNumber string
}

// Stream actor events (stream -> coordinator)

type StreamDeviceUpdate struct {
	Update *bseries.DeviceUpdate
}

type StreamConnectedEvent struct{}

type StreamDisconnectedEvent struct {
	Error error
}

type StreamTokenRefreshNeededEvent struct{}

// Coordinator messages

type GetThermostatsRequest struct {
	ActorRequestMixIn
}

// Thermostat pairs a cloud registry entry with its last known state.
type Thermostat struct {
	Device bseries.Device
	State  DeviceState
}

type GetThermostatsResponse struct {
	ActorResponseMixIn
	Thermostats []Thermostat
}

// DeviceRescanTick asks the coordinator to re-request base_info from every
// known device. Sent by the quartz job and on stream reconnect.
type DeviceRescanTick struct{}

// MQTT actor messages

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Climates []GenericClimate
	Sensors  []GenericSensor
	Selects  []GenericSelect
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health check

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
