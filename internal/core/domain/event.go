package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// ClimateStateUpdateEvent publishes one climate attribute. Id is the device
// serial number; Field selects the state topic (current_temperature,
// target_temperature, mode, action, humidity).
type ClimateStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Field string
	Value string
}

type SelectStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

// ThermostatDiscoveredEvent signals a device whose base_info just arrived,
// making it ready for discovery publication.
type ThermostatDiscoveredEvent struct {
	Thermostat Thermostat
}
