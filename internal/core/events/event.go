package events

import (
	"fmt"
	"strings"

	. "computherm2mqtt/internal/core/domain"
)

// ThermostatStateToUpdateEvents maps a device state snapshot onto the update
// events consumed by the MQTT actor. Unknown attributes are skipped so a
// fresh cache does not publish empty payloads.
func ThermostatStateToUpdateEvents(state DeviceState) []any {
	var events []any
	events = append(events, ClimateStateUpdateEvents(state)...)
	events = append(events, SensorStateUpdateEvents(state)...)
	events = append(events, SelectStateUpdateEvents(state)...)
	return events
}

func ClimateStateUpdateEvents(state DeviceState) []any {
	var events []any

	serial := state.SerialNumber

	if state.Temperature != nil {
		events = append(events, climateEvent(serial, CLIMATE_FIELD_CURRENT_TEMPERATURE,
			formatFloat(*state.Temperature, 1)))
	}
	if state.TargetTemperature != nil {
		events = append(events, climateEvent(serial, CLIMATE_FIELD_TARGET_TEMPERATURE,
			formatFloat(*state.TargetTemperature, 1)))
	}
	if state.Humidity != nil {
		events = append(events, climateEvent(serial, CLIMATE_FIELD_HUMIDITY,
			formatFloat(*state.Humidity, 0)))
	}
	events = append(events, climateEvent(serial, CLIMATE_FIELD_MODE, state.HVACMode()))
	events = append(events, climateEvent(serial, CLIMATE_FIELD_ACTION, state.HVACAction()))

	return events
}

func SensorStateUpdateEvents(state DeviceState) []any {
	var events []any

	serial := state.SerialNumber

	if state.Temperature != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: EntityId(serial, SENSOR_SUFFIX_TEMPERATURE),
			},
			Value:    *state.Temperature,
			Decimals: 1,
		})
	}
	if state.Humidity != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: EntityId(serial, SENSOR_SUFFIX_HUMIDITY),
			},
			Value:    *state.Humidity,
			Decimals: 0,
		})
	}
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: EntityId(serial, SENSOR_SUFFIX_RELAY),
		},
		Value: state.RelayOn,
	})
	for suffix, value := range map[string]string{
		SENSOR_SUFFIX_BATTERY:    state.Battery,
		SENSOR_SUFFIX_RSSI:       state.RSSI,
		SENSOR_SUFFIX_RSSI_LEVEL: state.RSSILevel,
		SENSOR_SUFFIX_SOURCE:     state.Source,
	} {
		if value == "" {
			continue
		}
		events = append(events, TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: EntityId(serial, suffix),
			},
			Value: value,
		})
	}

	return events
}

func SelectStateUpdateEvents(state DeviceState) []any {
	return []any{
		SelectStateUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: EntityId(state.SerialNumber, SELECT_SUFFIX_MODE),
			},
			Value: state.Mode,
		},
		SelectStateUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: EntityId(state.SerialNumber, SELECT_SUFFIX_FUNCTION),
			},
			Value: state.Function,
		},
	}
}

func BridgeStateUpdateEvents(online bool) []any {
	return []any{BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}}
}

func climateEvent(serial, field, value string) ClimateStateUpdateEvent {
	return ClimateStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: strings.ToLower(serial),
		},
		Field: field,
		Value: value,
	}
}

func formatFloat(value float64, decimals uint) string {
	return fmt.Sprintf("%.*f", decimals, value)
}
