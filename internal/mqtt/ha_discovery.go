package mqtt

import (
	"fmt"

	"computherm2mqtt/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic,omitempty"`
	CommandTopic      string            `json:"command_topic,omitempty"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	EnabledByDefault  *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
	Options           []string          `json:"options,omitempty"`

	// climate platform
	CurrentTemperatureTopic string   `json:"current_temperature_topic,omitempty"`
	TemperatureCommandTopic string   `json:"temperature_command_topic,omitempty"`
	TemperatureStateTopic   string   `json:"temperature_state_topic,omitempty"`
	ModeCommandTopic        string   `json:"mode_command_topic,omitempty"`
	ModeStateTopic          string   `json:"mode_state_topic,omitempty"`
	ActionTopic             string   `json:"action_topic,omitempty"`
	CurrentHumidityTopic    string   `json:"current_humidity_topic,omitempty"`
	Modes                   []string `json:"modes,omitempty"`
	MinTemp                 float64  `json:"min_temp,omitempty"`
	MaxTemp                 float64  `json:"max_temp,omitempty"`
	TempStep                float64  `json:"temp_step,omitempty"`
	TemperatureUnit         string   `json:"temperature_unit,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func HADiscoverySensorTopic(discoveryTopic string, sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", discoveryTopic, sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func HADiscoveryClimateTopic(discoveryTopic string, climate domain.GenericClimate) string {
	return fmt.Sprintf("%s/climate/%s/%s/config", discoveryTopic, climate.Device.Id, climate.Id)
}

func HADiscoverySelectTopic(discoveryTopic string, sel domain.GenericSelect) string {
	return fmt.Sprintf("%s/select/%s/%s/config", discoveryTopic, sel.Device.Id, sel.Id)
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		topic = client.BridgeStateTopic()
	case sensor.SensorType == domain.SENSOR_TYPE_SENSOR:
		topic = client.SensorStateTopic(sensor.Id)
	case sensor.SensorType == domain.SENSOR_TYPE_BINARY:
		topic = client.BinarySensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:            dev,
		StateTopic:        topic,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           client.BridgeStateTopic(),
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		EnabledByDefault:  sensor.EnabledByDefault,
		Platform:          "mqtt",
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
		// the availability topic is the state topic here
		disConfig.AvTopic = ""
	} else if sensor.SensorType == domain.SENSOR_TYPE_BINARY {
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	}
	return disConfig
}

func GenericClimateToHADiscoveryMessage(client *MQTTClient, climate domain.GenericClimate) HADiscoveryConfig {
	dev := device(climate.Device)
	return HADiscoveryConfig{
		Device:                  dev,
		AvTopic:                 client.BridgeStateTopic(),
		Name:                    climate.Name,
		UniqueId:                climate.UniqueId,
		Icon:                    climate.Icon,
		Platform:                "mqtt",
		CurrentTemperatureTopic: client.ClimateStateTopic(climate.Id, domain.CLIMATE_FIELD_CURRENT_TEMPERATURE),
		TemperatureStateTopic:   client.ClimateStateTopic(climate.Id, domain.CLIMATE_FIELD_TARGET_TEMPERATURE),
		TemperatureCommandTopic: client.ClimateTemperatureCommandTopic(climate.Id),
		ModeStateTopic:          client.ClimateStateTopic(climate.Id, domain.CLIMATE_FIELD_MODE),
		ModeCommandTopic:        client.ClimateModeCommandTopic(climate.Id),
		ActionTopic:             client.ClimateStateTopic(climate.Id, domain.CLIMATE_FIELD_ACTION),
		CurrentHumidityTopic:    client.ClimateStateTopic(climate.Id, domain.CLIMATE_FIELD_HUMIDITY),
		Modes:                   climate.Modes,
		MinTemp:                 climate.MinTemp,
		MaxTemp:                 climate.MaxTemp,
		TempStep:                climate.TempStep,
		TemperatureUnit:         "C",
	}
}

func GenericSelectToHADiscoveryMessage(client *MQTTClient, sel domain.GenericSelect) HADiscoveryConfig {
	dev := device(sel.Device)
	return HADiscoveryConfig{
		Device:         dev,
		StateTopic:     client.SelectStateTopic(sel.Id),
		CommandTopic:   client.SelectCommandTopic(sel.Id),
		AvTopic:        client.BridgeStateTopic(),
		EntityCategory: sel.EntityCategory,
		Name:           sel.Name,
		UniqueId:       sel.UniqueId,
		Icon:           sel.Icon,
		Platform:       "mqtt",
		Options:        sel.Options,
	}
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
