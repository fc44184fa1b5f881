package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"computherm2mqtt/internal/config"
	"computherm2mqtt/internal/core/domain"
)

func testDiscoveryClient() *MQTTClient {
	return &MQTTClient{cfg: config.MQTTConfig{BaseTopic: "computherm"}}
}

func TestClimateDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	client := testDiscoveryClient()
	haDevice := domain.Device{Id: "cth_ab01cd02", Name: "Living room", Manufacturer: "Computherm", Model: "B300"}
	climate := domain.GenericClimate{
		Device:   haDevice,
		Id:       "ab01cd02",
		Name:     "Thermostat",
		UniqueId: "uid_cth_ab01cd02_ab01cd02",
		Modes:    []string{domain.HVAC_MODE_OFF, domain.HVAC_MODE_HEAT, domain.HVAC_MODE_COOL},
		MinTemp:  10,
		MaxTemp:  28,
		TempStep: domain.TEMPERATURE_STEP,
	}

	msg := GenericClimateToHADiscoveryMessage(client, climate)

	assert.Equal(msg.Platform, "mqtt", "platform")
	assert.Equal(msg.Device.Id, []string{"cth_ab01cd02"}, "device identifiers")
	assert.Equal(msg.Device.Model, "B300", "device model")
	assert.Equal(msg.AvTopic, "computherm/bridge/state", "availability topic")
	assert.Equal(msg.CurrentTemperatureTopic, "computherm/climate/ab01cd02/current_temperature/state", "current temperature topic")
	assert.Equal(msg.TemperatureStateTopic, "computherm/climate/ab01cd02/target_temperature/state", "target temperature topic")
	assert.Equal(msg.TemperatureCommandTopic, "computherm/climate/ab01cd02/target_temperature/set", "temperature command topic")
	assert.Equal(msg.ModeStateTopic, "computherm/climate/ab01cd02/mode/state", "mode state topic")
	assert.Equal(msg.ModeCommandTopic, "computherm/climate/ab01cd02/mode/set", "mode command topic")
	assert.Equal(msg.ActionTopic, "computherm/climate/ab01cd02/action/state", "action topic")
	assert.Equal(msg.Modes, []string{"off", "heat", "cool"}, "modes")
	assert.Equal(msg.MinTemp, 10.0, "min temp")
	assert.Equal(msg.MaxTemp, 28.0, "max temp")
	assert.Equal(msg.TempStep, 0.1, "temp step")

	topic := HADiscoveryClimateTopic("homeassistant", climate)
	assert.Equal(topic, "homeassistant/climate/cth_ab01cd02/ab01cd02/config", "discovery topic")
}

func TestSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	client := testDiscoveryClient()
	haDevice := domain.Device{Id: "cth_ab01cd02", Name: "Living room"}
	sensors := domain.ThermostatSensors(haDevice, "AB01CD02")

	byId := map[string]domain.GenericSensor{}
	for _, sensor := range sensors {
		byId[sensor.Id] = sensor
	}

	temp := byId["ab01cd02_temperature"]
	msg := GenericSensorToHADiscoveryMessage(client, temp)
	assert.Equal(msg.StateTopic, "computherm/sensor/ab01cd02_temperature/state", "sensor state topic")
	assert.Equal(msg.DeviceClass, domain.DEVICE_CLASS_TEMPERATURE, "device class")
	assert.Equal(msg.StateClass, domain.STATE_CLASS_MEASUREMENT, "state class")
	assert.Equal(msg.UnitOfMeasurement, "°C", "unit")
	assert.Equal(msg.AvTopic, "computherm/bridge/state", "availability topic")

	relay := byId["ab01cd02_relay"]
	msg = GenericSensorToHADiscoveryMessage(client, relay)
	assert.Equal(msg.StateTopic, "computherm/binary_sensor/ab01cd02_relay/state", "binary sensor state topic")
	assert.Equal(msg.PayloadOn, MQTT_PAYLOAD_ON, "payload on")
	assert.Equal(msg.PayloadOff, MQTT_PAYLOAD_OFF, "payload off")

	topic := HADiscoverySensorTopic("homeassistant", relay)
	assert.Equal(topic, "homeassistant/binary_sensor/cth_ab01cd02/ab01cd02_relay/config", "discovery topic")
}

func TestBridgeSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	client := testDiscoveryClient()
	bridge := domain.BridgeSensors(domain.BridgeDevice("computherm"))[0]

	msg := GenericSensorToHADiscoveryMessage(client, bridge)

	assert.Equal(msg.StateTopic, "computherm/bridge/state", "bridge state topic")
	assert.Equal(msg.PayloadOn, MQTT_PAYLOAD_ONLINE, "payload on")
	assert.Equal(msg.PayloadOff, MQTT_PAYLOAD_OFFLINE, "payload off")
	assert.Equal(msg.AvTopic, "", "no availability topic on the availability sensor")
	assert.Equal(msg.EntityCategory, domain.ENTITY_CLASS_DIAGNOSTIC, "entity category")
}

func TestSelectDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	client := testDiscoveryClient()
	haDevice := domain.Device{Id: "cth_ab01cd02", Name: "Living room"}
	selects := domain.ThermostatSelects(haDevice, "AB01CD02")

	var mode domain.GenericSelect
	for _, sel := range selects {
		if sel.Id == "ab01cd02_mode" {
			mode = sel
		}
	}

	msg := GenericSelectToHADiscoveryMessage(client, mode)

	assert.Equal(msg.StateTopic, "computherm/select/ab01cd02_mode/state", "select state topic")
	assert.Equal(msg.CommandTopic, "computherm/select/ab01cd02_mode/set", "select command topic")
	assert.Equal(msg.Options, []string{"schedule", "manual", "off"}, "options")

	topic := HADiscoverySelectTopic("homeassistant", mode)
	assert.Equal(topic, "homeassistant/select/cth_ab01cd02/ab01cd02_mode/config", "discovery topic")
}
