package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/carlmjohnson/versioninfo"

	"computherm2mqtt/pkg/bseries"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	SENSOR_SUFFIX_TEMPERATURE = "temperature"
	SENSOR_SUFFIX_HUMIDITY    = "humidity"
	SENSOR_SUFFIX_RELAY       = "relay"
	SENSOR_SUFFIX_BATTERY     = "battery"
	SENSOR_SUFFIX_RSSI        = "rssi"
	SENSOR_SUFFIX_RSSI_LEVEL  = "rssi_level"
	SENSOR_SUFFIX_SOURCE      = "source"
	SELECT_SUFFIX_MODE        = "mode"
	SELECT_SUFFIX_FUNCTION    = "function"

	CLIMATE_FIELD_CURRENT_TEMPERATURE = "current_temperature"
	CLIMATE_FIELD_TARGET_TEMPERATURE  = "target_temperature"
	CLIMATE_FIELD_MODE                = "mode"
	CLIMATE_FIELD_ACTION              = "action"
	CLIMATE_FIELD_HUMIDITY            = "humidity"

	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_TEMPERATURE  = "temperature"
	DEVICE_CLASS_HUMIDITY     = "humidity"
	DEVICE_CLASS_RUNNING      = "running"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"

	TEMPERATURE_STEP = 0.1
)

// EntityId builds the per-device id used in sensor and select topics.
func EntityId(serialNumber, suffix string) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(serialNumber), suffix)
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("computherm_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "Computherm",
		Model:        "computherm2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Computherm bridge %s", md5HashShort(baseTopic)),
	}
}

func ThermostatHADevice(dev bseries.Device, state DeviceState) Device {
	name := state.Name
	if name == "" {
		name = fmt.Sprintf("Thermostat %s", dev.SerialNumber)
	}
	model := dev.Type
	if model == "" {
		model = dev.DeviceType
	}
	return Device{
		Id:           fmt.Sprintf("cth_%s", strings.ToLower(dev.SerialNumber)),
		Manufacturer: "Computherm",
		Model:        model,
		Version:      dev.FirmwareVersion,
		Name:         name,
	}
}

// IdDevice strips a device block down to its identifier. Discovery payloads
// repeat the device on every entity; only the first needs the full block.
func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func ThermostatClimate(haDevice Device, state DeviceState) GenericClimate {
	serial := strings.ToLower(state.SerialNumber)
	return GenericClimate{
		Device:   haDevice,
		Id:       serial,
		Name:     "Thermostat",
		UniqueId: uniqueId(haDevice.Id, serial),
		Modes:    []string{HVAC_MODE_OFF, HVAC_MODE_HEAT, HVAC_MODE_COOL},
		MinTemp:  state.SetpointMin,
		MaxTemp:  state.SetpointMax,
		TempStep: TEMPERATURE_STEP,
	}
}

func ThermostatSensors(haDevice Device, serialNumber string) []GenericSensor {

	var sensors []GenericSensor

	// Temperature
	sensors = append(sensors, GenericSensor{
		Device:            haDevice,
		Id:                EntityId(serialNumber, SENSOR_SUFFIX_TEMPERATURE),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Temperature",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_TEMPERATURE,
		UnitOfMeasurement: "°C",
		UniqueId:          uniqueId(haDevice.Id, SENSOR_SUFFIX_TEMPERATURE),
	})

	// Humidity
	sensors = append(sensors, GenericSensor{
		Device:            haDevice,
		Id:                EntityId(serialNumber, SENSOR_SUFFIX_HUMIDITY),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Humidity",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_HUMIDITY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(haDevice.Id, SENSOR_SUFFIX_HUMIDITY),
	})

	// Relay
	sensors = append(sensors, GenericSensor{
		Device:      haDevice,
		Id:          EntityId(serialNumber, SENSOR_SUFFIX_RELAY),
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Relay",
		DeviceClass: DEVICE_CLASS_RUNNING,
		UniqueId:    uniqueId(haDevice.Id, SENSOR_SUFFIX_RELAY),
	})

	// Battery
	sensors = append(sensors, GenericSensor{
		Device:         haDevice,
		Id:             EntityId(serialNumber, SENSOR_SUFFIX_BATTERY),
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Battery",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:battery",
		UniqueId:       uniqueId(haDevice.Id, SENSOR_SUFFIX_BATTERY),
	})

	// RSSI
	sensors = append(sensors, GenericSensor{
		Device:           haDevice,
		Id:               EntityId(serialNumber, SENSOR_SUFFIX_RSSI),
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "RSSI",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		Icon:             "mdi:wifi",
		UniqueId:         uniqueId(haDevice.Id, SENSOR_SUFFIX_RSSI),
	})

	// RSSI level
	sensors = append(sensors, GenericSensor{
		Device:         haDevice,
		Id:             EntityId(serialNumber, SENSOR_SUFFIX_RSSI_LEVEL),
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "RSSI level",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:wifi-strength-2",
		UniqueId:       uniqueId(haDevice.Id, SENSOR_SUFFIX_RSSI_LEVEL),
	})

	// Reading source
	sensors = append(sensors, GenericSensor{
		Device:           haDevice,
		Id:               EntityId(serialNumber, SENSOR_SUFFIX_SOURCE),
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Source",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(haDevice.Id, SENSOR_SUFFIX_SOURCE),
	})

	return sensors
}

func ThermostatSelects(haDevice Device, serialNumber string) []GenericSelect {

	var selects []GenericSelect

	// Mode
	selects = append(selects, GenericSelect{
		Device:   haDevice,
		Id:       EntityId(serialNumber, SELECT_SUFFIX_MODE),
		Name:     "Mode",
		Options:  []string{bseries.ModeSchedule, bseries.ModeManual, bseries.ModeOff},
		Icon:     "mdi:calendar-clock",
		UniqueId: uniqueId(haDevice.Id, SELECT_SUFFIX_MODE),
	})

	// Function
	selects = append(selects, GenericSelect{
		Device:   haDevice,
		Id:       EntityId(serialNumber, SELECT_SUFFIX_FUNCTION),
		Name:     "Function",
		Options:  []string{bseries.FunctionHeating, bseries.FunctionCooling},
		Icon:     "mdi:sun-snowflake-variant",
		UniqueId: uniqueId(haDevice.Id, SELECT_SUFFIX_FUNCTION),
	})

	return selects
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
