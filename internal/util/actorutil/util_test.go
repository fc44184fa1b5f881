package actorutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"computherm2mqtt/internal/core/domain"
	"computherm2mqtt/internal/mqtt"
	"computherm2mqtt/pkg/bseries"
)

func TestParseClimateTemperatureCommand(t *testing.T) {

	assert := assert.New(t)

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ab01cd02",
		Command:  mqtt.COMMAND_CLIMATE_TEMPERATURE,
		Payload:  "21.5",
	})

	assert.NoError(err)
	req, ok := cmd.(domain.SetTargetTemperatureRequest)
	assert.True(ok, "temperature request type")
	assert.Equal(req.TargetSerialNumber(), "ab01cd02", "serial")
	assert.Equal(req.Celsius, 21.5, "temperature")
}

func TestParseClimateTemperatureCommandBadPayload(t *testing.T) {

	assert := assert.New(t)

	_, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ab01cd02",
		Command:  mqtt.COMMAND_CLIMATE_TEMPERATURE,
		Payload:  "warm",
	})

	assert.Error(err, "non numeric payload")
}

func TestParseClimateModeCommand(t *testing.T) {

	assert := assert.New(t)

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ab01cd02",
		Command:  mqtt.COMMAND_CLIMATE_MODE,
		Payload:  "OFF",
	})

	assert.NoError(err)
	req, ok := cmd.(domain.SetHVACModeRequest)
	assert.True(ok, "hvac mode request type")
	assert.Equal(req.HVACMode, domain.HVAC_MODE_OFF, "mode lowercased")

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ab01cd02",
		Command:  mqtt.COMMAND_CLIMATE_MODE,
		Payload:  "auto",
	})
	assert.Error(err, "unsupported hvac mode")
}

func TestParseSelectCommands(t *testing.T) {

	assert := assert.New(t)

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ab01cd02_mode",
		Command:  mqtt.COMMAND_SELECT,
		Payload:  "manual",
	})

	assert.NoError(err)
	modeReq, ok := cmd.(domain.SetModeRequest)
	assert.True(ok, "mode request type")
	assert.Equal(modeReq.TargetSerialNumber(), "ab01cd02", "serial split from select id")
	assert.Equal(modeReq.Mode, bseries.ModeManual, "mode")

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ab01cd02_function",
		Command:  mqtt.COMMAND_SELECT,
		Payload:  "cooling",
	})

	assert.NoError(err)
	funcReq, ok := cmd.(domain.SetFunctionRequest)
	assert.True(ok, "function request type")
	assert.Equal(funcReq.Function, bseries.FunctionCooling, "function")

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ab01cd02_mode",
		Command:  mqtt.COMMAND_SELECT,
		Payload:  "party",
	})
	assert.Error(err, "unknown select option")
}

func TestParseUnknownCommand(t *testing.T) {

	assert := assert.New(t)

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ab01cd02",
		Command:  "lorem",
		Payload:  "ipsum",
	})

	assert.NoError(err)
	assert.Nil(cmd, "unmatched command maps to nil")
}
