package domain

import "fmt"

// ThermostatCommandRequest

type ThermostatCommandRequest interface {
	ActorRequest
	ThermostatCommand() string
	TargetSerialNumber() string
}

type ThermostatCommandRequestMixIn struct {
	ActorRequestMixIn
	SerialNumber string
}

func (r ThermostatCommandRequestMixIn) ThermostatCommand() string {
	return fmt.Sprintf("%T", r)
}

func (r ThermostatCommandRequestMixIn) TargetSerialNumber() string {
	return r.SerialNumber
}

// ThermostatCommandResponse

type ThermostatCommandResponse interface {
	ActorResponse
	ThermostatCommandResponse() string
}

type ThermostatCommandResponseMixIn struct {
	ActorResponse
}

func (r ThermostatCommandResponseMixIn) ThermostatCommandResponse() string {
	return fmt.Sprintf("%T", r)
}

// Thermostat commands

type SetTargetTemperatureRequest struct {
	ThermostatCommandRequestMixIn
	Celsius float64
}

type SetTargetTemperatureResponse struct {
	ThermostatCommandResponseMixIn
}

// SetHVACModeRequest carries a Home Assistant climate mode (heat, cool or
// off). heat/cool switch the device function and force MANUAL when the
// device is currently off.
type SetHVACModeRequest struct {
	ThermostatCommandRequestMixIn
	HVACMode string
}

type SetHVACModeResponse struct {
	ThermostatCommandResponseMixIn
}

type SetModeRequest struct {
	ThermostatCommandRequestMixIn
	Mode string
}

type SetModeResponse struct {
	ThermostatCommandResponseMixIn
}

type SetFunctionRequest struct {
	ThermostatCommandRequestMixIn
	Function string
}

type SetFunctionResponse struct {
	ThermostatCommandResponseMixIn
}

// ensure interface compliance
var _ ThermostatCommandRequest = (*SetTargetTemperatureRequest)(nil)
