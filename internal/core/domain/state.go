package domain

import (
	"computherm2mqtt/pkg/bseries"
)

const (
	HVAC_MODE_HEAT = "heat"
	HVAC_MODE_COOL = "cool"
	HVAC_MODE_OFF  = "off"

	HVAC_ACTION_HEATING = "heating"
	HVAC_ACTION_COOLING = "cooling"
	HVAC_ACTION_IDLE    = "idle"
	HVAC_ACTION_OFF     = "off"
)

// DeviceState is the coordinator's cache for one thermostat. Stream events
// are partial, so Apply only overwrites the attributes an update carries.
type DeviceState struct {
	SerialNumber      string
	Name              string
	Online            bool
	Temperature       *float64
	Humidity          *float64
	TargetTemperature *float64
	Mode              string
	Function          string
	RelayOn           bool
	Battery           string
	RSSI              string
	RSSILevel         string
	Source            string
	SetpointMin       float64
	SetpointMax       float64
	HasBaseInfo       bool
}

func NewDeviceState(serialNumber string) DeviceState {
	return DeviceState{
		SerialNumber: serialNumber,
		Mode:         bseries.ModeSchedule,
		Function:     bseries.FunctionHeating,
		SetpointMin:  bseries.DefaultSetpointMin,
		SetpointMax:  bseries.DefaultSetpointMax,
	}
}

// Apply merges one stream update into the cache and reports whether any
// attribute changed.
func (s *DeviceState) Apply(upd *bseries.DeviceUpdate) bool {
	changed := false
	if s.Online != upd.Online {
		s.Online = upd.Online
		changed = true
	}
	changed = applyFloat(&s.Temperature, upd.Temperature) || changed
	changed = applyFloat(&s.Humidity, upd.Humidity) || changed
	changed = applyFloat(&s.TargetTemperature, upd.TargetTemperature) || changed
	changed = applyString(&s.Mode, upd.Mode) || changed
	changed = applyString(&s.Function, upd.Function) || changed
	changed = applyString(&s.Battery, upd.Battery) || changed
	changed = applyString(&s.RSSI, upd.RSSI) || changed
	changed = applyString(&s.RSSILevel, upd.RSSILevel) || changed
	changed = applyString(&s.Source, upd.Source) || changed
	if upd.RelayOn != nil && s.RelayOn != *upd.RelayOn {
		s.RelayOn = *upd.RelayOn
		changed = true
	}
	if upd.BaseInfo != nil {
		s.Name = upd.BaseInfo.Name
		s.SetpointMin = upd.BaseInfo.SetpointMin
		s.SetpointMax = upd.BaseInfo.SetpointMax
		s.HasBaseInfo = true
		changed = true
	}
	return changed
}

// HVACMode maps device mode and function onto a Home Assistant climate mode.
func (s DeviceState) HVACMode() string {
	if s.Mode == bseries.ModeOff {
		return HVAC_MODE_OFF
	}
	if s.Function == bseries.FunctionCooling {
		return HVAC_MODE_COOL
	}
	return HVAC_MODE_HEAT
}

// HVACAction reports what the device is doing right now.
func (s DeviceState) HVACAction() string {
	if !s.Online || s.Mode == bseries.ModeOff {
		return HVAC_ACTION_OFF
	}
	if !s.RelayOn {
		return HVAC_ACTION_IDLE
	}
	if s.Function == bseries.FunctionCooling {
		return HVAC_ACTION_COOLING
	}
	return HVAC_ACTION_HEATING
}

func applyFloat(dst **float64, src *float64) bool {
	if src == nil {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}

func applyString(dst *string, src *string) bool {
	if src == nil || *dst == *src {
		return false
	}
	*dst = *src
	return true
}
