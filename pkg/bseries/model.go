package bseries

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	ReadingTypeTemperature       = "TEMPERATURE"
	ReadingTypeHumidity          = "HUMIDITY"
	ReadingTypeTargetTemperature = "TARGET_TEMPERATURE"

	RelayStateOn  = "ON"
	RelayStateOff = "OFF"

	ModeSchedule = "schedule"
	ModeManual   = "manual"
	ModeOff      = "off"

	FunctionHeating = "heating"
	FunctionCooling = "cooling"

	DefaultSetpointMin = 5
	DefaultSetpointMax = 30
)

// Device is one entry of the GET /api/devices response.
type Device struct {
	ID              int    `json:"id"`
	SerialNumber    string `json:"serial_number"`
	Brand           string `json:"brand"`
	Type            string `json:"type"`
	UserID          int    `json:"user_id"`
	FirmwareVersion string `json:"fw_ver"`
	DeviceIP        string `json:"device_ip"`
	DeviceType      string `json:"device_type"`
	AccessStatus    string `json:"access_status"`
}

// Command is the body of POST /api/devices/{id}/cmd. The thermostat only
// exposes relay 1, so Relay is always set to 1 by the helpers below.
type Command struct {
	Relay          int      `json:"relay"`
	ManualSetPoint *float64 `json:"manual_set_point,omitempty"`
	Mode           string   `json:"mode,omitempty"`
	Function       string   `json:"function,omitempty"`
}

func SetPointCommand(celsius float64) Command {
	// the API accepts one decimal of precision
	rounded := float64(int(celsius*10+0.5)) / 10
	return Command{Relay: 1, ManualSetPoint: &rounded}
}

func ModeCommand(mode string) Command {
	return Command{Relay: 1, Mode: strings.ToUpper(mode)}
}

func FunctionCommand(function string) Command {
	return Command{Relay: 1, Function: strings.ToUpper(function)}
}

// optFloat decodes reading values that arrive either as a JSON number or as
// the literal string "N/A".
type optFloat struct {
	Value *float64
}

func (o *optFloat) UnmarshalJSON(data []byte) error {
	// null would otherwise decode as a no-op and read back as 0
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var asFloat float64
	if err := json.Unmarshal(data, &asFloat); err == nil {
		o.Value = &asFloat
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return err
	}
	// "N/A" and anything non-numeric means the reading is unknown
	o.Value = nil
	return nil
}

type wireReading struct {
	ID        int       `json:"id"`
	Sensor    any       `json:"sensor"`
	Src       *string   `json:"src"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Reading   *optFloat `json:"reading"`
	Battery   *string   `json:"battery"`
	RSSI      *string   `json:"rssi"`
	RSSILevel *string   `json:"rssi_level"`
}

type wireRelayConfigs struct {
	SetpointMin *float64 `json:"setpoint_min"`
	SetpointMax *float64 `json:"setpoint_max"`
}

type wireRelay struct {
	Relay          int               `json:"relay"`
	RelayState     *string           `json:"relay_state"`
	Function       *string           `json:"function"`
	Mode           *string           `json:"mode"`
	ManualSetPoint *optFloat         `json:"manual_set_point"`
	Configs        *wireRelayConfigs `json:"configs"`
}

type wireBaseInfo struct {
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`
}

type wireEvent struct {
	SerialNumber string        `json:"serial_number"`
	Online       bool          `json:"online"`
	BaseInfo     *wireBaseInfo `json:"base_info"`
	Readings     []wireReading `json:"readings"`
	Relays       []wireRelay   `json:"relays"`
}

// BaseInfo is the decoded one-shot device description emitted after a scan.
type BaseInfo struct {
	Name        string
	SensorIDs   []string
	RelayIDs    []string
	SetpointMin float64
	SetpointMax float64
}

// DeviceUpdate is one decoded device event. Pointer fields are nil when the
// event did not carry that attribute; online is always present.
type DeviceUpdate struct {
	SerialNumber      string
	Online            bool
	Temperature       *float64
	Humidity          *float64
	TargetTemperature *float64
	Function          *string
	Mode              *string
	RelayOn           *bool
	Battery           *string
	RSSI              *string
	RSSILevel         *string
	Source            *string
	BaseInfo          *BaseInfo
}

// decodeDeviceUpdate maps a raw "event" payload onto a DeviceUpdate,
// normalizing "N/A" readings to nil and lowercasing enum-like strings.
func decodeDeviceUpdate(data []byte) (*DeviceUpdate, error) {
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}

	upd := &DeviceUpdate{
		SerialNumber: ev.SerialNumber,
		Online:       ev.Online,
	}

	if ev.BaseInfo != nil {
		if upd.SerialNumber == "" {
			upd.SerialNumber = ev.BaseInfo.SerialNumber
		}
		upd.BaseInfo = decodeBaseInfo(ev.BaseInfo, ev.Readings, ev.Relays)
	}

	for i := range ev.Readings {
		applyReading(upd, &ev.Readings[i])
	}
	for i := range ev.Relays {
		applyRelay(upd, &ev.Relays[i])
	}

	return upd, nil
}

func decodeBaseInfo(info *wireBaseInfo, readings []wireReading, relays []wireRelay) *BaseInfo {
	base := &BaseInfo{
		Name:        info.Name,
		SetpointMin: DefaultSetpointMin,
		SetpointMax: DefaultSetpointMax,
	}
	for i := range readings {
		base.SensorIDs = append(base.SensorIDs, anyToString(readings[i].Sensor))
	}
	for i := range relays {
		base.RelayIDs = append(base.RelayIDs, strconv.Itoa(relays[i].Relay))
		if cfg := relays[i].Configs; cfg != nil {
			if cfg.SetpointMin != nil {
				base.SetpointMin = *cfg.SetpointMin
			}
			if cfg.SetpointMax != nil {
				base.SetpointMax = *cfg.SetpointMax
			}
		}
	}
	return base
}

func applyReading(upd *DeviceUpdate, r *wireReading) {
	if r.Battery != nil {
		upd.Battery = r.Battery
	}
	if r.RSSI != nil {
		upd.RSSI = r.RSSI
	}
	if r.RSSILevel != nil {
		upd.RSSILevel = lowered(r.RSSILevel)
	}
	if r.Src != nil {
		upd.Source = lowered(r.Src)
	}
	if r.Reading == nil {
		return
	}
	switch r.Type {
	case ReadingTypeTemperature:
		upd.Temperature = r.Reading.Value
	case ReadingTypeHumidity:
		upd.Humidity = r.Reading.Value
	case ReadingTypeTargetTemperature:
		upd.TargetTemperature = r.Reading.Value
	}
}

func applyRelay(upd *DeviceUpdate, r *wireRelay) {
	if r.RelayState != nil {
		on := *r.RelayState == RelayStateOn
		upd.RelayOn = &on
	}
	if r.Function != nil {
		upd.Function = lowered(r.Function)
	}
	if r.Mode != nil {
		upd.Mode = lowered(r.Mode)
	}
	if r.ManualSetPoint != nil {
		upd.TargetTemperature = r.ManualSetPoint.Value
	}
}

func lowered(s *string) *string {
	l := strings.ToLower(*s)
	return &l
}

func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.Itoa(int(t))
	default:
		return ""
	}
}
