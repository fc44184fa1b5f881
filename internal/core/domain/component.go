package domain

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string // sensor, binary_sensor
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement
	DeviceClass       string // temperature, humidity, running, connectivity
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

type GenericClimate struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Modes    []string
	MinTemp  float64
	MaxTemp  float64
	TempStep float64
	Icon     string
}

type GenericSelect struct {
	Device         Device
	Id             string
	Name           string
	UniqueId       string
	Options        []string
	EntityCategory string
	Icon           string
}
