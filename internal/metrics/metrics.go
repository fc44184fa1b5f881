package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"computherm2mqtt/internal/core/domain"
)

// Registry holds the bridge's own metrics, served on /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	StreamReconnects = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "computherm",
		Name:      "stream_reconnects_total",
		Help:      "Number of websocket stream reconnect attempts.",
	})

	MQTTPublishes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "computherm",
		Name:      "mqtt_publishes_total",
		Help:      "Number of MQTT messages published.",
	})

	TokenRefreshes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "computherm",
		Name:      "token_refreshes_total",
		Help:      "Number of access token refreshes.",
	})

	deviceTemperature = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "computherm",
		Name:      "device_temperature_celsius",
		Help:      "Last reported temperature per device.",
	}, []string{"serial"})

	deviceHumidity = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "computherm",
		Name:      "device_humidity_percent",
		Help:      "Last reported relative humidity per device.",
	}, []string{"serial"})

	deviceTargetTemperature = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "computherm",
		Name:      "device_target_temperature_celsius",
		Help:      "Current setpoint per device.",
	}, []string{"serial"})

	deviceRelayOn = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "computherm",
		Name:      "device_relay_on",
		Help:      "Relay state per device (1 = on).",
	}, []string{"serial"})

	deviceOnline = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "computherm",
		Name:      "device_online",
		Help:      "Cloud connectivity per device (1 = online).",
	}, []string{"serial"})
)

// ObserveDeviceState refreshes the per-device gauges from a state snapshot.
func ObserveDeviceState(state domain.DeviceState) {
	serial := state.SerialNumber
	if state.Temperature != nil {
		deviceTemperature.WithLabelValues(serial).Set(*state.Temperature)
	}
	if state.Humidity != nil {
		deviceHumidity.WithLabelValues(serial).Set(*state.Humidity)
	}
	if state.TargetTemperature != nil {
		deviceTargetTemperature.WithLabelValues(serial).Set(*state.TargetTemperature)
	}
	deviceRelayOn.WithLabelValues(serial).Set(boolToGauge(state.RelayOn))
	deviceOnline.WithLabelValues(serial).Set(boolToGauge(state.Online))
}

func boolToGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
