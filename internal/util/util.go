package util

import (
	"go.uber.org/zap"

	"computherm2mqtt/internal/config"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Cloud: config.CloudConfig{
			BaseURL:       "http://127.0.0.1:0",
			Email:         "test@example.com",
			Password:      "secret",
			TimeoutMillis: 5000,
		},
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "computherm",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		MonitorConfig: config.MonitorConfig{
			RescanIntervalMinutes: 0,
		},
		Port: 8080,
	}
}
