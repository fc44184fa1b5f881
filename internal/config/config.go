package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Cloud    CloudConfig `mapstructure:"cloud"`
	MQTT     MQTTConfig  `mapstructure:"mqtt"`

	MonitorConfig MonitorConfig `mapstructure:"monitor"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

type CloudConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Email         string
	Password      string
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MonitorConfig struct {
	// 0 disables the periodic base_info re-scan
	RescanIntervalMinutes uint32 `mapstructure:"rescan_interval_minutes"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

func CheckCloudConfig(cfg CloudConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		return errors.New("cloud account email and password are required")
	}
	if cfg.TimeoutMillis < 1000 {
		return errors.New("cloud timeout must be at least 1000 ms")
	}
	return nil
}
