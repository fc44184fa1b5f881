package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	adactor "computherm2mqtt/internal/adapter/actor"
	"computherm2mqtt/internal/config"
	"computherm2mqtt/internal/core/actor"
	"computherm2mqtt/internal/core/domain"
	"computherm2mqtt/internal/core/port"
	"computherm2mqtt/internal/server"
	"computherm2mqtt/internal/util/actorutil"
	"computherm2mqtt/pkg/bseries"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, cloudActorProvider(cfg, logger), mqttActorProvider(cfg, logger), streamFactory(), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	// periodic base_info re-scan
	scheduler, err := startRescanScheduler(cfg, ctx, pid)
	if err != nil {
		logger.Error("could not start rescan scheduler", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	if scheduler != nil {
		scheduler.Stop()
	}
	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => COMPUTHERM_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("COMPUTHERM_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("computherm")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check cloud account params
	if err := config.CheckCloudConfig(cfg.Cloud); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func cloudActorProvider(cfg *config.Config, logger *zap.Logger) actor.CloudActorProvider {
	client := bseries.NewClient(cfg.Cloud.BaseURL, cfg.Cloud.Email, cfg.Cloud.Password,
		time.Duration(cfg.Cloud.TimeoutMillis)*time.Millisecond)
	return func() *adactor.CloudActor {
		return adactor.NewCloudActor(client, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}

func streamFactory() port.StreamFactory {
	return func(cfg bseries.StreamConfig, handler bseries.StreamHandler) port.DeviceStream {
		return bseries.NewStream(cfg, handler)
	}
}

// startRescanScheduler fires a DeviceRescanTick every rescan interval so
// diagnostics and relay configs stay fresh even without state changes.
func startRescanScheduler(cfg *config.Config, ctx *pactor.RootContext, master *pactor.PID) (quartz.Scheduler, error) {
	if cfg.MonitorConfig.RescanIntervalMinutes == 0 {
		return nil, nil
	}
	scheduler, err := quartz.NewStdScheduler()
	if err != nil {
		return nil, err
	}
	scheduler.Start(context.Background())

	interval := time.Duration(cfg.MonitorConfig.RescanIntervalMinutes) * time.Minute
	rescanJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		ctx.Send(master, domain.DeviceRescanTick{})
		return true, nil
	})
	err = scheduler.ScheduleJob(quartz.NewJobDetail(rescanJob, quartz.NewJobKey("device_rescan")),
		quartz.NewSimpleTrigger(interval))
	if err != nil {
		scheduler.Stop()
		return nil, err
	}
	return scheduler, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("cloud.base_url", bseries.DefaultBaseURL)
	viper.SetDefault("cloud.timeout_millis", 30000)
	viper.SetDefault("mqtt.ha_discovery_enable", true)
	viper.SetDefault("mqtt.base_topic", "computherm")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("monitor.rescan_interval_minutes", 360)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.Cloud.Password = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
