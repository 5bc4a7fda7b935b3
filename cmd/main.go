package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"controlling_dehumidifier/internal/config"
	"controlling_dehumidifier/internal/device/modbus"
	"controlling_dehumidifier/internal/handlers"
	"controlling_dehumidifier/internal/logger"
	"controlling_dehumidifier/internal/mqtt"
	"controlling_dehumidifier/internal/repository"
	"controlling_dehumidifier/internal/repository/db"
	"controlling_dehumidifier/internal/server"
	"controlling_dehumidifier/internal/service"
)

const (
	shutdownTimeout   = 10 * time.Second
	retentionInterval = time.Hour
)

// @title                       Dehumidifier control API
// @version                     1.0
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel, logger.FormatConsole).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer closeDB(sqlDB, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := service.Deps{
		Log:  log,
		Auth: service.AuthSettings{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
	}

	device := connectModbus(cfg.Modbus, log)
	if device != nil {
		defer func() { _ = device.Close() }()
		deps.Writer = device
	}

	mqttClient, publisher := connectMQTT(cfg.MQTT, log)
	if publisher != nil {
		deps.Publishers = append(deps.Publishers, publisher)
		defer func() {
			if err := publisher.SetAvailability(false); err != nil {
				log.Warnw("mqtt_offline_publish_failed", "err", err)
			}
			mqttClient.Disconnect()
		}()
	}

	var repoOpts []repository.Option
	if cfg.DB.StateBackend == config.BackendBolt {
		store, err := repository.OpenBoltStore(cfg.DB.BoltPath)
		if err != nil {
			log.Fatalw("failed to open bolt store", "err", err, "path", cfg.DB.BoltPath)
		}
		defer func() { _ = store.Close() }()
		repoOpts = append(repoOpts, repository.WithBolt(store))
		log.Infow("state_backend", "backend", config.BackendBolt, "path", cfg.DB.BoltPath)
	}

	repos := repository.NewRepository(sqlDB, repoOpts...)
	services := service.NewService(repos, deps)
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	if device != nil {
		poller, err := modbus.NewPoller(device, services.Ingestion, cfg.Modbus.PollInterval, log.Named("modbus"))
		if err != nil {
			log.Fatalw("failed to create modbus poller", "err", err)
		}
		go poller.Run(ctx)
	}

	go services.Retention.RunRetention(ctx, cfg.DB.EventRetention, retentionInterval)

	if simulatorRuns(cfg.Simulator, device != nil) {
		go services.Simulator.Run(ctx, cfg.Simulator.Tick)
	} else if cfg.Simulator.Enabled {
		log.Infow("simulator_disabled", "reason", "modbus device connected")
	}

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	waitForShutdown(cancel, srv, log)
}

// simulatorRuns reports whether the simulator should feed ingestion. It only
// stands in for an absent unit: with a connected device its readings would
// overwrite the polled ones.
func simulatorRuns(cfg config.SimulatorConfig, deviceConnected bool) bool {
	return cfg.Enabled && !deviceConnected
}

// connectModbus returns nil when no endpoint is configured or the device is
// unreachable at startup; the service then runs on the simulator and pushes.
func connectModbus(cfg config.ModbusConfig, log *logger.Logger) *modbus.Client {
	if cfg.Endpoint == "" {
		return nil
	}
	c, err := modbus.NewClient(modbus.Config{
		Endpoint: cfg.Endpoint,
		UnitID:   cfg.UnitID,
		Address:  cfg.Address,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		log.Errorw("modbus_connect_failed", "err", err, "endpoint", cfg.Endpoint)
		return nil
	}
	log.Infow("modbus_connected", "endpoint", cfg.Endpoint, "unit_id", cfg.UnitID)
	return c
}

func connectMQTT(cfg config.MQTTConfig, log *logger.Logger) (*mqtt.Client, *mqtt.Publisher) {
	if cfg.Broker == "" {
		return nil, nil
	}
	mlog := log.Named("mqtt")
	c, err := mqtt.New(mqtt.Config{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		Prefix:   cfg.Prefix,
		UseTLS:   cfg.UseTLS,
	}, mlog)
	if err != nil {
		log.Errorw("mqtt_init_failed", "err", err)
		return nil, nil
	}
	if err := c.Connect(); err != nil {
		log.Errorw("mqtt_connect_failed", "err", err, "broker", cfg.Broker)
		return nil, nil
	}
	p := mqtt.NewPublisher(c, mlog)
	if err := p.SetAvailability(true); err != nil {
		log.Warnw("mqtt_online_publish_failed", "err", err)
	}
	return c, p
}

func closeDB(sqlDB *sql.DB, log *logger.Logger) {
	if err := sqlDB.Close(); err != nil {
		log.Errorw("failed to close sqlite", "err", err)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops producers and
// drains in-flight requests.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
