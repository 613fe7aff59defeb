package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ampsupply-controller/internal/config"
	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/gpio"
	"ampsupply-controller/internal/health"
	"ampsupply-controller/internal/link"
	"ampsupply-controller/internal/logging"
	"ampsupply-controller/internal/mqtt"
	"ampsupply-controller/internal/scheduler"
	"ampsupply-controller/internal/server"
	"ampsupply-controller/internal/updater"
)

// Build assembles the production agent: GPIO outputs, the MQTT session, the
// link watcher and the optional scheduler and status server. The returned
// release function frees the GPIO lines and must run after Shutdown.
func Build(cfg *config.Config, version string, log *logging.Logger) (*Agent, func(), error) {
	bank, err := gpio.Open(cfg.GPIO.Chip, log)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := bank.Close(); err != nil {
			log.Warn("failed to close gpio chip", "error", err)
		}
	}

	relayMain, errMain := bank.Output("relay_main", cfg.GPIO.RelayMain)
	dc, errDC := bank.Output("relay_dc", cfg.GPIO.RelayDC)
	led, errLED := bank.Output("led", cfg.GPIO.LED)
	if err := errors.Join(errMain, errDC, errLED); err != nil {
		release()
		return nil, nil, err
	}

	commands := make(core.CommandChannel, 32)
	bus := core.NewEventBus()
	topics := core.Topics{Device: cfg.Device.Name}

	session := mqtt.NewSession(cfg.MQTT, topics, commands, log)

	var vdd health.VoltageSource
	if cfg.VDD.Path != "" {
		vdd = health.FileVoltage{Path: cfg.VDD.Path, Divisor: cfg.VDD.Divisor}
	}
	reporter := health.NewReporter(health.ParseImage(cfg.Firmware.Image), version, vdd, cfg.Timing.ReportEvery, log)

	services := []Service{
		sessionService{session},
		link.NewWatcher(cfg.Link.Interface, cfg.Link.PollInterval, commands, log),
	}

	sched, err := scheduler.New(cfg.Schedules, commands, log)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("schedules: %w", err)
	}
	if len(cfg.Schedules) > 0 {
		services = append(services, cronService{sched})
	}

	if cfg.Server.Enabled {
		srv := server.NewServer(bus, sched.GetAll, cfg.Server.Port, cfg.Server.AllowedOrigins, log)
		services = append(services, statusService{srv: srv, log: log})
	}

	a := New(Options{
		Topics:    topics,
		Session:   session,
		Updater:   updater.New(cfg.Firmware, log),
		Reporter:  reporter,
		Main:      relayMain,
		DC:        dc,
		LED:       led,
		Settle:    cfg.Timing.Settle,
		BlinkBase: cfg.Timing.BlinkBase,
		Bus:       bus,
		Commands:  commands,
		Services:  services,
		Logger:    log,
	})
	return a, release, nil
}

// Recover is the bootstrap failure path: without a usable configuration the
// device cannot reach its broker, so it hands itself to the updater.
func Recover(log *logging.Logger) error {
	u := updater.New(config.Default().Firmware, log)
	if err := u.MarkBootToUpdater(); err != nil {
		return err
	}
	return u.Reboot()
}

type sessionService struct {
	session *mqtt.Session
}

func (s sessionService) Run(ctx context.Context) {
	s.session.Run(ctx)
	s.session.Stop()
}

type cronService struct {
	sched *scheduler.Scheduler
}

func (c cronService) Run(ctx context.Context) {
	c.sched.Start()
	<-ctx.Done()
	c.sched.Stop()
}

type statusService struct {
	srv *server.Server
	log *logging.Logger
}

func (s statusService) Run(ctx context.Context) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil {
			s.log.Error("status server error", "error", err)
		}
	}()

	s.srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("status server shutdown", "error", err)
	}
}
