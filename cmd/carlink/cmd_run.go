// cmd/carlink/cmd_run.go
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/camera"
	"github.com/tamzrod/carlink/internal/config"
	"github.com/tamzrod/carlink/internal/emitter"
	"github.com/tamzrod/carlink/internal/framequeue"
	"github.com/tamzrod/carlink/internal/logging"
	"github.com/tamzrod/carlink/internal/session"
	"github.com/tamzrod/carlink/internal/writer"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <config>",
		Short: "Run the vehicle side",
		Long:  "Connects to the microcontroller and the station, streams camera frames\nwith telemetry, and applies station commands until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0], config.Validate)
			if err != nil {
				return err
			}

			log, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runVehicle(ctx, cfg, log)
		},
	}
}

func runVehicle(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log = log.With(zap.String("session_id", cfg.Session.ID))

	opts := []session.Option{session.WithLogger(log)}

	// --------------------
	// Optional status export
	// --------------------
	statusWriter, closeStatus, err := writer.BuildStatusWriter(cfg.Status, cfg.Session.Name)
	if err != nil {
		return err
	}
	defer func() { _ = closeStatus() }()
	if statusWriter != nil {
		log.Info("status export enabled",
			zap.String("endpoint", cfg.Status.Endpoint),
			zap.Uint8("unit_id", cfg.Status.UnitID),
			zap.Uint16("slot", cfg.Status.Slot),
		)
		opts = append(opts, session.WithStatusWriter(statusWriter))
	}

	// --------------------
	// Optional MQTT mirror (a broker outage never stops the vehicle)
	// --------------------
	if cfg.MQTT.Broker != "" {
		em, err := emitter.Connect(cfg.MQTT, cfg.Session.ID, log.Named("mqtt"))
		if err != nil {
			log.Warn("mqtt disabled", zap.Error(err))
		} else {
			defer em.Close()
			opts = append(opts, session.WithEvents(em))
		}
	}

	// --------------------
	// Camera
	// --------------------
	var src camera.Source
	switch cfg.Camera.Source {
	case "synthetic":
		pool := camera.NewPool(camera.FrameSize(cfg.Camera.Width, cfg.Camera.Height), framequeue.Capacity+2)
		src = &camera.Synthetic{Width: cfg.Camera.Width, Height: cfg.Camera.Height, FPS: cfg.Camera.FPS, Pool: pool}
		opts = append(opts, session.WithRecycle(pool.Put))
	case "dir":
		src = &camera.Dir{Path: cfg.Camera.Dir, Width: cfg.Camera.Width, Height: cfg.Camera.Height, Log: log.Named("camera")}
	}

	s, err := session.New(*cfg, opts...)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if src != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := src.Run(ctx, s); err != nil {
				log.Error("camera stopped", zap.Error(err))
			}
		}()
	}

	err = s.Run(ctx)
	wg.Wait()
	return err
}
