// cmd/carlink/cmd_station.go
package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/config"
	"github.com/tamzrod/carlink/internal/logging"
	"github.com/tamzrod/carlink/internal/station"
	"github.com/tamzrod/carlink/internal/wire"
)

func newStationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "station <config>",
		Short: "Run the operator station",
		Long: "Receives frames from one vehicle and logs them. Each stdin line is sent\n" +
			"as a command: \"Q;60\", \"F\", \"A;1500 1568\", \"P\".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0], config.ValidateStation)
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

			return runStation(ctx, cfg.Station, cmd.InOrStdin(), log)
		},
	}
}

func runStation(ctx context.Context, sc config.StationConfig, in io.Reader, log *zap.Logger) error {
	mode := station.Stream
	if sc.Mode == "datagram" {
		mode = station.Datagram
	}

	st, err := station.New(station.Config{
		Mode:         mode,
		Listen:       sc.Listen,
		Vehicle:      sc.Vehicle,
		PingInterval: time.Duration(sc.PingIntervalMs) * time.Millisecond,
	}, func(remote string, f wire.Frame) {
		log.Info("frame",
			zap.String("vehicle", remote),
			zap.Bool("online", f.Online),
			zap.Int("speed", f.SpeedCommand),
			zap.Int("steering", f.SteeringCommand),
			zap.Float32("distance", f.Distance),
			zap.Int("image_bytes", len(f.Image)),
			zap.Float32s("sensors", f.Sensors),
		)
	}, log)
	if err != nil {
		return err
	}

	go forwardCommands(ctx, st, in, log)
	return st.Run(ctx)
}

// forwardCommands sends each non-empty input line as one command.
func forwardCommands(ctx context.Context, st *station.Station, in io.Reader, log *zap.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		tag, args, ok := parseCommandLine(scanner.Text())
		if !ok {
			continue
		}
		if err := st.Send(tag, args...); err != nil {
			log.Warn("command not sent", zap.String("tag", tag), zap.Error(err))
		}
	}
}

// parseCommandLine splits "A;1500 1568" into its tag and arguments.
// Surrounding brackets are accepted and dropped.
func parseCommandLine(line string) (string, []string, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
	if line == "" {
		return "", nil, false
	}
	parts := strings.Split(line, ";")
	return strings.ToUpper(parts[0]), parts[1:], true
}
