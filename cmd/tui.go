package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khirayama/reader-sub001/internal/api"
	"github.com/khirayama/reader-sub001/internal/config"
	"github.com/khirayama/reader-sub001/internal/logging"
	"github.com/khirayama/reader-sub001/internal/notify"
	"github.com/khirayama/reader-sub001/internal/retry"
	"github.com/khirayama/reader-sub001/internal/state"
	"github.com/khirayama/reader-sub001/internal/stream"
	"github.com/khirayama/reader-sub001/internal/tui"
	"github.com/khirayama/reader-sub001/internal/update"
)

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(config.LogPath(), cfg.Debug)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	st, err := state.Open(config.StatePath())
	if err != nil {
		// UI state is a convenience; run without it rather than fail.
		log.Warn("opening state db", zap.Error(err))
		st = nil
	} else {
		defer st.Close()
	}

	client := api.New(cfg.ServerURL, cfg.Token(),
		api.WithTimeout(cfg.Timeout()),
		api.WithLogger(log),
	)

	bus := notify.NewBus()
	retrier := retry.New(
		retry.WithMaxRetries(cfg.GetMaxRetries()),
		retry.WithNotifier(bus.Publish),
		retry.WithLogger(log),
	)

	coord := stream.NewCoordinator(client, retrier,
		stream.WithPageSize(cfg.GetPageSize()),
		stream.WithCoordinatorLogger(log),
	)

	// Non-blocking version check; result goes to the log only, the TUI
	// owns the terminal.
	go func() {
		if r := update.Check(context.Background(), version); r != nil {
			log.Info("newer version available", zap.String("latest", r.LatestVersion))
		}
	}()

	return tui.Run(tui.RunOpts{
		Coordinator: coord,
		Bus:         bus,
		State:       st,
		Logger:      log,
	})
}
