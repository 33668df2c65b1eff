package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khirayama/reader-sub001/internal/config"
	"github.com/khirayama/reader-sub001/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset persisted UI state",
}

var statePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the state database path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.StatePath())
	},
}

var stateStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show state database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.StatePath()
		st, err := state.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening state db: %w", err)
		}
		defer st.Close()

		views, size, err := st.Stats(dbPath)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		fmt.Printf("State: %s\n", dbPath)
		fmt.Printf("Remembered views: %d\n", views)
		fmt.Printf("Size: %s\n", formatBytes(size))
		return nil
	},
}

var stateClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the active view and all scroll positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := state.Open(config.StatePath())
		if err != nil {
			return fmt.Errorf("opening state db: %w", err)
		}
		defer st.Close()

		if err := st.Clear(); err != nil {
			return fmt.Errorf("clearing state: %w", err)
		}
		fmt.Println("State cleared.")
		return nil
	},
}

func init() {
	stateCmd.AddCommand(statePathCmd)
	stateCmd.AddCommand(stateStatsCmd)
	stateCmd.AddCommand(stateClearCmd)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
