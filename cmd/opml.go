package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/khirayama/reader-sub001/internal/api"
	"github.com/khirayama/reader-sub001/internal/config"
)

var opmlCmd = &cobra.Command{
	Use:   "opml",
	Short: "Import or export feed subscriptions as OPML",
}

var opmlImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import feed subscriptions from an OPML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening OPML file: %w", err)
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		result, err := client.ImportOPML(ctx, filepath.Base(args[0]), f)
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}

		fmt.Printf("Imported %d feed(s)", result.Imported)
		if result.Failed > 0 {
			fmt.Printf(", %d failed", result.Failed)
		}
		fmt.Println(".")
		for _, e := range result.Errors {
			fmt.Printf("  [warn] %s\n", e)
		}
		return nil
	},
}

var flagOPMLOut string

var opmlExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export feed subscriptions to an OPML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		data, err := client.ExportOPML(ctx)
		if err != nil {
			return fmt.Errorf("exporting: %w", err)
		}

		if flagOPMLOut == "" || flagOPMLOut == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(flagOPMLOut, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", flagOPMLOut, err)
		}
		fmt.Printf("Wrote %s.\n", flagOPMLOut)
		return nil
	},
}

func init() {
	opmlExportCmd.Flags().StringVarP(&flagOPMLOut, "out", "o", "", "output file (default: stdout)")
	opmlCmd.AddCommand(opmlImportCmd)
	opmlCmd.AddCommand(opmlExportCmd)
}

// newClient builds an API client from config, for one-shot commands
// that run outside the TUI.
func newClient() (*api.Client, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return api.New(cfg.ServerURL, cfg.Token(), api.WithTimeout(cfg.Timeout())), nil
}
