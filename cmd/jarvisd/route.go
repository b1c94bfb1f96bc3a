package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jarvis-proto/jarvisd/pkg/config"
	"github.com/jarvis-proto/jarvisd/pkg/costs"
	"github.com/jarvis-proto/jarvisd/pkg/router"
)

func newRouteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "route <text>",
		Short: "Classify text and print the routing decision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			tr, err := costs.New(cfg.DBPath, cfg.Budget)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			r := router.New(cfg.Router, tr, cfg.Premium.APIKey != "")
			decision := r.Classify(context.Background(), strings.Join(args, " "), nil)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "jarvisd.yaml", "path to config file")
	return cmd
}

// loadConfig falls back to defaults when the config file does not exist,
// so every command works out of the box.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}
