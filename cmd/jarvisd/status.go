package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the effective configuration for this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			fmt.Printf("fast backend:    %s\n", cfg.Fast.Model)
			fmt.Printf("premium backend: %s (key configured: %v)\n", cfg.Premium.Model, cfg.Premium.APIKey != "")
			fmt.Printf("router enabled:  %v (simple<%d words, complex>%d words)\n",
				cfg.Router.Enabled, cfg.Router.SimpleWordThreshold, cfg.Router.ComplexWordThreshold)
			fmt.Printf("budget:          $%.2f/day, $%.2f/month (warn at %.0f%%)\n",
				cfg.Budget.DailyUSD, cfg.Budget.MonthlyUSD, cfg.Budget.WarnThreshold*100)
			fmt.Printf("queue capacity:  %d\n", cfg.Queue.Capacity)

			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tLIMIT\tWINDOW")
			sources := make([]string, 0, len(cfg.RateLimits))
			for source := range cfg.RateLimits {
				sources = append(sources, source)
			}
			sort.Strings(sources)
			for _, source := range sources {
				rl := cfg.RateLimits[source]
				fmt.Fprintf(w, "%s\t%d\t%s\n", source, rl.Max, rl.Window)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Println()
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BREAKER\tTHRESHOLD\tCOOLDOWN")
			names := make([]string, 0, len(cfg.Breakers))
			for name := range cfg.Breakers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				b := cfg.Breakers[name]
				fmt.Fprintf(w, "%s\t%d\t%s\n", name, b.FailureThreshold, b.Cooldown)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "jarvisd.yaml", "path to config file")
	return cmd
}
