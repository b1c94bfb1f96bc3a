package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jarvis-proto/jarvisd/pkg/costs"
)

func newCostCmd() *cobra.Command {
	var (
		configPath string
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Show spend against the daily and monthly budgets",
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

			report, err := tr.Report(context.Background(), recent)
			if err != nil {
				return err
			}

			fmt.Printf("Today:  $%.4f over %d calls (%d in / %d out tokens, %d cache hits)\n",
				report.Today.Spend, report.Today.Calls,
				report.Today.InputTokens, report.Today.OutputTokens, report.Today.CacheHits)
			fmt.Printf("Month:  $%.4f\n", report.MonthlySpend)
			fmt.Printf("Budget: $%.2f/day ($%.4f left), $%.2f/month ($%.4f left)\n",
				report.Budget.DailyLimit, report.Budget.DailyRemaining,
				report.Budget.MonthlyLimit, report.Budget.MonthlyRemaining)
			if report.Warning {
				fmt.Println("WARNING: spend has crossed the warning threshold")
			}

			if len(report.Recent) == 0 {
				return nil
			}
			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tMODEL\tINPUT\tOUTPUT\tCACHE\tCOST\tTYPE\tSUMMARY")
			for _, r := range report.Recent {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t$%.4f\t%s\t%s\n",
					r.Timestamp.Format("2006-01-02T15:04:05"), r.Model,
					r.InputTokens, r.OutputTokens, r.CacheReadTokens,
					r.CostUSD, r.RequestType, r.Summary)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "jarvisd.yaml", "path to config file")
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent records to show")
	return cmd
}
