package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarvis-proto/jarvisd/pkg/events"
)

func newEventsCmd() *cobra.Command {
	var (
		configPath string
		event      string
		turnID     string
		since      time.Duration
		limit      int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the persistent event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			eventLog, err := events.New(cfg.EventsPath, cfg.Events)
			if err != nil {
				return err
			}
			defer func() { _ = eventLog.Close() }()

			opts := events.QueryOpts{Event: event, TurnID: turnID, Limit: limit}
			if since > 0 {
				opts.Since = time.Now().UTC().Add(-since)
			}
			entries, err := eventLog.Query(context.Background(), opts)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tEVENT\tTURN\tPAYLOAD")
			for _, e := range entries {
				payload := ""
				if len(e.Payload) > 0 {
					if b, err := json.Marshal(e.Payload); err == nil {
						payload = string(b)
					}
				}
				turn := e.TurnID
				if len(turn) > 8 {
					turn = turn[:8]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02T15:04:05"), e.Event, turn, payload)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "jarvisd.yaml", "path to config file")
	cmd.Flags().StringVar(&event, "event", "", "filter by event name")
	cmd.Flags().StringVar(&turnID, "turn", "", "filter by turn id")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this (e.g. 2h)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}
