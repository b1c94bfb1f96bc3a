package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarvis-proto/jarvisd/pkg/breaker"
	"github.com/jarvis-proto/jarvisd/pkg/config"
	"github.com/jarvis-proto/jarvisd/pkg/costs"
	"github.com/jarvis-proto/jarvisd/pkg/events"
	"github.com/jarvis-proto/jarvisd/pkg/llm"
	"github.com/jarvis-proto/jarvisd/pkg/ratelimit"
	"github.com/jarvis-proto/jarvisd/pkg/router"
	"github.com/jarvis-proto/jarvisd/pkg/scheduler"
	"github.com/jarvis-proto/jarvisd/pkg/tools"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the interactive loop, reading text turns from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "jarvisd.yaml", "path to config file")
	return cmd
}

func serve(cfg *config.Config) error {
	tracker, err := costs.New(cfg.DBPath, cfg.Budget)
	if err != nil {
		return err
	}
	defer func() { _ = tracker.Close() }()

	var notifier scheduler.Notifier
	if cfg.Events.Enabled {
		eventLog, err := events.New(cfg.EventsPath, cfg.Events)
		if err != nil {
			return err
		}
		defer func() { _ = eventLog.Close() }()
		notifier = eventLog
	}

	limiter := ratelimit.New(cfg.RateLimits)
	r := router.New(cfg.Router, tracker, cfg.Premium.APIKey != "")

	var fastBreaker, premiumBreaker *breaker.Breaker
	if b, ok := cfg.Breakers["fast"]; ok {
		fastBreaker = breaker.New("fast", b.FailureThreshold, b.Cooldown)
	}
	if b, ok := cfg.Breakers["premium"]; ok {
		premiumBreaker = breaker.New("premium", b.FailureThreshold, b.Cooldown)
	}

	sched := scheduler.New(scheduler.Options{
		Router:         r,
		Limiter:        limiter,
		Tracker:        tracker,
		Tools:          builtinTools(),
		Fast:           llm.NewScripted("(fast tier reply)"),
		Premium:        llm.NewScripted("(premium tier reply)"),
		FastBreaker:    fastBreaker,
		PremiumBreaker: premiumBreaker,
		Notifier:       notifier,
		QueueCapacity:  cfg.Queue.Capacity,
		PremiumModel:   cfg.Premium.Model,
	})
	sched.Start()
	defer sched.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("jarvisd ready: fast=%s premium=%s queue=%d", cfg.Fast.Model, cfg.Premium.Model, cfg.Queue.Capacity)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Printf("shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			sub := sched.SubmitText(ctx, text, "text")
			switch {
			case sub.RateLimited:
				fmt.Printf("rate limited, retry in %s\n", sub.RetryAfter.Round(time.Second))
			case sub.Queued:
				fmt.Printf("queued (%d waiting)\n", sub.QueueSize)
			default:
				fmt.Printf("\n> %s\n", sub.Response)
			}
		}
	}
}

// builtinTools registers the handful of direct-dispatch tools the
// classifier can target. Real integrations replace these bodies; the
// registry contract stays the same.
func builtinTools() *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register("weather.current", func(ctx context.Context, args map[string]string) (string, error) {
		loc := args["location"]
		if loc == "" {
			loc = "auto"
		}
		return fmt.Sprintf("weather lookup for %s is not connected yet", loc), nil
	})
	reg.Register("calendar.today", func(ctx context.Context, args map[string]string) (string, error) {
		return "calendar is not connected yet", nil
	})
	reg.Register("notes.add", func(ctx context.Context, args map[string]string) (string, error) {
		if args["content"] == "" {
			return "", fmt.Errorf("notes.add: empty content")
		}
		return fmt.Sprintf("noted (%s): %s", args["tag"], args["content"]), nil
	})
	reg.Register("notes.list", func(ctx context.Context, args map[string]string) (string, error) {
		return "no notes stored", nil
	})
	reg.Register("vision.look", func(ctx context.Context, args map[string]string) (string, error) {
		return "camera is not connected yet", nil
	})
	reg.Register("pi.system_info", func(ctx context.Context, args map[string]string) (string, error) {
		host, _ := os.Hostname()
		return fmt.Sprintf("host %s is up", host), nil
	})
	return reg
}
