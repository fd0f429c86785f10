package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/opbridge"
	"github.com/aretw0/opbridge/pkg/config"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/stream"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to a redis channel or poll a URL until interrupted",
	Long: `Opens a subscription and prints every value it delivers.

--channel subscribes to a redis pub/sub channel (requires redis.addr).
--url polls the URL and prints the body whenever it changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		url, _ := cmd.Flags().GetString("url")
		interval, _ := cmd.Flags().GetDuration("interval")
		if (channel == "") == (url == "") {
			return errors.New("exactly one of --channel or --url is required")
		}

		s, err := openSession(cmd, func(cfg *config.Config) {
			if interval > 0 {
				cfg.Stream.PollInterval = config.Duration(interval)
			}
		})
		if err != nil {
			return err
		}
		defer s.Close()

		var sub *stream.Subscription[string]
		if channel != "" {
			if s.host.Source == nil {
				return errors.New("--channel requires redis.addr in the configuration")
			}
			sub, err = opbridge.Subscribe(s.host.Bridge, channel, s.host.Source.Messages(channel))
		} else {
			sub, err = opbridge.PollNetwork(s.host.Bridge, url, domain.NetworkRequest{Method: "GET", URL: url},
				func(resp domain.NetworkResponse) (string, error) { return string(resp.Body), nil })
		}
		if err != nil {
			return err
		}

		s.printer.Message("Watching %s (subscription %s). Press Ctrl+C to stop.", sub.Name(), sub.ID())
		for v := range sub.Values(s.Context()) {
			if err := s.printer.Value(v); err != nil {
				return err
			}
		}

		sub.Cancel()
		<-sub.Done()
		if sig := s.signals.Signal(); sig != nil {
			s.printer.Message("Stopped by %v.", sig)
			return nil
		}
		if err := sub.Err(); err != nil && !errors.Is(err, domain.ErrStreamFinished) && !errors.Is(err, domain.ErrSubscriptionCancelled) {
			return fmt.Errorf("subscription %s: %w", sub.Name(), err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("channel", "", "Redis channel to subscribe to")
	watchCmd.Flags().String("url", "", "URL to poll")
	watchCmd.Flags().Duration("interval", 0, fmt.Sprintf("Poll interval (default from config, %s)", stream.DefaultPollInterval))
}
