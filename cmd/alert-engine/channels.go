package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/afikmenashe/alert-engine/internal/config"
	"github.com/afikmenashe/alert-engine/internal/hub"
	"github.com/afikmenashe/alert-engine/internal/sender/broadcast"
	"github.com/afikmenashe/alert-engine/internal/sender/email"
	"github.com/afikmenashe/alert-engine/internal/sender/email/provider"
	"github.com/afikmenashe/alert-engine/internal/sender/retry"
	"github.com/afikmenashe/alert-engine/internal/sender/slack"
	"github.com/afikmenashe/alert-engine/internal/sender/strategy"
	"github.com/afikmenashe/alert-engine/internal/sender/stream"
	"github.com/afikmenashe/alert-engine/internal/sender/webhook"
	kafkautil "github.com/afikmenashe/alert-engine/pkg/kafka"
)

// buildChannels registers every channel whose settings are present. The
// broadcast channel is always available. The returned func releases
// channel resources on shutdown.
func buildChannels(ctx context.Context, cfg *config.Config, liveHub *hub.Hub) (*strategy.Registry, func(), error) {
	registry := strategy.NewRegistry()
	closers := []func(){}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.Channels.RetryMaxRetries
	register := func(s strategy.NotificationSender) {
		if slices.Contains(cfg.Channels.RetryChannels, s.Type()) {
			s = retry.Wrap(s, retryCfg)
		}
		registry.Register(s)
	}

	register(broadcast.NewSender(liveHub))

	if url := cfg.Channels.WebhookURL; url != "" {
		s, err := webhook.NewSender(url)
		if err != nil {
			return nil, nil, fmt.Errorf("webhook channel: %w", err)
		}
		register(s)
	}

	if url := cfg.Channels.SlackWebhookURL; url != "" {
		s, err := slack.NewSender(url)
		if err != nil {
			return nil, nil, fmt.Errorf("slack channel: %w", err)
		}
		register(s)
	}

	if len(cfg.Channels.EmailTo) > 0 {
		mailer, err := buildMailer(ctx, cfg.Channels)
		if err != nil {
			return nil, nil, fmt.Errorf("email channel: %w", err)
		}
		s, err := email.NewSender(mailer, email.Config{
			From:          cfg.Channels.EmailFrom,
			Recipients:    cfg.Channels.EmailTo,
			RatePerSecond: cfg.Channels.EmailRate,
			Burst:         cfg.Channels.EmailBurst,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("email channel: %w", err)
		}
		register(s)
	}

	if cfg.KafkaEnabled() && cfg.Kafka.AlertsTopic != "" {
		s := stream.NewSender(kafkautil.NewWriter(kafkautil.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.AlertsTopic))
		register(s)
		closers = append(closers, func() {
			if err := s.Close(); err != nil {
				slog.Warn("Failed to close kafka channel writer", "error", err)
			}
		})
	}

	slog.Info("Registered notification channels", "channels", registry.List())
	return registry, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// buildMailer registers the email providers and selects the primary and
// fallback order.
func buildMailer(ctx context.Context, ch config.ChannelsConfig) (*provider.Registry, error) {
	mailer := provider.NewRegistry()
	mailer.Register(provider.NewSMTPProvider(provider.SMTPConfig{
		Host:     ch.SMTPHost,
		Port:     ch.SMTPPort,
		User:     ch.SMTPUser,
		Password: ch.SMTPPassword,
	}))
	if ch.SESRegion != "" {
		mailer.Register(provider.NewSESProvider(ctx, ch.SESRegion))
	}
	if ch.ResendAPIKey != "" {
		mailer.Register(provider.NewResendProvider(ch.ResendAPIKey))
	}

	if err := mailer.SetPrimary(ch.EmailProvider); err != nil {
		return nil, err
	}
	if len(ch.EmailFallback) > 0 {
		if err := mailer.SetFallback(ch.EmailFallback...); err != nil {
			return nil, err
		}
	}
	return mailer, nil
}
