package main

import (
	"log/slog"

	"github.com/kickzcaviar/seller-registration/automation"
	"github.com/kickzcaviar/seller-registration/config"
	"github.com/kickzcaviar/seller-registration/onboarding"
)

// createForwarder logs sellers instead of posting them when running locally
// without a webhook.
func createForwarder(logger *slog.Logger, cfg config.Config) onboarding.Forwarder {
	if cfg.MakeWebhookURL == "" {
		if cfg.Environment == config.PROD {
			logger.Warn("MAKE_WEBHOOK_URL is not set, new sellers will not be forwarded")
			return nil
		}
		return &automation.LogForwarder{Logger: logger}
	}

	return automation.NewWebhookClient(cfg.MakeWebhookURL)
}
