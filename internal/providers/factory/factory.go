package factory

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/event-notifier/internal/config"
	emailprovider "github.com/example/event-notifier/internal/providers/email"
)

// Email constructs the configured email provider, supporting SMTP and mock
// backends.
func Email(cfg *config.Settings, logger zerolog.Logger) (emailprovider.Provider, error) {
	backend := strings.TrimSpace(strings.ToLower(cfg.Provider.Backend))
	if backend == "" {
		backend = "smtp"
	}

	switch backend {
	case "smtp":
		provider, err := emailprovider.NewSMTPProvider(
			cfg.SMTP,
			cfg.Email.From,
			logger,
			emailprovider.WithSMTPMaxSessions(cfg.Provider.MaxSessions),
		)
		if err != nil {
			return nil, fmt.Errorf("factory: smtp provider init: %w", err)
		}
		logger.Info().
			Str("backend", "smtp").
			Str("host", cfg.SMTP.Host).
			Msg("email provider initialised")
		return provider, nil
	case "mock":
		provider := emailprovider.NewMockProvider(logger)
		logger.Info().
			Str("backend", "mock").
			Msg("email provider initialised")
		return provider, nil
	default:
		return nil, fmt.Errorf("factory: unsupported email backend %q", cfg.Provider.Backend)
	}
}
