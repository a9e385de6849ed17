package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings captures all runtime configuration for the event notifier. Every
// value is read once at startup and treated as read-only afterwards.
type Settings struct {
	App      AppConfig
	Email    EmailConfig
	Filter   FilterConfig
	Template TemplateConfig
	SMTP     SMTPConfig
	Provider ProviderConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// EmailConfig supplies the static sender and the default recipient lists used
// when an event does not carry its own recipients.
type EmailConfig struct {
	From   string
	To     []string
	Cc     []string
	Bcc    []string
	DryRun bool
}

// FilterConfig holds the declarative event filter and its combination mode
// ("all" or "any").
type FilterConfig struct {
	Spec string
	Mode string
}

// TemplateConfig points at the configured template sources. InlineJSON takes
// precedence over Dir when both are set.
type TemplateConfig struct {
	InlineJSON string
	Dir        string
}

// SMTPConfig stores SMTP connection settings for email delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	StartTLS bool
	SSL      bool
}

// ProviderConfig selects the delivery backend and its timeout budget.
type ProviderConfig struct {
	Backend        string
	TimeoutSeconds int
	MaxSessions    int
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Settings instance.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Settings{}
	cfg.App.Env = ldr.getString("NOTIFY_APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("NOTIFY_APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("NOTIFY_LOG_LEVEL", "info", false)

	cfg.Provider.Backend = strings.ToLower(ldr.getString("NOTIFY_EMAIL_BACKEND", "smtp", false))
	cfg.Provider.TimeoutSeconds = ldr.getInt("NOTIFY_PROVIDER_TIMEOUT_SECONDS", 30, false)
	cfg.Provider.MaxSessions = ldr.getInt("NOTIFY_SMTP_MAX_SESSIONS", 8, false)

	smtpRequired := cfg.Provider.Backend == "smtp"
	cfg.Email.From = ldr.getString("NOTIFY_EMAIL_FROM", "", smtpRequired)
	cfg.Email.To = ldr.getStringSlice("NOTIFY_EMAIL_TO", false)
	cfg.Email.Cc = ldr.getStringSlice("NOTIFY_EMAIL_CC", false)
	cfg.Email.Bcc = ldr.getStringSlice("NOTIFY_EMAIL_BCC", false)
	cfg.Email.DryRun = ldr.getBool("NOTIFY_DRY_RUN", false, false)

	cfg.Filter.Spec = ldr.getString("NOTIFY_FILTERS_JSON", "", false)
	cfg.Filter.Mode = ldr.getString("NOTIFY_FILTER_MODE", "all", false)

	cfg.Template.InlineJSON = ldr.getString("NOTIFY_TEMPLATES_INLINE_JSON", "", false)
	cfg.Template.Dir = ldr.getString("NOTIFY_TEMPLATES_DIR", "", false)

	cfg.SMTP.Host = ldr.getString("NOTIFY_SMTP_HOST", "", smtpRequired)
	cfg.SMTP.Port = ldr.getInt("NOTIFY_SMTP_PORT", 587, false)
	cfg.SMTP.User = ldr.getString("NOTIFY_SMTP_USER", "", false)
	cfg.SMTP.Pass = ldr.getString("NOTIFY_SMTP_PASS", "", false)
	cfg.SMTP.StartTLS = ldr.getBool("NOTIFY_SMTP_STARTTLS", true, false)
	cfg.SMTP.SSL = ldr.getBool("NOTIFY_SMTP_SSL", false, false)

	if cfg.Provider.Backend != "smtp" && cfg.Provider.Backend != "mock" {
		ldr.addError(fmt.Sprintf("NOTIFY_EMAIL_BACKEND must be one of smtp, mock; got %q", cfg.Provider.Backend))
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	raw := l.getString(key, "", required)
	if raw == "" {
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	raw := l.getString(key, "", required)
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid boolean", key))
		return def
	}
	return parsed
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
