// internal/workers/application/send-notification/config.go
package sendnotification

import (
	"time"

	"loan-origination/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	Timeout      time.Duration
}

// LoadConfig merges the notification switches with the AWS integration
// settings. A channel is enabled only when both agree.
func LoadConfig(cfg *config.Config) *Config {
	timeout := config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	from := cfg.Notifications.Email.FromEmail
	if from == "" {
		from = cfg.Integrations.AWS.SES.FromEmail
	}

	return &Config{
		EmailEnabled: cfg.Notifications.Email.Enabled && cfg.Integrations.AWS.SES.Enabled,
		SMSEnabled:   cfg.Notifications.SMS.Enabled && cfg.Integrations.AWS.SNS.Enabled,
		FromEmail:    from,
		Timeout:      timeout,
	}
}
