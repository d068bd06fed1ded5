package notifications

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sabachan/sabachan/internal/notifications/external"
	"github.com/sabachan/sabachan/internal/notifyevent"
	"github.com/sabachan/sabachan/internal/types"
)

// LoadConfig reads configPath as a notifications.yaml and returns the
// parsed config, or nil if the file is missing or malformed (external
// notifications are entirely optional, so neither case is fatal).
func LoadConfig(configPath string) *types.NotificationsConfig {
	data, err := os.ReadFile(configPath)
	if err != nil {
		log.Printf("[NOTIFY] config not found at %s, external notifications disabled", configPath)
		return nil
	}

	var config types.NotificationsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		log.Printf("[NOTIFY] failed to parse %s: %v", configPath, err)
		return nil
	}
	return &config
}

// BuildRouter constructs a Router with a channel per enabled section of
// cfg. cfg may be nil, in which case the returned Router has zero
// channels and Route becomes a no-op.
func BuildRouter(cfg *types.NotificationsConfig) *Router {
	router := NewRouter(nil)
	if cfg == nil {
		return router
	}

	if cfg.Slack.Enabled && cfg.Slack.WebhookURL != "" {
		router.AddChannel(external.NewSlackNotifier(external.SlackConfig{
			WebhookURL:  cfg.Slack.WebhookURL,
			Channel:     cfg.Slack.Channel,
			Username:    cfg.Slack.Username,
			IconEmoji:   cfg.Slack.IconEmoji,
			EventTypes:  parseEventTypes(cfg.Slack.EventTypes),
			MinPriority: cfg.Slack.MinPriority,
		}))
		log.Printf("[NOTIFY] slack channel enabled")
	}
	if cfg.Discord.Enabled && cfg.Discord.WebhookURL != "" {
		router.AddChannel(external.NewDiscordNotifier(external.DiscordConfig{
			WebhookURL:  cfg.Discord.WebhookURL,
			Username:    cfg.Discord.Username,
			AvatarURL:   cfg.Discord.AvatarURL,
			EventTypes:  parseEventTypes(cfg.Discord.EventTypes),
			MinPriority: cfg.Discord.MinPriority,
		}))
		log.Printf("[NOTIFY] discord channel enabled")
	}
	if cfg.Email.Enabled && cfg.Email.SMTPHost != "" {
		router.AddChannel(external.NewEmailNotifier(external.EmailConfig{
			SMTPHost:    cfg.Email.SMTPHost,
			SMTPPort:    cfg.Email.SMTPPort,
			Username:    cfg.Email.Username,
			Password:    cfg.Email.Password,
			From:        cfg.Email.From,
			To:          cfg.Email.To,
			EventTypes:  parseEventTypes(cfg.Email.EventTypes),
			MinPriority: cfg.Email.MinPriority,
		}))
		log.Printf("[NOTIFY] email channel enabled")
	}

	log.Printf("[NOTIFY] router initialized with %d channel(s)", len(router.GetChannels()))
	return router
}

func parseEventTypes(names []string) []notifyevent.EventType {
	out := make([]notifyevent.EventType, 0, len(names))
	for _, n := range names {
		out = append(out, notifyevent.EventType(n))
	}
	return out
}
