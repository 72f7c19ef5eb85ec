package ioc

import (
	"github.com/kazusato/trade-journal/internal/service/notifier/discord"
	"github.com/spf13/viper"
)

func InitDiscordNotifier() *discord.Notifier {
	type Config struct {
		WebhookUrl string `mapstructure:"webhook_url"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("discord", &cfg); err != nil {
		panic(err)
	}

	// an empty webhook url disables notifications, it is not an error
	return discord.NewNotifier(cfg.WebhookUrl)
}
