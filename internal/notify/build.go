package notify

import (
	"github.com/saturnino-fabrica-de-software/facefind/internal/config"
)

// FromConfig assembles every configured sink. The returned close func
// disconnects the MQTT client when one was opened.
func FromConfig(cfg *config.Config) (Notifier, func(), error) {
	var sinks Multi
	closeFn := func() {}

	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, NewDiscord(cfg.DiscordWebhookURL))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhook(cfg.WebhookURL, cfg.WebhookSecret))
	}
	if cfg.MQTTBroker != "" {
		m, client, err := ConnectMQTT(MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		})
		if err != nil {
			return nil, closeFn, err
		}
		sinks = append(sinks, m)
		closeFn = func() { client.Disconnect(250) }
	}

	if len(sinks) == 0 {
		return Nop{}, closeFn, nil
	}
	return sinks, closeFn, nil
}
