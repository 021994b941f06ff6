package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Stefan/orka-ppm-sub007/pkg/channels/gochannel"
	"github.com/Stefan/orka-ppm-sub007/pkg/channels/kafka"
	"github.com/Stefan/orka-ppm-sub007/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill"
)

// NewEventBus creates the bus for the provider: "gochannel" for a single process or
// "kafka" for a deployment sharing events across services.
func NewEventBus(provider string, brokers []string, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, brokers, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gochannel pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
