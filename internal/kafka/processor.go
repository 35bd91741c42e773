package kafka

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/os2mo/orggatekeeper/events/modules/orgunit"
	"github.com/os2mo/orggatekeeper/internal/config"
)

// RunEventProcessor connects to the change topic and dispatches every message
// to the coordinator until the context is cancelled. The initial broker
// connection is retried with exponential backoff; a broker that never comes
// up fails startup.
func RunEventProcessor(ctx context.Context, settings *config.Settings, rec orgunit.Recalculator, log *zap.Logger) error {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	err := backoff.RetryNotify(func() error {
		conn, err := dialer.DialContext(ctx, "tcp", settings.KafkaBrokers[0])
		if err != nil {
			return err
		}
		conn.Close()
		return nil
	}, bo, func(err error, _ time.Duration) {
		log.Warn("Retrying connection to Kafka", zap.Error(err))
	})
	if err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  settings.KafkaBrokers,
		GroupID:  settings.KafkaGroupID,
		Topic:    settings.KafkaTopic,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})

	go func() {
		defer reader.Close()

		log.Info("Event processor started, listening for registry change events",
			zap.String("topic", settings.KafkaTopic),
			zap.String("group", settings.KafkaGroupID))

		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := reader.ReadMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					continue
				}
				if err := orgunit.HandleChangeEvent(ctx, msg.Value, rec, log); err != nil {
					// At-least-once transport: redelivery or the next
					// triggering event retries.
					log.Error("Failed to process change event", zap.Error(err))
				}
			}
		}
	}()

	return nil
}

// CheckBroker reports whether the first broker accepts connections. Used by
// the readiness probe; any failure is a negative signal, never a panic.
func CheckBroker(ctx context.Context, brokers []string) bool {
	if len(brokers) == 0 {
		return false
	}
	dialer := &kafka.Dialer{
		Timeout:   5 * time.Second,
		DualStack: true,
	}
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
