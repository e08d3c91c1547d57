package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/marketline/orders-service/internal/domain"
	"github.com/marketline/orders-service/internal/events"
	"github.com/marketline/orders-service/internal/logger"
	"github.com/marketline/orders-service/internal/repository"
)

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

// StartConsumer turns lifecycle events into notification rows. Invalid
// messages are committed and skipped; storage failures back off and retry
// without committing, so the event is redelivered.
func StartConsumer(ctx context.Context, repo repository.NotificationRepo, cfg ConsumerConfig) (*kafka.Reader, error) {
	brokers := strings.Split(cfg.Brokers, ",")

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.FirstOffset,
		ReadLagInterval: -1,
	})

	logger.Info("kafka consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	go func() {
		defer r.Close()

		backoff := time.Millisecond * 300
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("kafka fetch error", "err", err)
				time.Sleep(backoff)
				continue
			}

			var e events.Event
			if err = json.Unmarshal(m.Value, &e); err != nil {
				logger.Warn("kafka invalid json, skip and commit", "err", err)
				_ = r.CommitMessages(ctx, m)
				continue
			}

			payload, _ := json.Marshal(e)
			n := &domain.Notification{
				CustomerID: e.CustomerID,
				Kind:       e.Type,
				Payload:    payload,
			}
			if err = repo.Add(ctx, n); err != nil {
				logger.Warn("notification insert failed, will retry", "err", err)
				time.Sleep(backoff)
				continue
			}

			if err := r.CommitMessages(ctx, m); err != nil {
				logger.Warn("kafka commit failed", "err", err)
			} else {
				logger.Info("notification stored", "type", e.Type, "order_code", e.OrderCode)
			}
		}
	}()
	return r, nil
}
