package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/DotSati/visual-task-quest/domain"
)

// Queue is the change-event queue slice the relay drains.
type Queue interface {
	DequeueEvent(ctx context.Context) (*azqueue.DequeuedMessage, error)
	DeleteEvent(ctx context.Context, id, receipt string) error
}

// CacheEvicter drops cached board reads when another writer changed a row.
type CacheEvicter interface {
	Evict(ctx context.Context, boardID string)
}

// Relay drains the change queue and republishes each event on the Redis
// channel so stream subscribers can be woken. Malformed messages are deleted
// and dropped; queue errors back off and retry.
func Relay(ctx context.Context, logger *log.Logger, q Queue, rc *redis.Client, channel string, cache CacheEvicter) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := q.DequeueEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Error("dequeue change event")
			sleep(ctx, time.Second)
			continue
		}
		if msg == nil {
			sleep(ctx, time.Second)
			continue
		}

		payload := ""
		if msg.MessageText != nil {
			payload = *msg.MessageText
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			logger.WithError(err).Error("malformed change event, dropping")
		} else {
			if cache != nil {
				cache.Evict(ctx, ev.BoardID)
			}
			if err := rc.Publish(ctx, channel, payload).Err(); err != nil {
				logger.WithError(err).WithField("board", ev.BoardID).Error("publish change event")
			}
		}

		if msg.MessageID != nil && msg.PopReceipt != nil {
			if err := q.DeleteEvent(ctx, *msg.MessageID, *msg.PopReceipt); err != nil {
				logger.WithError(err).Error("delete change event")
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
