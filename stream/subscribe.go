package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// SubscribeUpdates listens for change events on the Redis channel and wakes
// the board's stream subscribers. The pub/sub connection is re-established
// when it drops.
func SubscribeUpdates(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, broker *Broker) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev struct {
					BoardID string `json:"boardId"`
				}
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.WithError(err).Error("unable to parse update")
					continue
				}
				broker.Notify(ev.BoardID)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
