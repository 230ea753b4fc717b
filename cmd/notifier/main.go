package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/DotSati/visual-task-quest/api"
	"github.com/DotSati/visual-task-quest/notify"
	"github.com/DotSati/visual-task-quest/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tables := storage.Tables{
		Boards:   os.Getenv("BOARDS_TABLE"),
		Columns:  os.Getenv("COLUMNS_TABLE"),
		Tasks:    os.Getenv("TASKS_TABLE"),
		Rules:    os.Getenv("RULES_TABLE"),
		Profiles: os.Getenv("PROFILES_TABLE"),
	}
	eventsQueue := os.Getenv("EVENTS_QUEUE")
	if connStr == "" || tables.Boards == "" || tables.Columns == "" || tables.Tasks == "" ||
		tables.Profiles == "" || eventsQueue == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, tables, eventsQueue)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	logger := log.New()
	logger.SetLevel(log.GetLevel())

	var guard notify.Guard
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc := redis.NewClient(parseRedisOptions(redisConn))
		guardTTL := time.Hour
		if v := os.Getenv("NOTIFY_GUARD_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid NOTIFY_GUARD_TTL: %v", err)
			}
			guardTTL = d
		}
		guard = api.NewRedisDeduper(rc, guardTTL)
	}

	webhookTimeout := 10 * time.Second
	if v := os.Getenv("WEBHOOK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid WEBHOOK_TIMEOUT: %v", err)
		}
		webhookTimeout = d
	}
	webhook := notify.NewWebhookClient(webhookTimeout)

	dispatcher := notify.NewDispatcher(store, webhook, guard, logger)

	interval := time.Minute
	if v := os.Getenv("NOTIFY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid NOTIFY_INTERVAL: %v", err)
		}
		interval = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := notify.NewScheduler(time.UTC)
	if _, err := sched.ScheduleEvery(interval, func() {
		if _, err := dispatcher.RunOnce(ctx); err != nil {
			logger.WithError(err).Error("notification pass failed")
		}
	}); err != nil {
		log.Fatalf("schedule: %v", err)
	}

	logger.WithField("interval", interval.String()).Info("notifier starting")
	sched.Start()
	<-ctx.Done()
	sched.Stop()
}

// parseRedisOptions accepts either a redis URL or the comma-separated
// host,key=value form used by managed caches.
func parseRedisOptions(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
