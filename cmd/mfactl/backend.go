package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/internal/config"
	"github.com/MrEthical07/goMFA/notify"
	"github.com/MrEthical07/goMFA/store"
	"github.com/MrEthical07/goMFA/store/memory"
	"github.com/MrEthical07/goMFA/store/redisstore"
	"github.com/MrEthical07/goMFA/store/sqlstore"
)

// openStore returns the configured backend and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "memory":
		return memory.New(), func() {}, nil
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{cfg.Store.RedisAddr},
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("error connecting redis: %w", err)
		}
		s := redisstore.New(client, redisstore.Config{Prefix: cfg.Store.Prefix})
		return s, func() { _ = client.Close() }, nil
	case "pgx", "sqlite":
		dialect := sqlstore.Dialect(strings.ToLower(cfg.Store.Driver))
		db, err := sqlstore.Open(ctx, dialect, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		s, err := sqlstore.New(db, dialect)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// engine builds a goMFA engine over the configured store and webhook.
func (a *app) engine(ctx context.Context, cfg *config.Config) (*goMFA.Engine, func(), error) {
	s, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	log := a.logger(cfg)
	mfaCfg := goMFA.DefaultConfig()
	mfaCfg.Cipher.MasterKey = cfg.MasterKey
	mfaCfg.Cipher.KDFIterations = cfg.KDFIterations

	b := goMFA.New().
		WithConfig(mfaCfg).
		WithStore(s).
		WithLogger(log.Logger)
	if cfg.Webhook.URL != "" {
		b.WithNotifier(notify.NewWebhook(notify.WebhookConfig{
			BaseURL:       cfg.Webhook.URL,
			SigningKey:    cfg.Webhook.Token,
			Timeout:       cfg.Webhook.Timeout,
			RatePerSecond: cfg.Webhook.RatePerSecond,
			Burst:         cfg.Webhook.Burst,
		}))
	} else {
		b.WithNotifier(notify.NewLog(log.Logger, false))
	}

	e, err := b.Build()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return e, func() {
		e.Close()
		closeStore()
	}, nil
}
