// Command quotactl inspects and resets contact quotas from the shell.
//
//	quotactl -user u-123            show the user's counter
//	quotactl -user u-123 -reset     reset it and notify running instances
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/mindcare-directory/internal/adapters/cache"
	"github.com/zatekoja/mindcare-directory/internal/adapters/database"
	"github.com/zatekoja/mindcare-directory/internal/adapters/events"
	"github.com/zatekoja/mindcare-directory/internal/application/services"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/redis"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	"github.com/zatekoja/mindcare-directory/pkg/config"
)

func main() {
	userID := flag.String("user", "", "user id whose quota to inspect")
	reset := flag.Bool("reset", false, "reset the user's counter to zero")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("quotactl", cfg.App.Env, cfg.App.LogLevel)
	logger := observability.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var (
		store providers.QuotaStore
		bus   providers.EventBus
	)
	switch cfg.Contact.QuotaBackend {
	case "redis":
		client, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer client.Close()
		store = cache.NewRedisQuotaStore(client)
		bus = events.NewRedisEventBus(client)
	case "postgres":
		client, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
		}
		defer client.Close()
		store = database.NewContactQuotaAdapter(client, nil)
	default:
		logger.Fatal().Str("backend", cfg.Contact.QuotaBackend).Msg("in-memory quotas live inside the API process and cannot be managed here")
	}

	if err := runQuota(ctx, os.Stdout, store, bus, *userID, cfg.Contact.Allowance, *reset); err != nil {
		logger.Fatal().Err(err).Str("user_id", *userID).Msg("quota command failed")
	}
}

// runQuota prints the user's counter, resetting it first when reset is set.
// A reset is announced on the contacts channel when bus is not nil.
func runQuota(ctx context.Context, out io.Writer, store providers.QuotaStore, bus providers.EventBus, userID string, allowance int, reset bool) error {
	quota, err := services.LoadContactQuota(ctx, store, userID, allowance)
	if err != nil {
		return fmt.Errorf("failed to load quota: %w", err)
	}

	if reset {
		if err := quota.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset quota: %w", err)
		}
		if bus != nil {
			event := entities.NewQuotaResetEvent(uuid.New().String(), quota.State(), time.Now())
			if err := bus.Publish(ctx, providers.EventChannelContacts, event); err != nil {
				observability.GetLogger().Warn().Err(err).Msg("quota reset but running instances were not notified")
			}
		}
	}

	state := quota.State()
	_, err = fmt.Fprintf(out, "user=%s allowance=%d used=%d remaining=%d\n", state.UserID, state.Allowance, state.Used, state.Remaining())
	return err
}
