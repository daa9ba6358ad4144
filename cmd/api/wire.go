package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mydentalfly/quote-backend/api/controllers"
	"github.com/mydentalfly/quote-backend/internal/catalog"
	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/internal/persistence"
	"github.com/mydentalfly/quote-backend/internal/promotions"
	"github.com/mydentalfly/quote-backend/internal/quote"
	"github.com/mydentalfly/quote-backend/internal/submissions"
	"github.com/mydentalfly/quote-backend/pkg/config"
	"github.com/mydentalfly/quote-backend/pkg/db"
	"github.com/mydentalfly/quote-backend/pkg/logger"
	"github.com/mydentalfly/quote-backend/pkg/metrics"
	"github.com/mydentalfly/quote-backend/pkg/redis"
)

type snapshotPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type application struct {
	catalog  catalog.Provider
	quotes   quote.Service
	registry *prometheus.Registry
	pingers  map[string]controllers.Pinger
	purger   snapshotPurger
	sweeper  quote.Sweeper
}

func wire(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*application, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provider, err := buildCatalog(cfg.Quote, dbClient)
	if err != nil {
		return nil, err
	}

	var refs *discounts.RefCodec
	if cfg.Discounts.RefTokensEnabled() {
		if refs, err = discounts.NewRefCodec(cfg.Discounts); err != nil {
			return nil, err
		}
	}

	promos := promotions.NewRepository(dbClient.DB())
	resolver, err := discounts.NewResolver(promos, promos, promos, refs,
		discounts.TrustEmbedded(cfg.FeatureFlags.TrustEmbeddedDiscounts))
	if err != nil {
		return nil, err
	}

	store, err := buildPersistence(cfg.Quote, logg, dbClient, redisClient)
	if err != nil {
		return nil, err
	}

	submitter, err := submissions.NewService(dbClient.DB(), promos)
	if err != nil {
		return nil, err
	}

	quotes, err := quote.NewService(quote.ServiceParams{
		Catalog:     provider,
		Resolver:    resolver,
		Persistence: store,
		Submitter:   submitter,
		Metrics:     metrics.NewQuoteMetrics(registry),
		Logger:      logg,
		IdleTTL:     cfg.Quote.IdleTTL,
	})
	if err != nil {
		return nil, err
	}

	app := &application{
		catalog:  provider,
		quotes:   quotes,
		registry: registry,
		pingers:  map[string]controllers.Pinger{"db": dbClient},
	}
	if redisClient != nil {
		app.pingers["redis"] = redisClient
	}
	if purger, ok := durableOf(store); ok {
		app.purger = purger
	}
	if sweeper, ok := quotes.(quote.Sweeper); ok {
		app.sweeper = sweeper
	}
	return app, nil
}

func buildCatalog(cfg config.QuoteConfig, dbClient *db.Client) (catalog.Provider, error) {
	switch cfg.CatalogSource {
	case config.CatalogSourceStatic:
		return catalog.Default(), nil
	case config.CatalogSourceDB:
		return catalog.NewRepository(dbClient.DB()), nil
	default:
		return nil, fmt.Errorf("unsupported catalog source %q", cfg.CatalogSource)
	}
}

// buildPersistence picks the quote persistence backend named in config.
func buildPersistence(cfg config.QuoteConfig, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (persistence.Backend, error) {
	switch cfg.Persistence {
	case config.PersistenceMemory:
		return persistence.NewMemory(), nil
	case config.PersistenceRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis persistence requires a redis client")
		}
		return persistence.NewRedis(redisClient, cfg.SessionTTL)
	case config.PersistenceDB:
		return persistence.NewDB(dbClient.DB(), cfg.SnapshotTTL)
	case config.PersistenceLayered:
		if redisClient == nil {
			return nil, fmt.Errorf("layered persistence requires a redis client")
		}
		session, err := persistence.NewRedis(redisClient, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		durable, err := persistence.NewDB(dbClient.DB(), cfg.SnapshotTTL)
		if err != nil {
			return nil, err
		}
		return persistence.NewLayered(session, durable, logg)
	default:
		return nil, fmt.Errorf("unsupported persistence %q", cfg.Persistence)
	}
}

func durableOf(store persistence.Backend) (snapshotPurger, bool) {
	switch s := store.(type) {
	case *persistence.DB:
		return s, true
	case *persistence.Layered:
		return s.Durable()
	}
	return nil, false
}
