package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lease-match/internal/analytics"
	"github.com/sells-group/lease-match/internal/batch"
	"github.com/sells-group/lease-match/internal/config"
	"github.com/sells-group/lease-match/internal/geospatial"
	"github.com/sells-group/lease-match/internal/region"
	"github.com/sells-group/lease-match/internal/scorer"
	"github.com/sells-group/lease-match/internal/store"
)

// appEnv holds the initialized collaborators shared by commands.
type appEnv struct {
	Store     store.Store
	Inventory geospatial.Inventory
	Density   *geospatial.DensityScorer
	Regions   *region.Table
	Engine    *scorer.Engine
	Runner    *batch.Runner
	Analytics *analytics.Service
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "lease-match.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required (LEASEMATCH_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// inventoryFor returns the federal inventory sharing st's connection.
func inventoryFor(st store.Store) (geospatial.Inventory, error) {
	switch s := st.(type) {
	case *store.PostgresStore:
		return geospatial.NewPostgresInventory(s.Pool()), nil
	case *store.SQLiteStore:
		return geospatial.NewSQLiteInventory(s.DB()), nil
	default:
		return nil, eris.Errorf("no federal inventory for store %T", st)
	}
}

// newDensityScorer builds the cached density scorer from configuration.
func newDensityScorer(inv geospatial.Inventory, d config.DensityConfig) *geospatial.DensityScorer {
	cache := geospatial.NewDensityCache(d.CacheMaxEntries, time.Duration(d.CacheTTLSecs)*time.Second, d.CoordPrecision)
	return geospatial.NewDensityScorer(inv, cache, geospatial.DensityOptions{
		MaxRadiusMiles:      d.MaxRadiusMiles,
		ReferenceSampleSize: d.ReferenceSampleSize,
		ReferenceTTL:        time.Duration(d.ReferenceTTLSecs) * time.Second,
		SaturationDensity:   d.SaturationDensity,
		QueryLimit:          d.QueryLimit,
	})
}

// buildEnv wires the engine, runner and analytics around an open store.
func buildEnv(st store.Store, c *config.Config) (*appEnv, error) {
	inv, err := inventoryFor(st)
	if err != nil {
		return nil, err
	}

	regions, err := region.Load(c.Matching.RegionsFile)
	if err != nil {
		return nil, err
	}

	density := newDensityScorer(inv, c.Density)
	engine, err := scorer.NewEngine(scorer.FromConfig(c), density, regions)
	if err != nil {
		return nil, err
	}

	opts := batch.OptionsFromConfig(c.Batch)
	if opts.Workers <= 0 {
		opts.Workers = int(c.Store.MaxConns)
	}

	return &appEnv{
		Store:     st,
		Inventory: inv,
		Density:   density,
		Regions:   regions,
		Engine:    engine,
		Runner:    batch.NewRunner(st, engine, opts),
		Analytics: analytics.NewService(st, st, density.Cache(), inv),
	}, nil
}

// initEnv opens the store and wires everything on top of it.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "store unreachable")
	}

	env, err := buildEnv(st, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	zap.L().Debug("environment ready", zap.String("store", cfg.Store.Driver))
	return env, nil
}
