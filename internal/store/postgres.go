package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lease-match/internal/db"
	"github.com/sells-group/lease-match/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID serializes concurrent migrate runs across processes.
const migrationLockID = 7453112

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	listingSelect = `SELECT id, owner_id, title, address, city, state, zip, latitude, longitude,
		total_sf, available_sf, building_class, year_built, ada_accessible, parking_spaces,
		backup_power, security_level, certifications, asking_rate_per_sf, available_date,
		prior_government_leases, converted_matches, status, created_at, updated_at
		FROM lease.listings`

	opportunitySelect = `SELECT id, solicitation_number, title, agency, city, state, region,
		acceptable_states, latitude, longitude, delineated_radius_miles, min_sf, max_sf,
		building_classes, requires_ada, requires_backup_power, min_security_level,
		min_parking_spaces, required_certifications, max_rate_per_sf, occupancy_date,
		response_deadline, status, created_at, updated_at
		FROM lease.opportunities`

	pgUpsertMatch = `INSERT INTO lease.matches (id, listing_id, opportunity_id, overall_score, grade,
		qualified, competitive, score_breakdown, run_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (listing_id, opportunity_id) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			grade = EXCLUDED.grade,
			qualified = EXCLUDED.qualified,
			competitive = EXCLUDED.competitive,
			score_breakdown = EXCLUDED.score_breakdown,
			run_id = EXCLUDED.run_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id, listing_id, opportunity_id, overall_score, grade, qualified, competitive,
			score_breakdown, run_id, created_at, updated_at`

	pgGetMatch = `SELECT id, listing_id, opportunity_id, overall_score, grade, qualified, competitive,
		score_breakdown, run_id, created_at, updated_at
		FROM lease.matches WHERE listing_id = $1 AND opportunity_id = $2`

	pgActiveListings = listingSelect + ` WHERE status = 'active' ORDER BY id`

	pgActiveOpportunities = opportunitySelect + ` WHERE status = 'active'
		AND (response_deadline IS NULL OR response_deadline >= $1) ORDER BY id`

	pgRecordRun = `INSERT INTO lease.match_runs (run_id, status, partial, stats, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			partial = EXCLUDED.partial,
			stats = EXCLUDED.stats,
			completed_at = EXCLUDED.completed_at`
)

// preparedStatements lists queries prepared on each new connection.
var preparedStatements = map[string]string{
	"upsert_match":             pgUpsertMatch,
	"get_match":                pgGetMatch,
	"active_listings":          pgActiveListings,
	"active_opportunities":     pgActiveOpportunities,
	"record_run":               pgRecordRun,
	"count_matches":            `SELECT count(*) FROM lease.matches`,
	"count_active_listings":    `SELECT count(*) FROM lease.listings WHERE status = 'active'`,
	"count_active_opportunity": `SELECT count(*) FROM lease.opportunities WHERE status = 'active' AND (response_deadline IS NULL OR response_deadline >= $1)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool for collaborators sharing the connection.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Migrate applies pending embedded migrations in filename order under an
// advisory lock, recording each in lease.schema_migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("postgres: release migration lock", zap.Error(err))
		}
	}()

	if _, err := s.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS lease;
		CREATE TABLE IF NOT EXISTS lease.schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "postgres: read migration %s", name)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := s.pool.Exec(ctx,
			"INSERT INTO lease.schema_migrations (filename, applied_at) VALUES ($1, now())", name,
		); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}

func (s *PostgresStore) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, "SELECT filename FROM lease.schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "postgres: iterate migrations")
}

// Listings

func (s *PostgresStore) ListActiveListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx, pgActiveListings)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active listings")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate listings")
}

func (s *PostgresStore) CountActiveListings(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, preparedStatements["count_active_listings"]).Scan(&n)
	return n, eris.Wrap(err, "postgres: count active listings")
}

func (s *PostgresStore) SaveListing(ctx context.Context, l *model.Listing) error {
	certs, err := json.Marshal(nonNil(l.Certifications))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal certifications")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO lease.listings (id, owner_id, title, address, city, state, zip, latitude, longitude,
			total_sf, available_sf, building_class, year_built, ada_accessible, parking_spaces,
			backup_power, security_level, certifications, asking_rate_per_sf, available_date,
			prior_government_leases, converted_matches, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $24)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id, title = EXCLUDED.title, address = EXCLUDED.address,
			city = EXCLUDED.city, state = EXCLUDED.state, zip = EXCLUDED.zip,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			total_sf = EXCLUDED.total_sf, available_sf = EXCLUDED.available_sf,
			building_class = EXCLUDED.building_class, year_built = EXCLUDED.year_built,
			ada_accessible = EXCLUDED.ada_accessible, parking_spaces = EXCLUDED.parking_spaces,
			backup_power = EXCLUDED.backup_power, security_level = EXCLUDED.security_level,
			certifications = EXCLUDED.certifications, asking_rate_per_sf = EXCLUDED.asking_rate_per_sf,
			available_date = EXCLUDED.available_date,
			prior_government_leases = EXCLUDED.prior_government_leases,
			converted_matches = EXCLUDED.converted_matches, status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		listingArgs(l, certs, now)...,
	)
	return eris.Wrapf(err, "postgres: save listing %s", l.ID)
}

// Opportunities

func (s *PostgresStore) ListActiveOpportunities(ctx context.Context, asOf time.Time) ([]model.Opportunity, error) {
	rows, err := s.pool.Query(ctx, pgActiveOpportunities, asOf)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active opportunities")
	}
	defer rows.Close()

	var out []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate opportunities")
}

func (s *PostgresStore) CountActiveOpportunities(ctx context.Context, asOf time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, preparedStatements["count_active_opportunity"], asOf).Scan(&n)
	return n, eris.Wrap(err, "postgres: count active opportunities")
}

func (s *PostgresStore) SaveOpportunity(ctx context.Context, o *model.Opportunity) error {
	lists, err := marshalOpportunityLists(o)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal opportunity lists")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO lease.opportunities (id, solicitation_number, title, agency, city, state, region,
			acceptable_states, latitude, longitude, delineated_radius_miles, min_sf, max_sf,
			building_classes, requires_ada, requires_backup_power, min_security_level,
			min_parking_spaces, required_certifications, max_rate_per_sf, occupancy_date,
			response_deadline, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $24)
		ON CONFLICT (id) DO UPDATE SET
			solicitation_number = EXCLUDED.solicitation_number, title = EXCLUDED.title,
			agency = EXCLUDED.agency, city = EXCLUDED.city, state = EXCLUDED.state,
			region = EXCLUDED.region, acceptable_states = EXCLUDED.acceptable_states,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			delineated_radius_miles = EXCLUDED.delineated_radius_miles,
			min_sf = EXCLUDED.min_sf, max_sf = EXCLUDED.max_sf,
			building_classes = EXCLUDED.building_classes, requires_ada = EXCLUDED.requires_ada,
			requires_backup_power = EXCLUDED.requires_backup_power,
			min_security_level = EXCLUDED.min_security_level,
			min_parking_spaces = EXCLUDED.min_parking_spaces,
			required_certifications = EXCLUDED.required_certifications,
			max_rate_per_sf = EXCLUDED.max_rate_per_sf, occupancy_date = EXCLUDED.occupancy_date,
			response_deadline = EXCLUDED.response_deadline, status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		opportunityArgs(o, lists, now)...,
	)
	return eris.Wrapf(err, "postgres: save opportunity %s", o.ID)
}

// Matches

func (s *PostgresStore) UpsertMatch(ctx context.Context, m *model.Match) (*model.Match, error) {
	breakdown, err := json.Marshal(m.Breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal breakdown")
	}
	out, err := scanMatch(s.pool.QueryRow(ctx, pgUpsertMatch,
		uuid.New().String(), m.ListingID, m.OpportunityID, m.OverallScore, string(m.Grade),
		m.Qualified, m.Competitive, breakdown, m.RunID, time.Now().UTC(),
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert match %s/%s", m.ListingID, m.OpportunityID)
	}
	return out, nil
}

func (s *PostgresStore) GetMatch(ctx context.Context, listingID, opportunityID string) (*model.Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx, pgGetMatch, listingID, opportunityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get match %s/%s", listingID, opportunityID)
	}
	return m, nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, filter MatchFilter) ([]model.Match, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	query, args, err := matchListQuery("lease.matches", filter, sq.Dollar)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list matches")
	}
	defer rows.Close()

	out := []model.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan match")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate matches")
}

func (s *PostgresStore) CountMatches(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, preparedStatements["count_matches"]).Scan(&n)
	return n, eris.Wrap(err, "postgres: count matches")
}

func (s *PostgresStore) MatchSummaries(ctx context.Context) ([]model.MatchSummary, error) {
	query, _, err := sq.Select(summaryColumns...).From("lease.matches").ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build summary query")
	}
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: match summaries")
	}
	defer rows.Close()

	var out []model.MatchSummary
	for rows.Next() {
		ms, err := scanSummary(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan match summary")
		}
		out = append(out, ms)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate match summaries")
}

func (s *PostgresStore) DeleteMatchesForListing(ctx context.Context, listingID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lease.matches WHERE listing_id = $1`, listingID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete matches for listing %s", listingID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteMatchesForOpportunity(ctx context.Context, opportunityID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lease.matches WHERE opportunity_id = $1`, opportunityID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete matches for opportunity %s", opportunityID)
	}
	return int(tag.RowsAffected()), nil
}

// Run log

func (s *PostgresStore) RecordRun(ctx context.Context, stats *model.BatchStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}
	_, err = s.pool.Exec(ctx, pgRecordRun,
		stats.RunID, string(stats.Status), stats.Partial, data, stats.StartedAt, stats.CompletedAt,
	)
	return eris.Wrapf(err, "postgres: record run %s", stats.RunID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.BatchStats, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT stats FROM lease.match_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	out := []model.BatchStats{}
	for rows.Next() {
		st, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
