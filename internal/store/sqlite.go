package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lease-match/internal/geospatial"
	"github.com/sells-group/lease-match/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// sqliteDSN appends the connection pragmas to dsn as _pragma parameters.
// Pragmas already named in dsn are left alone.
func sqliteDSN(dsn string) string {
	var params []string
	for _, p := range sqlitePragmas {
		name := p[:strings.IndexByte(p, '(')]
		if strings.Contains(dsn, "_pragma="+name) {
			continue
		}
		params = append(params, "_pragma="+p)
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// NewSQLite opens a SQLite database at the given path in WAL mode. The
// pragmas travel in the DSN so each connection the pool opens waits on a
// busy database instead of failing with SQLITE_BUSY.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: open")
	}
	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying handle for collaborators sharing the file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id                      TEXT PRIMARY KEY,
	owner_id                TEXT NOT NULL DEFAULT '',
	title                   TEXT NOT NULL DEFAULT '',
	address                 TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	state                   TEXT NOT NULL DEFAULT '',
	zip                     TEXT NOT NULL DEFAULT '',
	latitude                REAL,
	longitude               REAL,
	total_sf                INTEGER NOT NULL DEFAULT 0,
	available_sf            INTEGER NOT NULL DEFAULT 0,
	building_class          TEXT NOT NULL DEFAULT '',
	year_built              INTEGER NOT NULL DEFAULT 0,
	ada_accessible          BOOLEAN NOT NULL DEFAULT 0,
	parking_spaces          INTEGER NOT NULL DEFAULT 0,
	backup_power            BOOLEAN NOT NULL DEFAULT 0,
	security_level          INTEGER NOT NULL DEFAULT 0,
	certifications          TEXT NOT NULL DEFAULT '[]',
	asking_rate_per_sf      REAL NOT NULL DEFAULT 0,
	available_date          DATETIME,
	prior_government_leases INTEGER NOT NULL DEFAULT 0,
	converted_matches       INTEGER NOT NULL DEFAULT 0,
	status                  TEXT NOT NULL DEFAULT 'draft',
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS opportunities (
	id                      TEXT PRIMARY KEY,
	solicitation_number     TEXT NOT NULL DEFAULT '',
	title                   TEXT NOT NULL DEFAULT '',
	agency                  TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	state                   TEXT NOT NULL DEFAULT '',
	region                  TEXT NOT NULL DEFAULT '',
	acceptable_states       TEXT NOT NULL DEFAULT '[]',
	latitude                REAL,
	longitude               REAL,
	delineated_radius_miles REAL NOT NULL DEFAULT 0,
	min_sf                  INTEGER NOT NULL DEFAULT 0,
	max_sf                  INTEGER NOT NULL DEFAULT 0,
	building_classes        TEXT NOT NULL DEFAULT '[]',
	requires_ada            BOOLEAN NOT NULL DEFAULT 0,
	requires_backup_power   BOOLEAN NOT NULL DEFAULT 0,
	min_security_level      INTEGER NOT NULL DEFAULT 0,
	min_parking_spaces      INTEGER NOT NULL DEFAULT 0,
	required_certifications TEXT NOT NULL DEFAULT '[]',
	max_rate_per_sf         REAL NOT NULL DEFAULT 0,
	occupancy_date          DATETIME,
	response_deadline       DATETIME,
	status                  TEXT NOT NULL DEFAULT 'draft',
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS matches (
	id              TEXT PRIMARY KEY,
	listing_id      TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	opportunity_id  TEXT NOT NULL REFERENCES opportunities(id) ON DELETE CASCADE,
	overall_score   INTEGER NOT NULL CHECK (overall_score BETWEEN 0 AND 100),
	grade           TEXT NOT NULL,
	qualified       BOOLEAN NOT NULL DEFAULT 0,
	competitive     BOOLEAN NOT NULL DEFAULT 0,
	score_breakdown TEXT NOT NULL,
	run_id          TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	UNIQUE (listing_id, opportunity_id)
);

CREATE TABLE IF NOT EXISTS match_runs (
	run_id       TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	partial      BOOLEAN NOT NULL DEFAULT 0,
	stats        TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
CREATE INDEX IF NOT EXISTS idx_opportunities_status ON opportunities(status);
CREATE INDEX IF NOT EXISTS idx_matches_opportunity ON matches(opportunity_id);
CREATE INDEX IF NOT EXISTS idx_matches_score ON matches(overall_score DESC);
CREATE INDEX IF NOT EXISTS idx_match_runs_started ON match_runs(started_at DESC);
`

const (
	sqliteListingSelect = `SELECT id, owner_id, title, address, city, state, zip, latitude, longitude,
		total_sf, available_sf, building_class, year_built, ada_accessible, parking_spaces,
		backup_power, security_level, certifications, asking_rate_per_sf, available_date,
		prior_government_leases, converted_matches, status, created_at, updated_at
		FROM listings`

	sqliteOpportunitySelect = `SELECT id, solicitation_number, title, agency, city, state, region,
		acceptable_states, latitude, longitude, delineated_radius_miles, min_sf, max_sf,
		building_classes, requires_ada, requires_backup_power, min_security_level,
		min_parking_spaces, required_certifications, max_rate_per_sf, occupancy_date,
		response_deadline, status, created_at, updated_at
		FROM opportunities`

	sqliteActiveDeadline = `status = 'active' AND (response_deadline IS NULL OR response_deadline >= ?)`
)

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	_, err := s.db.ExecContext(ctx, geospatial.SQLiteSchema)
	return eris.Wrap(err, "sqlite: migrate federal properties")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Listings

func (s *SQLiteStore) ListActiveListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListingSelect+` WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active listings")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate listings")
}

func (s *SQLiteStore) CountActiveListings(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM listings WHERE status = 'active'`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count active listings")
}

func (s *SQLiteStore) SaveListing(ctx context.Context, l *model.Listing) error {
	certs, err := json.Marshal(nonNil(l.Certifications))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal certifications")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listings (id, owner_id, title, address, city, state, zip, latitude, longitude,
			total_sf, available_sf, building_class, year_built, ada_accessible, parking_spaces,
			backup_power, security_level, certifications, asking_rate_per_sf, available_date,
			prior_government_leases, converted_matches, status, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12, ?13, ?14, ?15,
			?16, ?17, ?18, ?19, ?20, ?21, ?22, ?23, ?24, ?24)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id, title = excluded.title, address = excluded.address,
			city = excluded.city, state = excluded.state, zip = excluded.zip,
			latitude = excluded.latitude, longitude = excluded.longitude,
			total_sf = excluded.total_sf, available_sf = excluded.available_sf,
			building_class = excluded.building_class, year_built = excluded.year_built,
			ada_accessible = excluded.ada_accessible, parking_spaces = excluded.parking_spaces,
			backup_power = excluded.backup_power, security_level = excluded.security_level,
			certifications = excluded.certifications, asking_rate_per_sf = excluded.asking_rate_per_sf,
			available_date = excluded.available_date,
			prior_government_leases = excluded.prior_government_leases,
			converted_matches = excluded.converted_matches, status = excluded.status,
			updated_at = excluded.updated_at`,
		listingArgs(l, certs, time.Now().UTC())...,
	)
	return eris.Wrapf(err, "sqlite: save listing %s", l.ID)
}

// Opportunities

func (s *SQLiteStore) ListActiveOpportunities(ctx context.Context, asOf time.Time) ([]model.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteOpportunitySelect+` WHERE `+sqliteActiveDeadline+` ORDER BY id`, asOf.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active opportunities")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opportunity")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate opportunities")
}

func (s *SQLiteStore) CountActiveOpportunities(ctx context.Context, asOf time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM opportunities WHERE `+sqliteActiveDeadline, asOf.UTC()).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count active opportunities")
}

func (s *SQLiteStore) SaveOpportunity(ctx context.Context, o *model.Opportunity) error {
	lists, err := marshalOpportunityLists(o)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal opportunity lists")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO opportunities (id, solicitation_number, title, agency, city, state, region,
			acceptable_states, latitude, longitude, delineated_radius_miles, min_sf, max_sf,
			building_classes, requires_ada, requires_backup_power, min_security_level,
			min_parking_spaces, required_certifications, max_rate_per_sf, occupancy_date,
			response_deadline, status, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12, ?13, ?14, ?15,
			?16, ?17, ?18, ?19, ?20, ?21, ?22, ?23, ?24, ?24)
		ON CONFLICT (id) DO UPDATE SET
			solicitation_number = excluded.solicitation_number, title = excluded.title,
			agency = excluded.agency, city = excluded.city, state = excluded.state,
			region = excluded.region, acceptable_states = excluded.acceptable_states,
			latitude = excluded.latitude, longitude = excluded.longitude,
			delineated_radius_miles = excluded.delineated_radius_miles,
			min_sf = excluded.min_sf, max_sf = excluded.max_sf,
			building_classes = excluded.building_classes, requires_ada = excluded.requires_ada,
			requires_backup_power = excluded.requires_backup_power,
			min_security_level = excluded.min_security_level,
			min_parking_spaces = excluded.min_parking_spaces,
			required_certifications = excluded.required_certifications,
			max_rate_per_sf = excluded.max_rate_per_sf, occupancy_date = excluded.occupancy_date,
			response_deadline = excluded.response_deadline, status = excluded.status,
			updated_at = excluded.updated_at`,
		opportunityArgs(o, lists, time.Now().UTC())...,
	)
	return eris.Wrapf(err, "sqlite: save opportunity %s", o.ID)
}

// Matches

// UpsertMatch writes the match and reads the row back. The read is a plain
// SELECT so DATETIME columns keep their declared type.
func (s *SQLiteStore) UpsertMatch(ctx context.Context, m *model.Match) (*model.Match, error) {
	breakdown, err := json.Marshal(m.Breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal breakdown")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matches (id, listing_id, opportunity_id, overall_score, grade, qualified,
			competitive, score_breakdown, run_id, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?10)
		ON CONFLICT (listing_id, opportunity_id) DO UPDATE SET
			overall_score = excluded.overall_score,
			grade = excluded.grade,
			qualified = excluded.qualified,
			competitive = excluded.competitive,
			score_breakdown = excluded.score_breakdown,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at`,
		uuid.New().String(), m.ListingID, m.OpportunityID, m.OverallScore, string(m.Grade),
		m.Qualified, m.Competitive, string(breakdown), m.RunID, time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert match %s/%s", m.ListingID, m.OpportunityID)
	}
	out, err := s.GetMatch(ctx, m.ListingID, m.OpportunityID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: upserted match %s/%s", m.ListingID, m.OpportunityID)
	}
	return out, nil
}

func (s *SQLiteStore) GetMatch(ctx context.Context, listingID, opportunityID string) (*model.Match, error) {
	query, args, err := sq.Select(matchColumns...).From("matches").
		Where(sq.Eq{"listing_id": listingID}).
		Where(sq.Eq{"opportunity_id": opportunityID}).
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get match")
	}
	m, err := scanMatch(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get match %s/%s", listingID, opportunityID)
	}
	return m, nil
}

func (s *SQLiteStore) ListMatches(ctx context.Context, filter MatchFilter) ([]model.Match, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	query, args, err := matchListQuery("matches", filter, sq.Question)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list matches")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate matches")
}

func (s *SQLiteStore) CountMatches(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM matches`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count matches")
}

func (s *SQLiteStore) MatchSummaries(ctx context.Context) ([]model.MatchSummary, error) {
	query, _, err := sq.Select(summaryColumns...).From("matches").ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build summary query")
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: match summaries")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.MatchSummary
	for rows.Next() {
		ms, err := scanSummary(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match summary")
		}
		out = append(out, ms)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate match summaries")
}

func (s *SQLiteStore) DeleteMatchesForListing(ctx context.Context, listingID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM matches WHERE listing_id = ?`, listingID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete matches for listing %s", listingID)
	}
	return rowsAffected(res)
}

func (s *SQLiteStore) DeleteMatchesForOpportunity(ctx context.Context, opportunityID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM matches WHERE opportunity_id = ?`, opportunityID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete matches for opportunity %s", opportunityID)
	}
	return rowsAffected(res)
}

// Run log

func (s *SQLiteStore) RecordRun(ctx context.Context, stats *model.BatchStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_runs (run_id, status, partial, stats, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			status = excluded.status,
			partial = excluded.partial,
			stats = excluded.stats,
			completed_at = excluded.completed_at`,
		stats.RunID, string(stats.Status), stats.Partial, string(data),
		stats.StartedAt.UTC(), utcPtr(stats.CompletedAt),
	)
	return eris.Wrapf(err, "sqlite: record run %s", stats.RunID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.BatchStats, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT stats FROM match_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.BatchStats{}
	for rows.Next() {
		st, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
