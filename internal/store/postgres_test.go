package store

import (
	"context"
	"encoding/json"
	"io/fs"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/lease-match/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresFromPool(mock), mock
}

func sampleMatch() *model.Match {
	return &model.Match{
		ListingID:     "lst-1",
		OpportunityID: "opp-1",
		OverallScore:  82,
		Grade:         model.GradeA,
		Qualified:     true,
		Competitive:   true,
		Breakdown: model.ScoreBreakdown{
			Location: model.MatchFactor{Name: model.FactorLocation, Score: 90, Weight: 0.35, Weighted: 31.5},
			Space:    model.MatchFactor{Name: model.FactorSpace, Score: 80, Weight: 0.30, Weighted: 24},
		},
		RunID: "run-1",
	}
}

func matchRow(t *testing.T, m *model.Match, id string, created, updated time.Time) *pgxmock.Rows {
	t.Helper()
	b, err := json.Marshal(m.Breakdown)
	require.NoError(t, err)
	return pgxmock.NewRows(matchColumns).AddRow(
		id, m.ListingID, m.OpportunityID, m.OverallScore, string(m.Grade),
		m.Qualified, m.Competitive, b, m.RunID, created, updated,
	)
}

func TestPostgresStore_UpsertMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	m := sampleMatch()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := created.Add(time.Hour)

	mock.ExpectQuery(`INSERT INTO lease.matches .* ON CONFLICT \(listing_id, opportunity_id\) DO UPDATE SET .* RETURNING`).
		WithArgs(pgxmock.AnyArg(), "lst-1", "opp-1", 82, "A", true, true, pgxmock.AnyArg(), "run-1", pgxmock.AnyArg()).
		WillReturnRows(matchRow(t, m, "m-1", created, updated))

	got, err := s.UpsertMatch(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, updated, got.UpdatedAt)
	assert.Equal(t, 90.0, got.Breakdown.Location.Score)
	assert.Equal(t, model.GradeA, got.Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertMatch_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO lease.matches`).WillReturnError(assert.AnError)

	_, err := s.UpsertMatch(context.Background(), sampleMatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: upsert match lst-1/opp-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMatch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM lease.matches WHERE listing_id = \$1 AND opportunity_id = \$2`).
		WithArgs("lst-x", "opp-x").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetMatch(context.Background(), "lst-x", "opp-x")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMatches_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	m := sampleMatch()
	now := time.Now().UTC()
	qualified := true

	mock.ExpectQuery(`FROM lease.matches WHERE listing_id = \$1 AND overall_score >= \$2 AND qualified = \$3 ORDER BY overall_score DESC, listing_id, opportunity_id LIMIT 10 OFFSET 20`).
		WithArgs("lst-1", 70, true).
		WillReturnRows(matchRow(t, m, "m-1", now, now))

	got, err := s.ListMatches(context.Background(), MatchFilter{
		ListingID: "lst-1",
		MinScore:  70,
		Qualified: &qualified,
		Limit:     10,
		Offset:    20,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "opp-1", got[0].OpportunityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMatches_EmptyIsNonNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM lease.matches ORDER BY overall_score DESC, listing_id, opportunity_id LIMIT 100`).
		WillReturnRows(pgxmock.NewRows(matchColumns))

	got, err := s.ListMatches(context.Background(), MatchFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMatches_InvalidFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.ListMatches(context.Background(), MatchFilter{MinScore: 101})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountsAndDeletes(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()
	asOf := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT count\(\*\) FROM lease.matches`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`SELECT count\(\*\) FROM lease.listings WHERE status = 'active'`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`SELECT count\(\*\) FROM lease.opportunities WHERE status = 'active'`).
		WithArgs(asOf).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(`DELETE FROM lease.matches WHERE listing_id = \$1`).
		WithArgs("lst-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM lease.matches WHERE opportunity_id = \$1`).
		WithArgs("opp-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	n, err := s.CountMatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = s.CountActiveListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.CountActiveOpportunities(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.DeleteMatchesForListing(ctx, "lst-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteMatchesForOpportunity(ctx, "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MatchSummaries(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	m := sampleMatch()
	b, err := json.Marshal(m.Breakdown)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT listing_id, opportunity_id, overall_score, grade, qualified, competitive, score_breakdown FROM lease.matches`).
		WillReturnRows(pgxmock.NewRows(summaryColumns).
			AddRow("lst-1", "opp-1", 82, "A", true, true, b))

	got, err := s.MatchSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 82, got[0].OverallScore)
	assert.Equal(t, 90.0, got[0].Location)
	assert.Equal(t, 80.0, got[0].Space)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)
	done := started.Add(3 * time.Second)
	stats := &model.BatchStats{
		RunID:       "run-1",
		Status:      model.RunDone,
		Processed:   10,
		Matched:     4,
		StartedAt:   started,
		CompletedAt: &done,
	}

	mock.ExpectExec(`INSERT INTO lease.match_runs .* ON CONFLICT \(run_id\) DO UPDATE`).
		WithArgs("run-1", "done", false, pgxmock.AnyArg(), started, &done).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.RecordRun(ctx, stats))

	data, err := json.Marshal(stats)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT stats FROM lease.match_runs ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"stats"}).AddRow(data))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, 4, runs[0].Matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func migrationNames(t *testing.T) []string {
	t.Helper()
	entries, err := fs.ReadDir(migrationFS, "migrations")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestPostgresStore_Migrate_FreshDB(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	names := migrationNames(t)
	require.NotEmpty(t, names)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS lease`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename FROM lease.schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	for _, name := range names {
		mock.ExpectExec(`.*`).WillReturnResult(pgxmock.NewResult("EXEC", 0))
		mock.ExpectExec(`INSERT INTO lease.schema_migrations`).WithArgs(name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_AlreadyApplied(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	names := migrationNames(t)

	rows := pgxmock.NewRows([]string{"filename"})
	for _, name := range names {
		rows.AddRow(name)
	}

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS lease`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename FROM lease.schema_migrations`).WillReturnRows(rows)
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_ApplyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	names := migrationNames(t)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS lease`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename FROM lease.schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec(`.*`).WillReturnError(assert.AnError)
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration "+names[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgresFromPool(mock)

	mock.ExpectPing()
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
