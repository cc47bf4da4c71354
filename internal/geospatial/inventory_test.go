package geospatial

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lease-match/internal/model"
)

var dcViewport = BBox{MinLng: -77.10, MinLat: 38.85, MaxLng: -77.00, MaxLat: 38.95}

func newTestSQLiteInventory(t *testing.T) *SQLiteInventory {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	inv := NewSQLiteInventory(db)
	require.NoError(t, inv.Migrate(context.Background()))
	return inv
}

func TestMemoryInventory_WithinBBox(t *testing.T) {
	inv := NewMemoryInventory(dcProperties()...)

	got, err := inv.WithinBBox(context.Background(), dcViewport, 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "DC0001", got[0].ID)
	assert.Equal(t, "VA0001", got[3].ID)

	limited, err := inv.WithinBBox(context.Background(), dcViewport, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryInventory_SamplePointsStable(t *testing.T) {
	a, err := NewMemoryInventory(dcProperties()...).SamplePoints(context.Background(), 3)
	require.NoError(t, err)
	b, err := NewMemoryInventory(dcProperties()...).SamplePoints(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, a, 3)
	assert.Equal(t, a, b)
}

func TestMemoryInventory_UpsertAndCount(t *testing.T) {
	inv := NewMemoryInventory()
	ctx := context.Background()

	n, err := inv.Upsert(ctx, dcProperties())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	updated := dcProperties()[0]
	updated.RentableSF = 1
	_, err = inv.Upsert(ctx, []model.FederalProperty{updated})
	require.NoError(t, err)

	count, err := inv.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	summary, err := inv.StateSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "DC", summary[0].State)
	assert.InDelta(t, 530001, summary[0].TotalRSF, 0.01)
}

func TestSQLiteInventory_RoundTrip(t *testing.T) {
	inv := newTestSQLiteInventory(t)
	ctx := context.Background()

	n, err := inv.Upsert(ctx, dcProperties())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// Upsert is idempotent on id.
	_, err = inv.Upsert(ctx, dcProperties()[:2])
	require.NoError(t, err)

	count, err := inv.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	got, err := inv.WithinBBox(ctx, dcViewport, 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "DC0001", got[0].ID)
	assert.Equal(t, model.OwnershipLeased, got[0].Ownership)
	assert.InDelta(t, 200000, got[0].RentableSF, 0.01)

	summary, err := inv.StateSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, 3, summary[0].Properties)
	assert.Equal(t, 1, summary[0].OwnedCount)
}

func TestSQLiteInventory_SampleOrderMatchesMemory(t *testing.T) {
	inv := newTestSQLiteInventory(t)
	ctx := context.Background()
	_, err := inv.Upsert(ctx, dcProperties())
	require.NoError(t, err)

	fromSQLite, err := inv.SamplePoints(ctx, 4)
	require.NoError(t, err)
	fromMemory, err := NewMemoryInventory(dcProperties()...).SamplePoints(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, fromMemory, fromSQLite)
}

func TestSQLiteInventory_EmptyUpsert(t *testing.T) {
	inv := newTestSQLiteInventory(t)
	n, err := inv.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgresInventory_WithinBBox(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM lease.federal_properties WHERE geom && ST_MakeEnvelope").
		WithArgs(dcViewport.MinLng, dcViewport.MinLat, dcViewport.MaxLng, dcViewport.MaxLat, 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "address", "city", "state", "zip", "latitude", "longitude",
			"ownership", "rentable_sf", "vacant_sf", "agency", "construction_year", "updated_at",
		}).AddRow(
			"DC0001", "Federal Center", "1 Main St", "Washington", "DC", "20001", 38.8951, -77.0364,
			"owned", 200000.0, 0.0, "GSA", 1965, now,
		))

	got, err := NewPostgresInventory(mock).WithinBBox(context.Background(), dcViewport, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.OwnershipOwned, got[0].Ownership)
	assert.Equal(t, 1965, got[0].ConstructionYear)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInventory_WithinBBoxError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM lease.federal_properties").
		WillReturnError(fmt.Errorf("connection refused"))

	_, err = NewPostgresInventory(mock).WithinBBox(context.Background(), dcViewport, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bbox")
}

func TestPostgresInventory_SamplePoints(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`ORDER BY md5\(id\) LIMIT`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"latitude", "longitude"}).
			AddRow(38.9, -77.0).
			AddRow(39.29, -76.61))

	got, err := NewPostgresInventory(mock).SamplePoints(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []Point{{Lat: 38.9, Lng: -77.0}, {Lat: 39.29, Lng: -76.61}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInventory_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM lease.federal_properties`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	n, err := NewPostgresInventory(mock).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestPostgresInventory_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_lease_federal_properties"}, propertyColumns).
		WillReturnResult(5)
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO "lease"."federal_properties"`).WillReturnResult(pgxmock.NewResult("INSERT", 5))
	mock.ExpectCommit()

	n, err := NewPostgresInventory(mock).Upsert(context.Background(), dcProperties())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodePoint(t *testing.T) {
	data, err := EncodePoint(38.8951, -77.0364)
	require.NoError(t, err)
	// NDR byte order, point type with SRID flag, SRID 4326 as little endian.
	require.Len(t, data, 25)
	assert.Equal(t, byte(0x01), data[0])
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x20}, data[1:5])
	assert.Equal(t, []byte{0xe6, 0x10, 0x00, 0x00}, data[5:9])
}

func TestPropertiesInViewport(t *testing.T) {
	inv := NewMemoryInventory(dcProperties()...)
	ctx := context.Background()

	got, err := PropertiesInViewport(ctx, inv, dcViewport, 0)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = PropertiesInViewport(ctx, inv, BBox{MinLng: -105, MinLat: 41, MaxLng: -104, MaxLat: 42}, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = PropertiesInViewport(ctx, inv, BBox{MinLng: -76, MinLat: 38, MaxLng: -77, MaxLat: 39}, 0)
	assert.Error(t, err)
}

func TestPropertiesInViewport_LimitCapped(t *testing.T) {
	inv := &limitRecorder{}
	_, err := PropertiesInViewport(context.Background(), inv, dcViewport, 100000)
	require.NoError(t, err)
	assert.Equal(t, MaxViewportLimit, inv.limit)

	_, err = PropertiesInViewport(context.Background(), inv, dcViewport, -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultViewportLimit, inv.limit)
}

type limitRecorder struct {
	MemoryInventory
	limit int
}

func (l *limitRecorder) WithinBBox(_ context.Context, _ BBox, limit int) ([]model.FederalProperty, error) {
	l.limit = limit
	return nil, nil
}
