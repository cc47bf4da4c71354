package geospatial

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/lease-match/internal/db"
	"github.com/sells-group/lease-match/internal/model"
)

// SRID of stored property geometry.
const SRID = 4326

var propertyColumns = []string{
	"id", "name", "address", "city", "state", "zip",
	"latitude", "longitude", "geom", "ownership",
	"rentable_sf", "vacant_sf", "agency", "construction_year",
}

// PostgresInventory implements Inventory over PostGIS.
type PostgresInventory struct {
	pool db.Pool
}

// NewPostgresInventory creates a new PostgresInventory.
func NewPostgresInventory(pool db.Pool) *PostgresInventory {
	return &PostgresInventory{pool: pool}
}

// WithinBBox implements Inventory.
func (s *PostgresInventory) WithinBBox(ctx context.Context, box BBox, limit int) ([]model.FederalProperty, error) {
	sql := `
		SELECT id, name, address, city, state, zip, latitude, longitude,
		       ownership, rentable_sf, vacant_sf, agency, construction_year, updated_at
		FROM lease.federal_properties
		WHERE geom && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY id
	`
	args := []any{box.MinLng, box.MinLat, box.MaxLng, box.MaxLat}
	if limit > 0 {
		sql += " LIMIT $5"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "geo: query properties in bbox")
	}
	defer rows.Close()

	var out []model.FederalProperty
	for rows.Next() {
		var p model.FederalProperty
		var ownership string
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Address, &p.City, &p.State, &p.Zip,
			&p.Latitude, &p.Longitude, &ownership,
			&p.RentableSF, &p.VacantSF, &p.Agency, &p.ConstructionYear, &p.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "geo: scan property row")
		}
		p.Ownership = model.Ownership(ownership)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "geo: iterate property rows")
}

// SamplePoints implements Inventory.
func (s *PostgresInventory) SamplePoints(ctx context.Context, n int) ([]Point, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT latitude, longitude FROM lease.federal_properties ORDER BY md5(id) LIMIT $1`, n)
	if err != nil {
		return nil, eris.Wrap(err, "geo: sample points")
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var pt Point
		if err := rows.Scan(&pt.Lat, &pt.Lng); err != nil {
			return nil, eris.Wrap(err, "geo: scan sample point")
		}
		out = append(out, pt)
	}
	return out, eris.Wrap(rows.Err(), "geo: iterate sample points")
}

// Count implements Inventory.
func (s *PostgresInventory) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lease.federal_properties`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "geo: count properties")
	}
	return n, nil
}

// Upsert implements Inventory using COPY into a temp table.
func (s *PostgresInventory) Upsert(ctx context.Context, props []model.FederalProperty) (int64, error) {
	rows := make([][]any, 0, len(props))
	for _, p := range props {
		point, err := EncodePoint(p.Latitude, p.Longitude)
		if err != nil {
			return 0, eris.Wrapf(err, "geo: encode property %s", p.ID)
		}
		rows = append(rows, []any{
			p.ID, p.Name, p.Address, p.City, p.State, p.Zip,
			p.Latitude, p.Longitude, point, string(p.Ownership),
			p.RentableSF, p.VacantSF, p.Agency, p.ConstructionYear,
		})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "lease.federal_properties",
		Columns:      propertyColumns,
		ConflictKeys: []string{"id"},
	}, rows)
}

// StateSummary implements Inventory.
func (s *PostgresInventory) StateSummary(ctx context.Context) ([]StateSummary, error) {
	rows, err := s.pool.Query(ctx, stateSummarySQL)
	if err != nil {
		return nil, eris.Wrap(err, "geo: query state summary")
	}
	return scanStateSummaries(rows)
}

// EncodePoint returns the EWKB encoding of a WGS84 point.
func EncodePoint(lat, lng float64) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}
