package geospatial

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lease-match/internal/model"
)

// SQLiteSchema creates the federal property table for single-file deployments.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS federal_properties (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	zip               TEXT NOT NULL DEFAULT '',
	latitude          REAL NOT NULL,
	longitude         REAL NOT NULL,
	ownership         TEXT NOT NULL DEFAULT 'leased',
	rentable_sf       REAL NOT NULL DEFAULT 0,
	vacant_sf         REAL NOT NULL DEFAULT 0,
	agency            TEXT NOT NULL DEFAULT '',
	construction_year INTEGER NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_federal_properties_lat_lng ON federal_properties(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_federal_properties_state ON federal_properties(state);
`

// SQLiteInventory implements Inventory on a SQLite database.
type SQLiteInventory struct {
	db *sql.DB
}

// NewSQLiteInventory wraps an open SQLite handle.
func NewSQLiteInventory(db *sql.DB) *SQLiteInventory {
	return &SQLiteInventory{db: db}
}

// Migrate creates the inventory table.
func (s *SQLiteInventory) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, SQLiteSchema)
	return eris.Wrap(err, "sqlite: migrate federal properties")
}

// WithinBBox implements Inventory.
func (s *SQLiteInventory) WithinBBox(ctx context.Context, box BBox, limit int) ([]model.FederalProperty, error) {
	query := `
		SELECT id, name, address, city, state, zip, latitude, longitude,
		       ownership, rentable_sf, vacant_sf, agency, construction_year, updated_at
		FROM federal_properties
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		ORDER BY id`
	args := []any{box.MinLat, box.MaxLat, box.MinLng, box.MaxLng}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query properties in bbox")
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
			return nil, eris.Wrap(err, "sqlite: scan property row")
		}
		p.Ownership = model.Ownership(ownership)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate property rows")
}

// SamplePoints implements Inventory. SQLite has no md5, so ordering is done
// here over the id hashes.
func (s *SQLiteInventory) SamplePoints(ctx context.Context, n int) ([]Point, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, latitude, longitude FROM federal_properties`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sample points")
	}
	defer rows.Close()

	type keyed struct {
		hash string
		pt   Point
	}
	var all []keyed
	for rows.Next() {
		var id string
		var pt Point
		if err := rows.Scan(&id, &pt.Lat, &pt.Lng); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sample point")
		}
		sum := md5.Sum([]byte(id))
		all = append(all, keyed{hash: hex.EncodeToString(sum[:]), pt: pt})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate sample points")
	}

	sort.Slice(all, func(i, j int) bool { return all[i].hash < all[j].hash })
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	out := make([]Point, len(all))
	for i, k := range all {
		out[i] = k.pt
	}
	return out, nil
}

// Count implements Inventory.
func (s *SQLiteInventory) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM federal_properties`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count properties")
	}
	return n, nil
}

// Upsert implements Inventory in a single transaction.
func (s *SQLiteInventory) Upsert(ctx context.Context, props []model.FederalProperty) (int64, error) {
	if len(props) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin property upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO federal_properties (id, name, address, city, state, zip, latitude, longitude,
			ownership, rentable_sf, vacant_sf, agency, construction_year, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			city = excluded.city,
			state = excluded.state,
			zip = excluded.zip,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			ownership = excluded.ownership,
			rentable_sf = excluded.rentable_sf,
			vacant_sf = excluded.vacant_sf,
			agency = excluded.agency,
			construction_year = excluded.construction_year,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare property upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, p := range props {
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Name, p.Address, p.City, p.State, p.Zip, p.Latitude, p.Longitude,
			string(p.Ownership), p.RentableSF, p.VacantSF, p.Agency, p.ConstructionYear, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert property %s", p.ID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit property upsert")
	}
	return n, nil
}

// StateSummary implements Inventory.
func (s *SQLiteInventory) StateSummary(ctx context.Context) ([]StateSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state,
		       COUNT(*),
		       SUM(CASE WHEN ownership = 'leased' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN ownership = 'owned' THEN 1 ELSE 0 END),
		       COALESCE(SUM(rentable_sf), 0),
		       COALESCE(SUM(vacant_sf), 0)
		FROM federal_properties
		GROUP BY state
		ORDER BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query state summary")
	}
	defer rows.Close()

	var out []StateSummary
	for rows.Next() {
		var st StateSummary
		if err := rows.Scan(&st.State, &st.Properties, &st.LeasedCount, &st.OwnedCount, &st.TotalRSF, &st.VacantRSF); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan state summary")
		}
		st.VacancyRate = vacancyRate(st.VacantRSF, st.TotalRSF)
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate state summary")
}
