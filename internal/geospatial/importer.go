package geospatial

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/lease-match/internal/model"
)

// Format is a federal inventory export format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatSHP  Format = "shp"
)

// DefaultImportChunk is the number of properties upserted per batch.
const DefaultImportChunk = 2000

// headerAliases maps normalized export headers to property fields.
var headerAliases = map[string]string{
	"id":                      "id",
	"location code":           "id",
	"lease number":            "id",
	"real property unique id": "id",

	"name":                     "name",
	"building name":            "name",
	"real property asset name": "name",

	"address":        "address",
	"street address": "address",

	"city": "city",

	"state": "state",

	"zip":      "zip",
	"zip code": "zip",

	"latitude": "latitude",
	"lat":      "latitude",

	"longitude": "longitude",
	"lon":       "longitude",
	"lng":       "longitude",

	"owned or leased": "ownership",
	"owned/leased":    "ownership",
	"ownership":       "ownership",

	"building rentable square feet": "rentable_sf",
	"rentable square feet":          "rentable_sf",
	"rsf":                           "rentable_sf",

	"available square feet": "vacant_sf",
	"vacant square feet":    "vacant_sf",

	"agency":       "agency",
	"using agency": "agency",

	"construction date": "construction_year",
	"construction year": "construction_year",
}

// ImportResult summarizes an import.
type ImportResult struct {
	Rows     int   `json:"rows"`
	Skipped  int   `json:"skipped"`
	Upserted int64 `json:"upserted"`
}

// Importer loads a federal real-property export into an Inventory.
type Importer struct {
	inv   Inventory
	chunk int
}

// NewImporter creates an importer writing to inv.
func NewImporter(inv Inventory, chunk int) *Importer {
	if chunk <= 0 {
		chunk = DefaultImportChunk
	}
	return &Importer{inv: inv, chunk: chunk}
}

// DetectFormat infers the export format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "xlsx":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	case "shp":
		return FormatSHP, nil
	default:
		return "", eris.Errorf("geo: unknown import format for %s", path)
	}
}

// ImportFile parses path in the given format (detected when empty) and
// upserts the properties in chunks.
func (im *Importer) ImportFile(ctx context.Context, path string, format Format) (*ImportResult, error) {
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	var (
		props   []model.FederalProperty
		skipped int
		err     error
	)
	switch format {
	case FormatXLSX:
		props, skipped, err = ParseXLSX(path)
	case FormatCSV:
		props, skipped, err = parseCSVFile(path)
	case FormatSHP:
		props, skipped, err = ParseShapefile(path)
	default:
		return nil, eris.Errorf("geo: unsupported import format %q", format)
	}
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Rows: len(props) + skipped, Skipped: skipped}
	for start := 0; start < len(props); start += im.chunk {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "geo: import cancelled")
		}
		end := min(start+im.chunk, len(props))
		n, err := im.inv.Upsert(ctx, props[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "geo: upsert properties %d-%d", start, end)
		}
		res.Upserted += n
	}

	zap.L().Info("geo: federal inventory imported",
		zap.String("file", path),
		zap.String("format", string(format)),
		zap.Int("rows", res.Rows),
		zap.Int("skipped", res.Skipped),
		zap.Int64("upserted", res.Upserted),
	)
	return res, nil
}

// ParseXLSX reads the first sheet of an inventory workbook.
func ParseXLSX(path string) ([]model.FederalProperty, int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, 0, eris.Wrap(err, "geo: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, 0, eris.New("geo: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return parseRecords(records)
}

func parseCSVFile(path string) ([]model.FederalProperty, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrap(err, "geo: open csv")
	}
	defer f.Close() //nolint:errcheck
	return ParseCSV(f)
}

// ParseCSV reads an inventory CSV with a header row.
func ParseCSV(r io.Reader) ([]model.FederalProperty, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, eris.Wrap(err, "geo: read csv row")
		}
		records = append(records, rec)
	}
	return parseRecords(records)
}

// parseRecords maps a header row plus data rows onto properties. Rows without
// an id or with unusable coordinates are skipped.
func parseRecords(records [][]string) ([]model.FederalProperty, int, error) {
	if len(records) == 0 {
		return nil, 0, eris.New("geo: import file is empty")
	}

	cols := make(map[string]int)
	for i, h := range records[0] {
		if field, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	for _, required := range []string{"id", "latitude", "longitude"} {
		if _, ok := cols[required]; !ok {
			return nil, 0, eris.Errorf("geo: import file missing %s column", required)
		}
	}

	get := func(rec []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		out     []model.FederalProperty
		skipped int
	)
	for _, rec := range records[1:] {
		p, ok := buildProperty(func(field string) string { return get(rec, field) })
		if !ok {
			skipped++
			continue
		}
		out = append(out, p)
	}
	return out, skipped, nil
}

// ParseShapefile reads a point shapefile of the inventory. Attribute names
// are matched through the same alias table. Point geometry overrides any
// latitude/longitude attributes.
func ParseShapefile(path string) ([]model.FederalProperty, int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if field, ok := headerAliases[normalizeHeader(name)]; ok {
			if _, dup := fieldIdx[field]; !dup {
				fieldIdx[field] = i
			}
		}
	}

	var (
		out     []model.FederalProperty
		skipped int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		pt, isPoint := shape.(*shp.Point)

		attr := func(field string) string {
			switch field {
			case "latitude":
				if isPoint {
					return strconv.FormatFloat(pt.Y, 'f', -1, 64)
				}
			case "longitude":
				if isPoint {
					return strconv.FormatFloat(pt.X, 'f', -1, 64)
				}
			}
			i, ok := fieldIdx[field]
			if !ok {
				return ""
			}
			return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		p, ok := buildProperty(attr)
		if !ok {
			skipped++
			continue
		}
		out = append(out, p)
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped shapefile records", zap.String("file", path), zap.Int("skipped", skipped))
	}
	return out, skipped, nil
}

func buildProperty(get func(field string) string) (model.FederalProperty, bool) {
	p := model.FederalProperty{
		ID:      get("id"),
		Name:    get("name"),
		Address: get("address"),
		City:    get("city"),
		State:   strings.ToUpper(get("state")),
		Zip:     get("zip"),
		Agency:  get("agency"),
	}
	if p.ID == "" {
		return p, false
	}

	lat, errLat := strconv.ParseFloat(get("latitude"), 64)
	lng, errLng := strconv.ParseFloat(get("longitude"), 64)
	if errLat != nil || errLng != nil || !model.ValidCoordinates(lat, lng) || (lat == 0 && lng == 0) {
		return p, false
	}
	p.Latitude, p.Longitude = lat, lng

	p.Ownership = parseOwnership(get("ownership"))
	p.RentableSF = parseNumber(get("rentable_sf"))
	p.VacantSF = parseNumber(get("vacant_sf"))
	p.ConstructionYear = parseYear(get("construction_year"))
	return p, true
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	return strings.Join(strings.Fields(h), " ")
}

func parseOwnership(v string) model.Ownership {
	switch strings.ToLower(v) {
	case "f", "o", "owned", "own", "federally owned", "government owned":
		return model.OwnershipOwned
	default:
		return model.OwnershipLeased
	}
}

func parseNumber(v string) float64 {
	v = strings.ReplaceAll(v, ",", "")
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseYear accepts a bare year or a date whose first four characters are
// the year.
func parseYear(v string) int {
	if len(v) < 4 {
		return 0
	}
	y, err := strconv.Atoi(v[:4])
	if err != nil {
		return 0
	}
	return y
}
