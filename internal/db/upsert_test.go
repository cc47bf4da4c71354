package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var propertyUpsert = UpsertConfig{
	Table:        "lease.federal_properties",
	Columns:      []string{"id", "name", "rentable_sf"},
	ConflictKeys: []string{"id"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, propertyUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "lease.federal_properties",
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "lease.federal_properties",
		Columns: []string{"id", "name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_lease_federal_properties"}, propertyUpsert.Columns).
		WillReturnResult(2)
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO "lease"."federal_properties"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"DC0001", "Federal Center", 120000}, {"DC0002", "Annex", 40000}}
	n, err := BulkUpsert(context.Background(), mock, propertyUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

	_, err = BulkUpsert(context.Background(), mock, propertyUpsert, [][]any{{"DC0001", "x", 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_lease_federal_properties"}, propertyUpsert.Columns).
		WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, propertyUpsert, [][]any{{"DC0001", "x", 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatement(t *testing.T) {
	tests := []struct {
		name       string
		updateCols []string
		want       string
	}{
		{
			name:       "update",
			updateCols: []string{"name", "rentable_sf"},
			want: `INSERT INTO "lease"."federal_properties" ("id", "name", "rentable_sf") SELECT "id", "name", "rentable_sf" FROM "_tmp" ` +
				`ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "rentable_sf" = EXCLUDED."rentable_sf"`,
		},
		{
			name: "nothing to update",
			want: `INSERT INTO "lease"."federal_properties" ("id", "name", "rentable_sf") SELECT "id", "name", "rentable_sf" FROM "_tmp" ` +
				`ON CONFLICT ("id") DO NOTHING`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, upsertStatement(propertyUpsert, `"_tmp"`, tt.updateCols))
		})
	}
}

func TestNonConflictColumns(t *testing.T) {
	assert.Equal(t, []string{"name", "rentable_sf"}, nonConflictColumns(propertyUpsert.Columns, []string{"id"}))
	assert.Nil(t, nonConflictColumns([]string{"id"}, []string{"id"}))
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"lease.matches", `"lease"."matches"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestTempTableName(t *testing.T) {
	assert.Equal(t, "_tmp_upsert_lease_matches", TempTableName("lease.matches"))
}
