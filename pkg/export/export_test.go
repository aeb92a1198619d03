package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyware/tally/pkg/client"
	"github.com/tallyware/tally/pkg/resource"
	"github.com/tallyware/tally/pkg/schema"
)

type fakeLister struct {
	records []*resource.Record
	opts    client.ListOptions
	err     error
}

func (l *fakeLister) Each(ctx context.Context, desc *schema.Descriptor, opts client.ListOptions, fn func(*resource.Record) error) error {
	l.opts = opts
	if l.err != nil {
		return l.err
	}
	for _, rec := range l.records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func participant(t *testing.T, fields map[string]any) *resource.Record {
	t.Helper()
	desc := schema.Builtin().MustLookup(schema.Participants)
	rec, err := resource.New(desc, fields)
	require.NoError(t, err)
	return rec
}

func TestColumns(t *testing.T) {
	t.Run("versioned type leads with range columns", func(t *testing.T) {
		desc := schema.Builtin().MustLookup(schema.Participants)
		cols := Columns(desc)
		assert.Equal(t, []string{"payeeSeq", "effectiveStartDate", "effectiveEndDate"}, cols[:3])
		assert.Contains(t, cols, "salary.amount")
		assert.Contains(t, cols, "salary.unitType")
	})

	t.Run("reference fields flatten", func(t *testing.T) {
		desc := schema.Builtin().MustLookup(schema.Positions)
		cols := Columns(desc)
		assert.Contains(t, cols, "payee.key")
		assert.Contains(t, cols, "payee.displayName")
		assert.NotContains(t, cols, "payee")
	})

	t.Run("unversioned type has no range columns", func(t *testing.T) {
		desc := schema.Builtin().MustLookup(schema.Calendars)
		cols := Columns(desc)
		assert.Equal(t, "calendarSeq", cols[0])
		assert.NotContains(t, cols, "effectiveStartDate")
	})
}

func TestExporter_Write(t *testing.T) {
	ctx := context.Background()
	desc := schema.Builtin().MustLookup(schema.Participants)

	t.Run("writes header and rows", func(t *testing.T) {
		rec := participant(t, map[string]any{
			"payeeId":       "P-100",
			"firstName":     "Ada",
			"hireDate":      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			"salary":        resource.Value{Amount: 75000, UnitType: "EUR"},
			"businessUnits": []string{"south", "north"},
		}).WithRange(
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		)
		rec.Seq = "42"

		fs := afero.NewMemMapFs()
		lister := &fakeLister{records: []*resource.Record{rec}}
		exporter, err := New(Config{Lister: lister, FS: fs})
		require.NoError(t, err)

		rows, err := exporter.Write(ctx, desc, client.ListOptions{Filter: "payeeId eq 'P-100'"}, "out.csv")
		require.NoError(t, err)
		assert.Equal(t, 1, rows)
		assert.Equal(t, "payeeId eq 'P-100'", lister.opts.Filter)

		raw, err := afero.ReadFile(fs, "out.csv")
		require.NoError(t, err)
		lines, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
		require.NoError(t, err)
		require.Len(t, lines, 2)

		byColumn := make(map[string]string, len(lines[0]))
		for i, col := range lines[0] {
			byColumn[col] = lines[1][i]
		}
		assert.Equal(t, "42", byColumn["payeeSeq"])
		assert.Equal(t, "2024-01-01", byColumn["effectiveStartDate"])
		assert.Equal(t, "2024-12-31", byColumn["effectiveEndDate"])
		assert.Equal(t, "Ada", byColumn["firstName"])
		assert.Equal(t, "", byColumn["lastName"])
		assert.Equal(t, "2024-02-01", byColumn["hireDate"])
		assert.Equal(t, "75000", byColumn["salary.amount"])
		assert.Equal(t, "EUR", byColumn["salary.unitType"])
		assert.Equal(t, "north;south", byColumn["businessUnits"])
	})

	t.Run("empty listing still writes the header", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		exporter, err := New(Config{Lister: &fakeLister{}, FS: fs})
		require.NoError(t, err)

		rows, err := exporter.Write(ctx, desc, client.ListOptions{}, "empty.csv")
		require.NoError(t, err)
		assert.Zero(t, rows)

		raw, err := afero.ReadFile(fs, "empty.csv")
		require.NoError(t, err)
		lines, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, Columns(desc), lines[0])
	})

	t.Run("listing failure propagates", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		exporter, err := New(Config{
			Lister: &fakeLister{err: fmt.Errorf("tenant unreachable")},
			FS:     fs,
		})
		require.NoError(t, err)

		_, err = exporter.Write(ctx, desc, client.ListOptions{}, "broken.csv")
		assert.ErrorContains(t, err, "tenant unreachable")
	})

	t.Run("create failure names the path", func(t *testing.T) {
		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
		exporter, err := New(Config{Lister: &fakeLister{}, FS: fs})
		require.NoError(t, err)

		_, err = exporter.Write(ctx, desc, client.ListOptions{}, "denied.csv")
		assert.ErrorContains(t, err, "denied.csv")
	})

	t.Run("lister is required", func(t *testing.T) {
		_, err := New(Config{})
		assert.ErrorContains(t, err, "lister is required")
	})
}
