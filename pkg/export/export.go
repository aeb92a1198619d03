// Package export streams resource listings into CSV files. It works
// against any Lister, so exports run equally well from a live tenant or
// from a fake in tests, and writes through afero so destinations can be
// swapped for in-memory filesystems.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/tallyware/tally/pkg/client"
	"github.com/tallyware/tally/pkg/resource"
	"github.com/tallyware/tally/pkg/schema"
)

const dateLayout = "2006-01-02"

// Lister is the subset of the client used for exporting. *client.Client
// implements it.
type Lister interface {
	Each(ctx context.Context, desc *schema.Descriptor, opts client.ListOptions, fn func(*resource.Record) error) error
}

// Config configures an Exporter.
type Config struct {
	// Lister supplies the records. Required.
	Lister Lister

	// FS receives the output files. Defaults to the OS filesystem.
	FS afero.Fs

	// Logger for export progress.
	Logger hclog.Logger
}

// Exporter writes resource listings to CSV files.
type Exporter struct {
	lister Lister
	fs     afero.Fs
	logger hclog.Logger
}

// New creates an Exporter from the config.
func New(cfg Config) (*Exporter, error) {
	if cfg.Lister == nil {
		return nil, fmt.Errorf("lister is required")
	}
	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Exporter{
		lister: cfg.Lister,
		fs:     fs,
		logger: logger.Named("export"),
	}, nil
}

// Columns returns the CSV header for a descriptor: the sequence and
// effective-range columns first, then each declared field in schema order.
// Reference fields flatten into key and display name columns, value fields
// into amount and unit type.
func Columns(desc *schema.Descriptor) []string {
	cols := []string{desc.SeqField}
	if desc.Versioned {
		cols = append(cols, "effectiveStartDate", "effectiveEndDate")
	}
	for _, f := range desc.Fields {
		switch f.Kind {
		case schema.KindReference:
			cols = append(cols, f.Name+".key", f.Name+".displayName")
		case schema.KindValue:
			cols = append(cols, f.Name+".amount", f.Name+".unitType")
		default:
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// Write streams every record matching opts into a CSV file at path,
// creating or truncating it. The file carries a header row followed by one
// row per record.
func (e *Exporter) Write(ctx context.Context, desc *schema.Descriptor, opts client.ListOptions, path string) (int, error) {
	e.logger.Info("exporting", "resource", desc.Name, "path", path)

	f, err := e.fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns(desc)); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rows := 0
	err = e.lister.Each(ctx, desc, opts, func(rec *resource.Record) error {
		if err := w.Write(row(desc, rec)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		rows++
		return nil
	})
	if err != nil {
		return rows, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, fmt.Errorf("failed to flush %s: %w", path, err)
	}
	e.logger.Info("export complete", "resource", desc.Name, "rows", rows)
	return rows, nil
}

func row(desc *schema.Descriptor, rec *resource.Record) []string {
	cells := []string{rec.Seq}
	if desc.Versioned {
		cells = append(cells, formatDate(rec.EffectiveStart), formatDate(rec.EffectiveEnd))
	}
	for _, f := range desc.Fields {
		raw := rec.Fields[f.Name]
		switch f.Kind {
		case schema.KindReference:
			ref, _ := raw.(resource.Reference)
			cells = append(cells, ref.Key, ref.DisplayName)
		case schema.KindValue:
			val, ok := raw.(resource.Value)
			if !ok {
				cells = append(cells, "", "")
				continue
			}
			cells = append(cells, formatScalar(val.Amount), val.UnitType)
		default:
			cells = append(cells, formatScalar(raw))
		}
	}
	return cells
}

func formatScalar(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return formatDate(v)
	case float64:
		return trimFloat(v)
	case []string:
		sorted := append([]string(nil), v...)
		sort.Strings(sorted)
		return strings.Join(sorted, ";")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
