// Package resource defines the caller-facing object model: schema-validated
// records, references between resources, and version sets of effective-dated
// records. The remote service is the system of record; nothing here is
// cached beyond a single call's lifetime.
package resource

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tallyware/tally/pkg/schema"
)

// Reference is a weak pointer from one resource's field to another resource:
// the target's sequence identifier plus enough denormalized data to avoid a
// mandatory fetch. A reference never implies ownership.
type Reference struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName,omitempty"`
}

// Value is an amount paired with its unit type (currency or quantity).
type Value struct {
	Amount   float64 `json:"value"`
	UnitType string  `json:"unitType,omitempty"`
}

// Record is a validated instance of a schema-described resource type.
//
// Seq is the system-assigned sequence identifier, empty until the remote
// service assigns one. For versioned types, EffectiveStart and EffectiveEnd
// bound the version's validity window at day granularity (inclusive).
type Record struct {
	desc *schema.Descriptor

	Seq            string
	EffectiveStart time.Time
	EffectiveEnd   time.Time
	Fields         map[string]any
}

// New constructs a record for the given descriptor, validating every field
// name and value shape against the declared field set. Validation findings
// are aggregated so the caller sees all of them at once.
func New(desc *schema.Descriptor, fields map[string]any) (*Record, error) {
	var result *multierror.Error
	for name, value := range fields {
		f, ok := desc.FieldNamed(name)
		if !ok {
			result = multierror.Append(result,
				fmt.Errorf("%s is not a valid field for %s", name, desc.Name))
			continue
		}
		if value == nil {
			continue
		}
		if err := checkKind(f, value); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	copied := make(map[string]any, len(fields))
	for name, value := range fields {
		copied[name] = value
	}
	return &Record{desc: desc, Fields: copied}, nil
}

func checkKind(f schema.Field, value any) error {
	ok := false
	switch f.Kind {
	case schema.KindString:
		_, ok = value.(string)
	case schema.KindInt:
		switch value.(type) {
		case int, int32, int64:
			ok = true
		}
	case schema.KindBool:
		_, ok = value.(bool)
	case schema.KindDate:
		_, ok = value.(time.Time)
	case schema.KindValue:
		_, ok = value.(Value)
	case schema.KindReference:
		_, ok = value.(Reference)
	case schema.KindStrings:
		_, ok = value.([]string)
	}
	if !ok {
		return fmt.Errorf("field %s: %T is not a valid %s", f.Name, value, f.Kind)
	}
	return nil
}

// Descriptor returns the schema descriptor the record was built against.
func (r *Record) Descriptor() *schema.Descriptor { return r.desc }

// ID returns the user-facing identifier value, or "" when the type declares
// none or the field is unset.
func (r *Record) ID() string {
	if r.desc.IDField == "" {
		return ""
	}
	id, _ := r.Fields[r.desc.IDField].(string)
	return id
}

// WithRange returns a copy of the record bounded to the given effective-date
// range. Dates are normalized to UTC midnight.
func (r *Record) WithRange(start, end time.Time) *Record {
	out := r.Clone()
	out.EffectiveStart = Day(start)
	out.EffectiveEnd = Day(end)
	return out
}

// Clone returns a deep-enough copy: the field map is copied, field values
// are shared (references and values are treated as immutable).
func (r *Record) Clone() *Record {
	fields := make(map[string]any, len(r.Fields))
	for name, value := range r.Fields {
		fields[name] = value
	}
	return &Record{
		desc:           r.desc,
		Seq:            r.Seq,
		EffectiveStart: r.EffectiveStart,
		EffectiveEnd:   r.EffectiveEnd,
		Fields:         fields,
	}
}

// FieldsEqual reports whether both records carry identical field content,
// ignoring sequence identifiers and effective-date boundaries.
func (r *Record) FieldsEqual(other *Record) bool {
	return reflect.DeepEqual(normalized(r.Fields), normalized(other.Fields))
}

// normalized strips nil entries so an absent field and an explicit nil
// compare equal.
func normalized(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for name, value := range fields {
		if value == nil {
			continue
		}
		out[name] = value
	}
	return out
}

// Day truncates a time to UTC midnight. Effective dates are day-granular.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay and PrevDay step one day across a version boundary.
func NextDay(t time.Time) time.Time { return Day(t).AddDate(0, 0, 1) }

// PrevDay returns the day before t.
func PrevDay(t time.Time) time.Time { return Day(t).AddDate(0, 0, -1) }

// VersionSet is the ordered sequence of versions sharing one sequence
// identifier, as known either locally (desired) or remotely (current).
type VersionSet struct {
	Seq      string
	Versions []*Record
}

// NewVersionSet builds a version set from records, sorted by ascending
// effective start date. Seq may be empty when the resource does not yet
// exist remotely.
func NewVersionSet(seq string, versions ...*Record) *VersionSet {
	vs := &VersionSet{Seq: seq, Versions: append([]*Record(nil), versions...)}
	vs.Sort()
	return vs
}

// Sort orders the versions by ascending effective start date.
func (vs *VersionSet) Sort() {
	sort.SliceStable(vs.Versions, func(i, j int) bool {
		return vs.Versions[i].EffectiveStart.Before(vs.Versions[j].EffectiveStart)
	})
}

// Empty reports whether the set holds no versions.
func (vs *VersionSet) Empty() bool { return vs == nil || len(vs.Versions) == 0 }
