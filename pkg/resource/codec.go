package resource

import (
	"fmt"
	"reflect"
	"time"

	"github.com/araddon/dateparse"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/tallyware/tally/pkg/schema"
)

// Wire field names handled outside the declared field set.
const (
	wireEffectiveStartDate = "effectiveStartDate"
	wireEffectiveEndDate   = "effectiveEndDate"
)

const wireDateLayout = "2006-01-02"

// Codec translates between wire payloads (JSON-decoded maps) and validated
// records, driven by the schema registry.
type Codec struct {
	registry *schema.Registry
	logger   hclog.Logger
}

// NewCodec creates a codec over the given registry. A nil logger falls back
// to a null logger.
func NewCodec(registry *schema.Registry, logger hclog.Logger) *Codec {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Codec{
		registry: registry,
		logger:   logger.Named("codec"),
	}
}

// Registry returns the schema registry backing the codec.
func (c *Codec) Registry() *schema.Registry { return c.registry }

// Decode builds a record from a wire payload. Fields the schema does not
// declare are logged and dropped, matching the remote service's habit of
// returning audit columns on every type. Declared fields with malformed
// values are an error.
func (c *Codec) Decode(desc *schema.Descriptor, payload map[string]any) (*Record, error) {
	rec := &Record{desc: desc, Fields: make(map[string]any)}

	for name, raw := range payload {
		switch name {
		case desc.SeqField:
			rec.Seq = asString(raw)
			continue
		case wireEffectiveStartDate, wireEffectiveEndDate:
			if !desc.Versioned {
				c.logger.Warn("effective date on unversioned type",
					"resource", desc.Name, "field", name)
				continue
			}
			t, err := decodeDate(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to decode %s.%s: %w", desc.Name, name, err)
			}
			if name == wireEffectiveStartDate {
				rec.EffectiveStart = t
			} else {
				rec.EffectiveEnd = t
			}
			continue
		}

		f, ok := desc.FieldNamed(name)
		if !ok {
			c.logger.Debug("dropping undeclared field",
				"resource", desc.Name, "field", name)
			continue
		}
		if raw == nil {
			continue
		}

		value, err := decodeField(f, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s.%s: %w", desc.Name, name, err)
		}
		rec.Fields[name] = value
	}

	return rec, nil
}

// DecodeAll decodes a list payload into records.
func (c *Codec) DecodeAll(desc *schema.Descriptor, payloads []map[string]any) ([]*Record, error) {
	records := make([]*Record, 0, len(payloads))
	for _, payload := range payloads {
		rec, err := c.Decode(desc, payload)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Encode renders a record as a wire payload. Nil and absent fields are
// omitted; the sequence identifier is included only when withSeq is set
// (updates carry it, creates must not).
func (c *Codec) Encode(rec *Record, withSeq bool) map[string]any {
	desc := rec.Descriptor()
	payload := make(map[string]any, len(rec.Fields)+3)

	if withSeq && rec.Seq != "" {
		payload[desc.SeqField] = rec.Seq
	}
	if desc.Versioned && !rec.EffectiveStart.IsZero() {
		payload[wireEffectiveStartDate] = rec.EffectiveStart.Format(wireDateLayout)
	}
	if desc.Versioned && !rec.EffectiveEnd.IsZero() {
		payload[wireEffectiveEndDate] = rec.EffectiveEnd.Format(wireDateLayout)
	}

	for name, value := range rec.Fields {
		if value == nil {
			continue
		}
		payload[name] = encodeValue(value)
	}
	return payload
}

func encodeValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.Format(wireDateLayout)
	case Reference:
		return v.Key
	case Value:
		out := map[string]any{"value": v.Amount}
		if v.UnitType != "" {
			out["unitType"] = v.UnitType
		}
		return out
	default:
		return v
	}
}

func decodeField(f schema.Field, raw any) (any, error) {
	switch f.Kind {
	case schema.KindDate:
		return decodeDate(raw)
	case schema.KindReference:
		return decodeReference(raw)
	case schema.KindValue:
		return decodeAmount(raw)
	case schema.KindInt:
		switch n := raw.(type) {
		case float64:
			return int(n), nil
		case int:
			return n, nil
		}
		return nil, fmt.Errorf("%T is not an integer", raw)
	case schema.KindStrings:
		items, ok := raw.([]any)
		if !ok {
			if ss, ok := raw.([]string); ok {
				return ss, nil
			}
			return nil, fmt.Errorf("%T is not a string list", raw)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, asString(item))
		}
		return out, nil
	case schema.KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%T is not a bool", raw)
		}
		return b, nil
	default:
		return asString(raw), nil
	}
}

// decodeDate accepts the formats the remote service emits: bare dates,
// RFC 3339 timestamps, and the odd epoch-milliseconds column.
func decodeDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return Day(v), nil
	case string:
		t, err := dateparse.ParseAny(v)
		if err != nil {
			return time.Time{}, err
		}
		return Day(t), nil
	case float64:
		return Day(time.UnixMilli(int64(v)).UTC()), nil
	default:
		return time.Time{}, fmt.Errorf("%T is not a date", raw)
	}
}

// decodeReference accepts either a bare key or an expanded object carrying
// denormalized display data.
func decodeReference(raw any) (Reference, error) {
	switch v := raw.(type) {
	case string:
		return Reference{Key: v}, nil
	case float64:
		return Reference{Key: asString(v)}, nil
	case map[string]any:
		var ref Reference
		cfg := &mapstructure.DecoderConfig{
			Result:  &ref,
			TagName: "json",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				stringifyKeyHook,
			),
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return Reference{}, err
		}
		if err := decoder.Decode(v); err != nil {
			return Reference{}, fmt.Errorf("failed to decode reference: %w", err)
		}
		return ref, nil
	default:
		return Reference{}, fmt.Errorf("%T is not a reference", raw)
	}
}

func decodeAmount(raw any) (Value, error) {
	switch v := raw.(type) {
	case float64:
		return Value{Amount: v}, nil
	case map[string]any:
		var value Value
		cfg := &mapstructure.DecoderConfig{Result: &value, TagName: "json"}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return Value{}, err
		}
		if err := decoder.Decode(v); err != nil {
			return Value{}, fmt.Errorf("failed to decode value: %w", err)
		}
		return value, nil
	default:
		return Value{}, fmt.Errorf("%T is not a value", raw)
	}
}

// stringifyKeyHook turns numeric reference keys into strings; the remote
// service is inconsistent about emitting seqs as numbers or strings.
func stringifyKeyHook(from, to reflect.Kind, data any) (any, error) {
	if to == reflect.String {
		if f, ok := data.(float64); ok {
			return asString(f), nil
		}
	}
	return data, nil
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		// Seqs are 17-digit integers; never render them in scientific
		// notation.
		return fmt.Sprintf("%.0f", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
