// Package schema holds the declarative metadata that drives the generic
// request machinery: one Descriptor per remote endpoint type, describing its
// wire name, endpoint path, identifying fields, and declared field set.
//
// Descriptors are configuration data. The client, codec, and reconciliation
// packages consume them; nothing in this package talks to the network.
package schema

import (
	"fmt"
	"sort"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/iancoleman/strcase"
)

// Kind describes the declared type of a resource field.
type Kind string

const (
	KindString    Kind = "string"
	KindInt       Kind = "int"
	KindBool      Kind = "bool"
	KindDate      Kind = "date"
	KindValue     Kind = "value"     // amount with unit type
	KindReference Kind = "reference" // weak pointer to another resource
	KindStrings   Kind = "strings"   // list of strings
)

// IsValid reports whether the kind is one of the declared constants.
func (k Kind) IsValid() bool {
	switch k {
	case KindString, KindInt, KindBool, KindDate, KindValue, KindReference, KindStrings:
		return true
	}
	return false
}

// Field declares one attribute of a resource type.
type Field struct {
	// Name is the canonical field name in lower-camel wire form,
	// e.g. "effectiveStartDate".
	Name string

	// Kind is the declared value type.
	Kind Kind

	// Required marks fields the remote service rejects when absent on create.
	Required bool

	// Expand marks reference fields that should be expanded on reads so the
	// response carries denormalized display data instead of a bare key.
	Expand bool

	// RefSchema names the registry entry a reference field points to.
	// Only set when Kind is KindReference.
	RefSchema string
}

// Descriptor is the static metadata for one endpoint type.
type Descriptor struct {
	// Name is the wire name of the endpoint collection, e.g. "participants".
	// It doubles as the payload envelope key in responses.
	Name string

	// Endpoint is the URI path of the collection, e.g. "api/v2/participants".
	Endpoint string

	// SeqField is the name of the system-assigned sequence identifier field,
	// e.g. "payeeSeq". Immutable once assigned by the remote service.
	SeqField string

	// IDField is the name of the user-facing identifier field, e.g.
	// "payeeId". Empty when the type has no user-facing identifier.
	IDField string

	// Versioned marks types whose instances carry effective-date ranges and
	// support the (seq)/versions sub-endpoint.
	Versioned bool

	// Fields is the declared field set, excluding SeqField and the
	// effective-date pair which are handled by the codec directly.
	Fields []Field
}

// Validate checks the descriptor for internal consistency.
func (d *Descriptor) Validate() error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Endpoint, validation.Required),
		validation.Field(&d.SeqField, validation.Required),
		validation.Field(&d.Fields, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("descriptor %q: %w", d.Name, err)
	}
	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("descriptor %q: field with empty name", d.Name)
		}
		if !f.Kind.IsValid() {
			return fmt.Errorf("descriptor %q: field %q has invalid kind %q", d.Name, f.Name, f.Kind)
		}
		if f.Kind == KindReference && f.RefSchema == "" {
			return fmt.Errorf("descriptor %q: reference field %q missing target schema", d.Name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("descriptor %q: duplicate field %q", d.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	if d.IDField != "" {
		if _, ok := seen[d.IDField]; !ok {
			return fmt.Errorf("descriptor %q: id field %q not in field set", d.Name, d.IDField)
		}
	}
	return nil
}

// FieldNamed returns the declared field with the given name.
func (d *Descriptor) FieldNamed(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the names of all fields marked required.
func (d *Descriptor) RequiredFields() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Expands returns the wire names of all expandable reference fields, used to
// populate the expand query parameter on reads.
func (d *Descriptor) Expands() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Expand {
			names = append(names, f.Name)
		}
	}
	return names
}

// WireName converts a Go-style field name to its lower-camel wire form.
// Names already in wire form pass through unchanged.
func WireName(name string) string {
	return strcase.ToLowerCamel(name)
}

// Registry is a set of descriptors keyed by wire name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register validates and adds a descriptor. Registering a name twice is an
// error; descriptors are static startup data, never reloaded.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("descriptor %q already registered", d.Name)
	}
	r.byName[d.Name] = d
	return nil
}

// Lookup returns the descriptor registered under name. The name is
// normalized to wire form first, so user-supplied spellings like
// "Participants" resolve to the "participants" descriptor.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[WireName(name)]
	return d, ok
}

// MustLookup returns the descriptor registered under name, panicking when it
// is absent. Intended for built-in names known at compile time.
func (r *Registry) MustLookup(name string) *Descriptor {
	d, ok := r.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("schema: no descriptor registered for %q", name))
	}
	return d
}

// Names returns all registered wire names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
