package resource

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/tallyware/tally/pkg/schema"
)

// Typed resource kinds for the endpoints callers touch most. Each converts
// to a schema-validated Record; the generic Record path stays available for
// types without a dedicated struct.

// Participant is a payee enrolled in the commissions system.
type Participant struct {
	Seq            string
	EffectiveStart time.Time
	EffectiveEnd   time.Time

	PayeeID       string
	FirstName     string
	LastName      string
	Email         string
	UserID        string
	Salary        *Value
	HireDate      time.Time
	BusinessUnits []string
}

// Validate checks the participant's own field rules.
func (p *Participant) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.PayeeID, validation.Required),
		validation.Field(&p.Email, is.EmailFormat),
	)
}

// Record converts the participant into a validated record.
func (p *Participant) Record(reg *schema.Registry) (*Record, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid participant: %w", err)
	}
	fields := map[string]any{
		"payeeId": p.PayeeID,
	}
	setString(fields, "firstName", p.FirstName)
	setString(fields, "lastName", p.LastName)
	setString(fields, "email", p.Email)
	setString(fields, "userId", p.UserID)
	if p.Salary != nil {
		fields["salary"] = *p.Salary
	}
	if !p.HireDate.IsZero() {
		fields["hireDate"] = Day(p.HireDate)
	}
	if len(p.BusinessUnits) > 0 {
		fields["businessUnits"] = p.BusinessUnits
	}
	return build(reg, schema.Participants, p.Seq, p.EffectiveStart, p.EffectiveEnd, fields)
}

// Position is a seat in the organization hierarchy, optionally occupied by a
// participant and described by a title.
type Position struct {
	Seq            string
	EffectiveStart time.Time
	EffectiveEnd   time.Time

	Name               string
	Description        string
	Payee              *Reference
	Title              *Reference
	Manager            *Reference
	TargetCompensation *Value
	CreditStartDate    time.Time
	CreditEndDate      time.Time
	ProcessingUnit     string
	BusinessUnits      []string
}

// Validate checks the position's own field rules.
func (p *Position) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required),
	)
}

// Record converts the position into a validated record.
func (p *Position) Record(reg *schema.Registry) (*Record, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid position: %w", err)
	}
	fields := map[string]any{
		"name": p.Name,
	}
	setString(fields, "description", p.Description)
	setString(fields, "processingUnit", p.ProcessingUnit)
	setReference(fields, "payee", p.Payee)
	setReference(fields, "title", p.Title)
	setReference(fields, "manager", p.Manager)
	if p.TargetCompensation != nil {
		fields["targetCompensation"] = *p.TargetCompensation
	}
	if !p.CreditStartDate.IsZero() {
		fields["creditStartDate"] = Day(p.CreditStartDate)
	}
	if !p.CreditEndDate.IsZero() {
		fields["creditEndDate"] = Day(p.CreditEndDate)
	}
	if len(p.BusinessUnits) > 0 {
		fields["businessUnits"] = p.BusinessUnits
	}
	return build(reg, schema.Positions, p.Seq, p.EffectiveStart, p.EffectiveEnd, fields)
}

// Title is a rule-element grouping of positions.
type Title struct {
	Seq            string
	EffectiveStart time.Time
	EffectiveEnd   time.Time

	Name          string
	Description   string
	BusinessUnits []string
}

// Record converts the title into a validated record.
func (t *Title) Record(reg *schema.Registry) (*Record, error) {
	if err := validation.ValidateStruct(t,
		validation.Field(&t.Name, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("invalid title: %w", err)
	}
	fields := map[string]any{
		"name": t.Name,
	}
	setString(fields, "description", t.Description)
	if len(t.BusinessUnits) > 0 {
		fields["businessUnits"] = t.BusinessUnits
	}
	return build(reg, schema.Titles, t.Seq, t.EffectiveStart, t.EffectiveEnd, fields)
}

// Credit is a transactional credit assigned to a position for a period.
type Credit struct {
	Seq string

	Name             string
	Position         Reference
	Payee            Reference
	Period           Reference
	CreditType       string
	Value            Value
	CompensationDate time.Time
	Reason           string
}

// Record converts the credit into a validated record.
func (c *Credit) Record(reg *schema.Registry) (*Record, error) {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Position, validation.Required),
		validation.Field(&c.Payee, validation.Required),
		validation.Field(&c.Period, validation.Required),
		validation.Field(&c.CreditType, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("invalid credit: %w", err)
	}
	fields := map[string]any{
		"name":       c.Name,
		"position":   c.Position,
		"payee":      c.Payee,
		"period":     c.Period,
		"creditType": c.CreditType,
		"value":      c.Value,
	}
	setString(fields, "reason", c.Reason)
	if !c.CompensationDate.IsZero() {
		fields["compensationDate"] = Day(c.CompensationDate)
	}
	return build(reg, schema.Credits, c.Seq, time.Time{}, time.Time{}, fields)
}

func build(reg *schema.Registry, name, seq string, start, end time.Time, fields map[string]any) (*Record, error) {
	desc, ok := reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no descriptor registered for %q", name)
	}
	rec, err := New(desc, fields)
	if err != nil {
		return nil, err
	}
	rec.Seq = seq
	if desc.Versioned {
		if !start.IsZero() {
			rec.EffectiveStart = Day(start)
		}
		if !end.IsZero() {
			rec.EffectiveEnd = Day(end)
		}
	}
	return rec, nil
}

func setString(fields map[string]any, name, value string) {
	if value != "" {
		fields[name] = value
	}
}

func setReference(fields map[string]any, name string, ref *Reference) {
	if ref != nil {
		fields[name] = *ref
	}
}
