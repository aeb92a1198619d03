package schema

import "fmt"

// Built-in descriptor names.
const (
	Participants = "participants"
	Positions    = "positions"
	Titles       = "titles"
	Credits      = "credits"
	Customers    = "customers"
	Categories   = "categories"
	Calendars    = "calendars"
	Periods      = "periods"
	Pipelines    = "pipelines"
)

// Builtin returns a registry populated with the descriptors for the
// commonly-used endpoint types. Additional types are registered by the
// caller from configuration data.
func Builtin() *Registry {
	r := NewRegistry()
	for _, d := range builtinDescriptors() {
		if err := r.Register(d); err != nil {
			// Built-in descriptors are compile-time data; a failure here is
			// a programming error.
			panic(fmt.Sprintf("schema: %v", err))
		}
	}
	return r
}

func builtinDescriptors() []*Descriptor {
	return []*Descriptor{
		{
			Name:      Participants,
			Endpoint:  "api/v2/participants",
			SeqField:  "payeeSeq",
			IDField:   "payeeId",
			Versioned: true,
			Fields: []Field{
				{Name: "payeeId", Kind: KindString, Required: true},
				{Name: "firstName", Kind: KindString},
				{Name: "lastName", Kind: KindString},
				{Name: "email", Kind: KindString},
				{Name: "userId", Kind: KindString},
				{Name: "salary", Kind: KindValue},
				{Name: "hireDate", Kind: KindDate},
				{Name: "terminationDate", Kind: KindDate},
				{Name: "businessUnits", Kind: KindStrings},
			},
		},
		{
			Name:      Positions,
			Endpoint:  "api/v2/positions",
			SeqField:  "positionSeq",
			IDField:   "name",
			Versioned: true,
			Fields: []Field{
				{Name: "name", Kind: KindString, Required: true},
				{Name: "description", Kind: KindString},
				{Name: "payee", Kind: KindReference, RefSchema: Participants, Expand: true},
				{Name: "title", Kind: KindReference, RefSchema: Titles, Expand: true},
				{Name: "manager", Kind: KindReference, RefSchema: Positions},
				{Name: "targetCompensation", Kind: KindValue},
				{Name: "creditStartDate", Kind: KindDate},
				{Name: "creditEndDate", Kind: KindDate},
				{Name: "processingUnit", Kind: KindString},
				{Name: "businessUnits", Kind: KindStrings},
			},
		},
		{
			Name:      Titles,
			Endpoint:  "api/v2/titles",
			SeqField:  "ruleElementOwnerSeq",
			IDField:   "name",
			Versioned: true,
			Fields: []Field{
				{Name: "name", Kind: KindString, Required: true},
				{Name: "description", Kind: KindString},
				{Name: "businessUnits", Kind: KindStrings},
			},
		},
		{
			Name:     Credits,
			Endpoint: "api/v2/credits",
			SeqField: "creditSeq",
			IDField:  "name",
			Fields: []Field{
				{Name: "name", Kind: KindString, Required: true},
				{Name: "position", Kind: KindReference, RefSchema: Positions, Expand: true, Required: true},
				{Name: "payee", Kind: KindReference, RefSchema: Participants, Expand: true, Required: true},
				{Name: "period", Kind: KindReference, RefSchema: Periods, Required: true},
				{Name: "creditType", Kind: KindString, Required: true},
				{Name: "value", Kind: KindValue, Required: true},
				{Name: "compensationDate", Kind: KindDate},
				{Name: "reason", Kind: KindString},
			},
		},
		{
			Name:      Customers,
			Endpoint:  "api/v2/customers",
			SeqField:  "classifierSeq",
			IDField:   "classifierId",
			Versioned: true,
			Fields: []Field{
				{Name: "classifierId", Kind: KindString, Required: true},
				{Name: "name", Kind: KindString},
				{Name: "description", Kind: KindString},
			},
		},
		{
			Name:      Categories,
			Endpoint:  "api/v2/categories",
			SeqField:  "ruleElementSeq",
			IDField:   "name",
			Versioned: true,
			Fields: []Field{
				{Name: "name", Kind: KindString, Required: true},
				{Name: "description", Kind: KindString},
				{Name: "owner", Kind: KindReference, RefSchema: Categories},
			},
		},
		{
			Name:     Calendars,
			Endpoint: "api/v2/calendars",
			SeqField: "calendarSeq",
			IDField:  "name",
			Fields: []Field{
				{Name: "name", Kind: KindString, Required: true},
				{Name: "description", Kind: KindString},
				{Name: "minorPeriodType", Kind: KindString},
				{Name: "majorPeriodType", Kind: KindString},
			},
		},
		{
			Name:     Periods,
			Endpoint: "api/v2/periods",
			SeqField: "periodSeq",
			IDField:  "name",
			Fields: []Field{
				{Name: "name", Kind: KindString, Required: true},
				{Name: "shortName", Kind: KindString},
				{Name: "startDate", Kind: KindDate},
				{Name: "endDate", Kind: KindDate},
				{Name: "calendar", Kind: KindReference, RefSchema: Calendars, Expand: true},
				{Name: "periodType", Kind: KindString},
			},
		},
		{
			Name:     Pipelines,
			Endpoint: "api/v2/pipelines",
			SeqField: "pipelineRunSeq",
			Fields: []Field{
				{Name: "command", Kind: KindString},
				{Name: "stageType", Kind: KindString},
				{Name: "dateSubmitted", Kind: KindDate},
				{Name: "state", Kind: KindString},
				{Name: "status", Kind: KindString},
				{Name: "userId", Kind: KindString},
				{Name: "processingUnit", Kind: KindString},
				{Name: "period", Kind: KindReference, RefSchema: Periods, Expand: true},
				{Name: "calendar", Kind: KindReference, RefSchema: Calendars},
				{Name: "batchName", Kind: KindString},
				{Name: "numErrors", Kind: KindInt},
				{Name: "numWarnings", Kind: KindInt},
				{Name: "runProgress", Kind: KindString},
				{Name: "message", Kind: KindString},
			},
		},
	}
}
