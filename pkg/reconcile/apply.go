package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/tallyware/tally/pkg/resource"
	"github.com/tallyware/tally/pkg/schema"
)

// VersionStore is the remote-call capability the orchestrator executes
// plans against. pkg/client implements it over HTTP; tests supply fakes.
type VersionStore interface {
	// CreateVersion adds one version to the resource identified by seq and
	// returns the created version as reported by the remote service. An
	// empty seq creates the resource itself from its first version.
	CreateVersion(ctx context.Context, desc *schema.Descriptor, seq string, version *resource.Record) (*resource.Record, error)

	// UpdateVersion replaces the field content and boundaries of an
	// existing version.
	UpdateVersion(ctx context.Context, desc *schema.Descriptor, seq string, version *resource.Record) (*resource.Record, error)

	// DeleteVersion removes the version covering the given range.
	// fillFromRight selects the neighbor that absorbs the vacated range.
	DeleteVersion(ctx context.Context, desc *schema.Descriptor, seq string, start, end time.Time, fillFromRight bool) error
}

// FirstFailure reports the first planned operation that failed during
// Apply, by position in the plan. Operations before it were applied and
// remain applied; operations after it were not executed.
type FirstFailure struct {
	Index int
	Op    Operation
	Err   error
}

func (f *FirstFailure) Error() string {
	return fmt.Sprintf("operation %d (%s starting %s) failed: %v",
		f.Index, f.Op.Kind, f.Op.Version.EffectiveStart.Format("2006-01-02"), f.Err)
}

func (f *FirstFailure) Unwrap() error { return f.Err }

// Orchestrator executes plans against a remote version store.
//
// Operations run strictly in plan order, one at a time: later operations
// depend on the remote-side effects of earlier ones, so no reordering or
// parallelism is permitted. Separate Apply calls are independent and may
// run concurrently; the orchestrator keeps no state across calls.
type Orchestrator struct {
	remote VersionStore
	logger hclog.Logger
}

// NewOrchestrator creates an orchestrator over the given remote capability.
// A nil logger falls back to a null logger.
func NewOrchestrator(remote VersionStore, logger hclog.Logger) *Orchestrator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Orchestrator{
		remote: remote,
		logger: logger.Named("reconcile"),
	}
}

// Apply executes the plan and assembles the resulting version set from the
// individual operation responses plus the plan's untouched versions.
//
// On the first failed operation the remaining operations are not executed
// and the partial result is returned together with a FirstFailure pinning
// the failed operation. Nothing is rolled back: the remote service has no
// multi-operation transaction primitive, so partial application is visible
// to the caller by design of the remote API. Cancelling ctx mid-sequence
// behaves like a failure of the next operation.
func (o *Orchestrator) Apply(ctx context.Context, plan *Plan) (*resource.VersionSet, *FirstFailure) {
	result := append([]*resource.Record(nil), plan.kept...)
	seq := plan.Seq

	for i, op := range plan.Ops {
		if err := ctx.Err(); err != nil {
			return resource.NewVersionSet(seq, result...), &FirstFailure{Index: i, Op: op, Err: err}
		}

		o.logger.Debug("applying operation",
			"kind", op.Kind.String(),
			"seq", seq,
			"start", op.Version.EffectiveStart.Format("2006-01-02"),
			"end", op.Version.EffectiveEnd.Format("2006-01-02"),
		)

		switch op.Kind {
		case OpDelete:
			err := o.remote.DeleteVersion(ctx, plan.Desc, seq,
				op.Version.EffectiveStart, op.Version.EffectiveEnd, op.Fill == FillRight)
			if err != nil {
				o.logger.Error("delete failed", "seq", seq, "error", err)
				return resource.NewVersionSet(seq, result...), &FirstFailure{Index: i, Op: op, Err: err}
			}

		case OpUpdate:
			updated, err := o.remote.UpdateVersion(ctx, plan.Desc, seq, op.Version)
			if err != nil {
				o.logger.Error("update failed", "seq", seq, "error", err)
				return resource.NewVersionSet(seq, result...), &FirstFailure{Index: i, Op: op, Err: err}
			}
			result = append(result, updated)

		case OpCreate:
			created, err := o.remote.CreateVersion(ctx, plan.Desc, seq, op.Version)
			if err != nil {
				o.logger.Error("create failed", "seq", seq, "error", err)
				return resource.NewVersionSet(seq, result...), &FirstFailure{Index: i, Op: op, Err: err}
			}
			// The first create of a not-yet-existing resource assigns the
			// sequence identifier used by every following operation.
			if seq == "" {
				seq = created.Seq
			}
			result = append(result, created)
		}
	}

	o.logger.Debug("plan applied", "seq", seq, "operations", len(plan.Ops))
	return resource.NewVersionSet(seq, result...), nil
}
