// Package reconcile computes and executes the minimal set of remote
// operations needed to make a resource's remote version set match a desired
// version set.
//
// Reconcile is pure: it validates the desired input and plans operations
// without touching the network. Apply executes a plan through a remote
// capability, strictly in order, aborting on the first failure.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/tallyware/tally/pkg/resource"
	"github.com/tallyware/tally/pkg/schema"
)

// InvalidRangeError reports malformed desired input: an inverted or missing
// effective-date range, or two desired versions with overlapping ranges.
// It is a local validation failure; no remote call is made and retrying
// without fixing the input cannot succeed.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return "invalid version range: " + e.Reason
}

// Kind identifies a planned operation. The numeric order matches the
// mandatory execution order: deletes first, then updates, then creates.
type Kind int

const (
	OpDelete Kind = iota
	OpUpdate
	OpCreate
)

func (k Kind) String() string {
	switch k {
	case OpDelete:
		return "delete"
	case OpUpdate:
		return "update"
	case OpCreate:
		return "create"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FillDirection records which surviving neighbor absorbs a deleted
// version's vacated range.
type FillDirection int

const (
	// FillNone leaves the vacated range as a true gap; no neighbor exists.
	FillNone FillDirection = iota
	// FillLeft extends the next-earlier surviving version's end date.
	FillLeft
	// FillRight extends the next-later surviving version's start date.
	FillRight
)

func (d FillDirection) String() string {
	switch d {
	case FillLeft:
		return "left"
	case FillRight:
		return "right"
	}
	return "none"
}

// Operation is one planned remote call.
//
// For deletes, Version is the current version being removed (carrying its
// remote range) and Fill is the resolved gap-fill direction. For updates,
// Version carries the desired field content and adjusted boundaries with
// the existing version's sequence identifier. For creates, Version is the
// desired version.
type Operation struct {
	Kind    Kind
	Version *resource.Record
	Fill    FillDirection
}

// Plan is the ordered operation list produced by Reconcile, plus the
// versions expected to survive untouched.
type Plan struct {
	Seq  string
	Desc *schema.Descriptor
	Ops  []Operation

	// kept holds the no-op versions with their expected post-apply ranges,
	// which may exceed their desired ranges where a deleted neighbor's
	// vacated range is absorbed.
	kept []*resource.Record
}

// Empty reports whether the plan requires no remote operations.
func (p *Plan) Empty() bool { return len(p.Ops) == 0 }

// Expected returns the version set the remote service is expected to hold
// after the plan applies cleanly.
func (p *Plan) Expected() *resource.VersionSet {
	var versions []*resource.Record
	versions = append(versions, p.kept...)
	for _, op := range p.Ops {
		if op.Kind == OpUpdate || op.Kind == OpCreate {
			versions = append(versions, op.Version)
		}
	}
	return resource.NewVersionSet(p.Seq, versions...)
}

// Reconcile computes the operations needed to converge the remote version
// set (current) to the caller-supplied desired set. Both sets must share
// one sequence identifier; current may be empty when the resource does not
// yet exist remotely.
//
// fillFromRight selects which surviving neighbor absorbs a deleted
// version's range: the next-later version when true, the next-earlier when
// false. When no neighbor exists on the requested side the other side is
// used; when none exists at all the range becomes a true gap.
func Reconcile(desired, current *resource.VersionSet, fillFromRight bool) (*Plan, error) {
	des, err := validateDesired(desired)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	if current != nil {
		plan.Seq = current.Seq
	}
	if plan.Seq == "" && desired != nil {
		plan.Seq = desired.Seq
	}
	plan.Desc = descriptorOf(desired, current)

	// No remote versions: create everything, no sweep needed.
	if current.Empty() {
		for _, d := range des {
			plan.Ops = append(plan.Ops, Operation{Kind: OpCreate, Version: d.Clone()})
		}
		return plan, nil
	}

	cur := sortedCopy(current.Versions)

	// Empty desired removes the whole version set.
	if len(des) == 0 {
		for _, c := range cur {
			plan.Ops = append(plan.Ops, Operation{Kind: OpDelete, Version: c.Clone(), Fill: FillNone})
		}
		return plan, nil
	}

	// Lock-step walk over the timeline. Each current version is consumed
	// by at most one desired version and vice versa; a current version with
	// no overlapping desired version is deleted, a desired version with no
	// overlapping current version is created.
	type pairing struct {
		d, c *resource.Record
	}
	var (
		pairs   []pairing
		deletes []*resource.Record
		creates []*resource.Record
	)
	i, j := 0, 0
	for i < len(des) && j < len(cur) {
		d, c := des[i], cur[j]
		switch {
		case c.EffectiveEnd.Before(d.EffectiveStart):
			deletes = append(deletes, c)
			j++
		case d.EffectiveEnd.Before(c.EffectiveStart):
			creates = append(creates, d)
			i++
		default:
			pairs = append(pairs, pairing{d: d, c: c})
			i++
			j++
		}
	}
	deletes = append(deletes, cur[j:]...)
	creates = append(creates, des[i:]...)

	// Model gap-fill absorption: each deleted version's range is folded
	// into the expected range of the surviving neighbor on the resolved
	// side, so the expected post-apply state matches what the remote
	// service produces and a follow-up reconcile is a no-op.
	survivors := make([]*span, len(pairs))
	for idx, p := range pairs {
		survivors[idx] = &span{start: p.c.EffectiveStart, end: p.c.EffectiveEnd}
	}
	fills := make(map[*resource.Record]FillDirection, len(deletes))
	for _, gone := range deletes {
		dir, absorber := resolveFill(gone, survivors, fillFromRight)
		fills[gone] = dir
		if absorber != nil {
			absorber.absorb(gone.EffectiveStart, gone.EffectiveEnd)
		}
	}

	var (
		ops  []Operation
		kept []*resource.Record
	)
	for _, gone := range deletes {
		ops = append(ops, Operation{Kind: OpDelete, Version: gone.Clone(), Fill: fills[gone]})
	}

	for idx, p := range pairs {
		exp := survivors[idx]
		start, end := mergedRange(p.d, exp, des)
		if p.d.FieldsEqual(p.c) && exp.covers(p.d) && start.Equal(exp.start) && end.Equal(exp.end) {
			kept = append(kept, p.c.Clone().WithRange(exp.start, exp.end))
			continue
		}
		upd := p.d.WithRange(start, end)
		upd.Seq = p.c.Seq
		ops = append(ops, Operation{Kind: OpUpdate, Version: upd})
	}

	for _, d := range creates {
		ops = append(ops, Operation{Kind: OpCreate, Version: d.Clone()})
	}

	sort.SliceStable(ops, func(a, b int) bool {
		if ops[a].Kind != ops[b].Kind {
			return ops[a].Kind < ops[b].Kind
		}
		return ops[a].Version.EffectiveStart.Before(ops[b].Version.EffectiveStart)
	})

	plan.Ops = ops
	plan.kept = kept
	return plan, nil
}

// span tracks a surviving version's expected post-apply range.
type span struct {
	start, end time.Time
}

func (s *span) covers(r *resource.Record) bool {
	return !s.start.After(r.EffectiveStart) && !s.end.Before(r.EffectiveEnd)
}

func (s *span) absorb(start, end time.Time) {
	if start.Before(s.start) {
		s.start = start
	}
	if end.After(s.end) {
		s.end = end
	}
}

// resolveFill picks the surviving neighbor that absorbs the deleted
// version's range: the requested side first, the other side as fallback,
// nil when no survivor exists at all.
func resolveFill(gone *resource.Record, survivors []*span, fillFromRight bool) (FillDirection, *span) {
	var left, right *span
	for _, s := range survivors {
		if !s.end.After(gone.EffectiveStart) {
			left = s // survivors are ordered; keep the latest earlier one
		}
		if right == nil && !s.start.Before(gone.EffectiveEnd) {
			right = s
		}
	}
	if fillFromRight {
		if right != nil {
			return FillRight, right
		}
		if left != nil {
			return FillLeft, left
		}
	} else {
		if left != nil {
			return FillLeft, left
		}
		if right != nil {
			return FillRight, right
		}
	}
	return FillNone, nil
}

// mergedRange widens a desired version's range over the adjacent parts of
// its paired current version's expected range that no other desired version
// claims. A vacated sub-range next to the version is absorbed rather than
// reopened as a gap.
func mergedRange(d *resource.Record, exp *span, des []*resource.Record) (time.Time, time.Time) {
	start, end := d.EffectiveStart, d.EffectiveEnd
	if exp.start.Before(start) && !claimed(exp.start, resource.PrevDay(start), des, d) {
		start = exp.start
	}
	if exp.end.After(end) && !claimed(resource.NextDay(end), exp.end, des, d) {
		end = exp.end
	}
	return start, end
}

// claimed reports whether any desired version other than self overlaps the
// given day range.
func claimed(start, end time.Time, des []*resource.Record, self *resource.Record) bool {
	for _, d := range des {
		if d == self {
			continue
		}
		if !d.EffectiveEnd.Before(start) && !d.EffectiveStart.After(end) {
			return true
		}
	}
	return false
}

// validateDesired checks and sorts the desired set. Every version must have
// a well-formed range and no two versions may overlap; touching boundaries
// (one version ending the day before the next starts) are adjacent, not
// overlapping.
func validateDesired(desired *resource.VersionSet) ([]*resource.Record, error) {
	if desired.Empty() {
		return nil, nil
	}
	des := sortedCopy(desired.Versions)
	for _, v := range des {
		if v.EffectiveStart.IsZero() || v.EffectiveEnd.IsZero() {
			return nil, &InvalidRangeError{Reason: "version is missing an effective date"}
		}
		if v.EffectiveStart.After(v.EffectiveEnd) {
			return nil, &InvalidRangeError{Reason: fmt.Sprintf(
				"effective start %s is after end %s",
				v.EffectiveStart.Format("2006-01-02"), v.EffectiveEnd.Format("2006-01-02"))}
		}
	}
	for i := 1; i < len(des); i++ {
		prev, next := des[i-1], des[i]
		if !next.EffectiveStart.After(prev.EffectiveEnd) {
			return nil, &InvalidRangeError{Reason: fmt.Sprintf(
				"version starting %s overlaps version ending %s",
				next.EffectiveStart.Format("2006-01-02"), prev.EffectiveEnd.Format("2006-01-02"))}
		}
	}
	return des, nil
}

func sortedCopy(versions []*resource.Record) []*resource.Record {
	out := append([]*resource.Record(nil), versions...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveStart.Before(out[j].EffectiveStart)
	})
	return out
}

func descriptorOf(sets ...*resource.VersionSet) *schema.Descriptor {
	for _, vs := range sets {
		if vs == nil {
			continue
		}
		for _, v := range vs.Versions {
			if v.Descriptor() != nil {
				return v.Descriptor()
			}
		}
	}
	return nil
}
