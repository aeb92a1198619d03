package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyware/tally/pkg/resource"
	"github.com/tallyware/tally/pkg/schema"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// version builds a participant version with the given first name and range.
func version(t *testing.T, firstName string, start, end time.Time) *resource.Record {
	t.Helper()
	desc := schema.Builtin().MustLookup(schema.Participants)
	rec, err := resource.New(desc, map[string]any{
		"payeeId":   "P-100",
		"firstName": firstName,
	})
	require.NoError(t, err)
	return rec.WithRange(start, end)
}

func remoteVersion(t *testing.T, firstName string, start, end time.Time) *resource.Record {
	t.Helper()
	rec := version(t, firstName, start, end)
	rec.Seq = "42"
	return rec
}

func rangesOf(vs *resource.VersionSet) [][2]time.Time {
	out := make([][2]time.Time, 0, len(vs.Versions))
	for _, v := range vs.Versions {
		out = append(out, [2]time.Time{v.EffectiveStart, v.EffectiveEnd})
	}
	return out
}

func TestReconcile_Validation(t *testing.T) {
	t.Run("missing effective date", func(t *testing.T) {
		bad := version(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))
		bad.EffectiveEnd = time.Time{}
		_, err := Reconcile(resource.NewVersionSet("", bad), nil, false)
		var rangeErr *InvalidRangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Contains(t, rangeErr.Reason, "missing an effective date")
	})

	t.Run("inverted range", func(t *testing.T) {
		bad := version(t, "Ada", day(2024, 6, 30), day(2024, 1, 1))
		_, err := Reconcile(resource.NewVersionSet("", bad), nil, false)
		var rangeErr *InvalidRangeError
		assert.ErrorAs(t, err, &rangeErr)
	})

	t.Run("single-day range is valid", func(t *testing.T) {
		v := version(t, "Ada", day(2024, 1, 1), day(2024, 1, 1))
		_, err := Reconcile(resource.NewVersionSet("", v), nil, false)
		assert.NoError(t, err)
	})

	t.Run("overlapping desired versions", func(t *testing.T) {
		a := version(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))
		b := version(t, "Ada", day(2024, 6, 30), day(2024, 12, 31))
		_, err := Reconcile(resource.NewVersionSet("", a, b), nil, false)
		var rangeErr *InvalidRangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Contains(t, rangeErr.Reason, "overlaps")
	})

	t.Run("adjacent versions do not overlap", func(t *testing.T) {
		a := version(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))
		b := version(t, "Ada", day(2024, 7, 1), day(2024, 12, 31))
		_, err := Reconcile(resource.NewVersionSet("", a, b), nil, false)
		assert.NoError(t, err)
	})

	t.Run("gapped versions do not overlap", func(t *testing.T) {
		a := version(t, "Ada", day(2024, 1, 1), day(2024, 3, 31))
		b := version(t, "Ada", day(2024, 7, 1), day(2024, 12, 31))
		_, err := Reconcile(resource.NewVersionSet("", a, b), nil, false)
		assert.NoError(t, err)
	})
}

func TestReconcile_EmptySides(t *testing.T) {
	t.Run("no current creates everything in order", func(t *testing.T) {
		v2 := version(t, "Ada", day(2024, 7, 1), day(2024, 12, 31))
		v1 := version(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))

		plan, err := Reconcile(resource.NewVersionSet("", v2, v1), resource.NewVersionSet(""), false)
		require.NoError(t, err)

		require.Len(t, plan.Ops, 2)
		assert.Equal(t, OpCreate, plan.Ops[0].Kind)
		assert.Equal(t, OpCreate, plan.Ops[1].Kind)
		assert.Equal(t, day(2024, 1, 1), plan.Ops[0].Version.EffectiveStart)
		assert.Equal(t, day(2024, 7, 1), plan.Ops[1].Version.EffectiveStart)
	})

	t.Run("empty desired deletes everything", func(t *testing.T) {
		c1 := remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))
		c2 := remoteVersion(t, "Ada", day(2024, 7, 1), day(2024, 12, 31))

		plan, err := Reconcile(nil, resource.NewVersionSet("42", c1, c2), false)
		require.NoError(t, err)

		require.Len(t, plan.Ops, 2)
		for _, op := range plan.Ops {
			assert.Equal(t, OpDelete, op.Kind)
			assert.Equal(t, FillNone, op.Fill, "removing the whole set leaves no survivor to fill")
		}
	})

	t.Run("both empty is a no-op", func(t *testing.T) {
		plan, err := Reconcile(nil, nil, false)
		require.NoError(t, err)
		assert.True(t, plan.Empty())
	})
}

func TestReconcile_NoChanges(t *testing.T) {
	c1 := remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))
	c2 := remoteVersion(t, "Grace", day(2024, 7, 1), day(2024, 12, 31))
	d1 := version(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))
	d2 := version(t, "Grace", day(2024, 7, 1), day(2024, 12, 31))

	plan, err := Reconcile(
		resource.NewVersionSet("42", d1, d2),
		resource.NewVersionSet("42", c1, c2), false)
	require.NoError(t, err)

	assert.True(t, plan.Empty())
	assert.Equal(t, "42", plan.Seq)

	expected := plan.Expected()
	require.Len(t, expected.Versions, 2)
	assert.Equal(t, rangesOf(resource.NewVersionSet("42", c1, c2)), rangesOf(expected))
}

func TestReconcile_FieldChange(t *testing.T) {
	current := remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 12, 31))
	desired := version(t, "Grace", day(2024, 1, 1), day(2024, 12, 31))

	plan, err := Reconcile(
		resource.NewVersionSet("42", desired),
		resource.NewVersionSet("42", current), false)
	require.NoError(t, err)

	require.Len(t, plan.Ops, 1)
	op := plan.Ops[0]
	assert.Equal(t, OpUpdate, op.Kind)
	assert.Equal(t, "42", op.Version.Seq, "update targets the existing version")
	assert.Equal(t, "Grace", op.Version.Fields["firstName"])
}

func TestReconcile_RangeChange(t *testing.T) {
	t.Run("grow", func(t *testing.T) {
		current := remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))
		desired := version(t, "Ada", day(2024, 1, 1), day(2024, 12, 31))

		plan, err := Reconcile(
			resource.NewVersionSet("42", desired),
			resource.NewVersionSet("42", current), false)
		require.NoError(t, err)

		require.Len(t, plan.Ops, 1)
		assert.Equal(t, OpUpdate, plan.Ops[0].Kind)
		assert.Equal(t, day(2024, 12, 31), plan.Ops[0].Version.EffectiveEnd)
	})

	t.Run("split one current version into two desired", func(t *testing.T) {
		current := remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 12, 31))
		d1 := version(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))
		d2 := version(t, "Grace", day(2024, 7, 1), day(2024, 12, 31))

		plan, err := Reconcile(
			resource.NewVersionSet("42", d1, d2),
			resource.NewVersionSet("42", current), false)
		require.NoError(t, err)

		// The current version pairs with the first desired version and
		// shrinks; the second half is a create.
		require.Len(t, plan.Ops, 2)
		assert.Equal(t, OpUpdate, plan.Ops[0].Kind)
		assert.Equal(t, day(2024, 6, 30), plan.Ops[0].Version.EffectiveEnd)
		assert.Equal(t, OpCreate, plan.Ops[1].Kind)
		assert.Equal(t, day(2024, 7, 1), plan.Ops[1].Version.EffectiveStart)
	})
}

func TestReconcile_DeleteWithFill(t *testing.T) {
	// Three remote versions; the middle one is not wanted anymore.
	c1 := remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 3, 31))
	c2 := remoteVersion(t, "Temp", day(2024, 4, 1), day(2024, 6, 30))
	c3 := remoteVersion(t, "Grace", day(2024, 7, 1), day(2024, 12, 31))
	d1 := version(t, "Ada", day(2024, 1, 1), day(2024, 3, 31))
	d3 := version(t, "Grace", day(2024, 7, 1), day(2024, 12, 31))

	t.Run("fill from left", func(t *testing.T) {
		plan, err := Reconcile(
			resource.NewVersionSet("42", d1, d3),
			resource.NewVersionSet("42", c1, c2, c3), false)
		require.NoError(t, err)

		require.Len(t, plan.Ops, 1)
		assert.Equal(t, OpDelete, plan.Ops[0].Kind)
		assert.Equal(t, FillLeft, plan.Ops[0].Fill)

		// The earlier survivor is expected to absorb April through June.
		expected := plan.Expected()
		require.Len(t, expected.Versions, 2)
		assert.Equal(t, day(2024, 6, 30), expected.Versions[0].EffectiveEnd)
		assert.Equal(t, day(2024, 7, 1), expected.Versions[1].EffectiveStart)
	})

	t.Run("fill from right", func(t *testing.T) {
		plan, err := Reconcile(
			resource.NewVersionSet("42", d1, d3),
			resource.NewVersionSet("42", c1, c2, c3), true)
		require.NoError(t, err)

		require.Len(t, plan.Ops, 1)
		assert.Equal(t, OpDelete, plan.Ops[0].Kind)
		assert.Equal(t, FillRight, plan.Ops[0].Fill)

		// The later survivor is expected to absorb April through June.
		expected := plan.Expected()
		require.Len(t, expected.Versions, 2)
		assert.Equal(t, day(2024, 3, 31), expected.Versions[0].EffectiveEnd)
		assert.Equal(t, day(2024, 4, 1), expected.Versions[1].EffectiveStart)
	})

	t.Run("falls back to the other side", func(t *testing.T) {
		// Deleting the first version with fill-from-left requested: no
		// earlier survivor exists, so the later one absorbs instead.
		plan, err := Reconcile(
			resource.NewVersionSet("42", d3),
			resource.NewVersionSet("42", c2, c3), false)
		require.NoError(t, err)

		require.Len(t, plan.Ops, 1)
		assert.Equal(t, OpDelete, plan.Ops[0].Kind)
		assert.Equal(t, FillRight, plan.Ops[0].Fill)

		expected := plan.Expected()
		require.Len(t, expected.Versions, 1)
		assert.Equal(t, day(2024, 4, 1), expected.Versions[0].EffectiveStart)
	})
}

func TestReconcile_OperationOrder(t *testing.T) {
	// A scenario producing all three operation kinds at once.
	c1 := remoteVersion(t, "Old", day(2023, 1, 1), day(2023, 6, 30))
	c2 := remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 6, 30))
	d2 := version(t, "Grace", day(2024, 1, 1), day(2024, 6, 30))
	d3 := version(t, "Grace", day(2025, 1, 1), day(2025, 12, 31))

	plan, err := Reconcile(
		resource.NewVersionSet("42", d3, d2),
		resource.NewVersionSet("42", c1, c2), false)
	require.NoError(t, err)

	require.Len(t, plan.Ops, 3)
	assert.Equal(t, OpDelete, plan.Ops[0].Kind)
	assert.Equal(t, OpUpdate, plan.Ops[1].Kind)
	assert.Equal(t, OpCreate, plan.Ops[2].Kind)
}

func TestReconcile_Idempotence(t *testing.T) {
	// Reconciling the desired set against the expected post-apply state of
	// a previous plan must yield an empty plan.
	cases := []struct {
		name          string
		fillFromRight bool
		desired       func(t *testing.T) []*resource.Record
		current       func(t *testing.T) []*resource.Record
	}{
		{
			name: "delete with left fill",
			desired: func(t *testing.T) []*resource.Record {
				return []*resource.Record{
					version(t, "Ada", day(2024, 1, 1), day(2024, 3, 31)),
					version(t, "Grace", day(2024, 7, 1), day(2024, 12, 31)),
				}
			},
			current: func(t *testing.T) []*resource.Record {
				return []*resource.Record{
					remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 3, 31)),
					remoteVersion(t, "Temp", day(2024, 4, 1), day(2024, 6, 30)),
					remoteVersion(t, "Grace", day(2024, 7, 1), day(2024, 12, 31)),
				}
			},
		},
		{
			name:          "delete with right fill",
			fillFromRight: true,
			desired: func(t *testing.T) []*resource.Record {
				return []*resource.Record{
					version(t, "Ada", day(2024, 1, 1), day(2024, 3, 31)),
					version(t, "Grace", day(2024, 7, 1), day(2024, 12, 31)),
				}
			},
			current: func(t *testing.T) []*resource.Record {
				return []*resource.Record{
					remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 3, 31)),
					remoteVersion(t, "Temp", day(2024, 4, 1), day(2024, 6, 30)),
					remoteVersion(t, "Grace", day(2024, 7, 1), day(2024, 12, 31)),
				}
			},
		},
		{
			name: "field change plus create",
			desired: func(t *testing.T) []*resource.Record {
				return []*resource.Record{
					version(t, "Grace", day(2024, 1, 1), day(2024, 6, 30)),
					version(t, "Grace", day(2025, 1, 1), day(2025, 12, 31)),
				}
			},
			current: func(t *testing.T) []*resource.Record {
				return []*resource.Record{
					remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 6, 30)),
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			desired := resource.NewVersionSet("42", tc.desired(t)...)
			current := resource.NewVersionSet("42", tc.current(t)...)

			plan, err := Reconcile(desired, current, tc.fillFromRight)
			require.NoError(t, err)

			again, err := Reconcile(desired, plan.Expected(), tc.fillFromRight)
			require.NoError(t, err)
			assert.True(t, again.Empty(),
				"second reconcile planned %d operations", len(again.Ops))
		})
	}
}

func TestReconcile_DescriptorAndSeq(t *testing.T) {
	t.Run("descriptor propagates from desired", func(t *testing.T) {
		v := version(t, "Ada", day(2024, 1, 1), day(2024, 12, 31))
		plan, err := Reconcile(resource.NewVersionSet("", v), nil, false)
		require.NoError(t, err)
		require.NotNil(t, plan.Desc)
		assert.Equal(t, schema.Participants, plan.Desc.Name)
	})

	t.Run("seq prefers current", func(t *testing.T) {
		d := version(t, "Ada", day(2024, 1, 1), day(2024, 12, 31))
		c := remoteVersion(t, "Ada", day(2024, 1, 1), day(2024, 12, 31))
		plan, err := Reconcile(
			resource.NewVersionSet("", d),
			resource.NewVersionSet("42", c), false)
		require.NoError(t, err)
		assert.Equal(t, "42", plan.Seq)
	})
}
