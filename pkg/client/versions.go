package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tallyware/tally/pkg/reconcile"
	"github.com/tallyware/tally/pkg/resource"
	"github.com/tallyware/tally/pkg/schema"
)

// Versioned-resource operations over the (seq)/versions sub-endpoint. The
// Client implements reconcile.VersionStore, so plans produced by
// reconcile.Reconcile apply directly through it.

func versionsPath(desc *schema.Descriptor, seq string) string {
	return fmt.Sprintf("%s(%s)/versions", desc.Endpoint, seq)
}

// GetVersions reads all versions of a resource, optionally bounded to an
// effective window, as the current state for reconciliation.
func (c *Client) GetVersions(ctx context.Context, desc *schema.Descriptor, seq string, start, end time.Time) (*resource.VersionSet, error) {
	if !desc.Versioned {
		return nil, fmt.Errorf("%s is not a versioned resource", desc.Name)
	}
	c.logger.Debug("get versions", "resource", desc.Name, "seq", seq)

	query := url.Values{}
	if !start.IsZero() {
		query.Set(paramStartDate, start.Format(wireDateLayout))
	}
	if !end.IsZero() {
		query.Set(paramEndDate, end.Format(wireDateLayout))
	}
	response, err := c.request(ctx, http.MethodGet, versionsPath(desc, seq), query, nil)
	if err != nil {
		return nil, err
	}
	items, err := envelopeItems(response, desc.Name)
	if err != nil {
		return nil, err
	}
	records, err := c.codec.DecodeAll(desc, items)
	if err != nil {
		return nil, err
	}
	return resource.NewVersionSet(seq, records...), nil
}

// FetchCurrent reads the complete remote version set for a resource. It is
// the explicit first half of the fetch-then-reconcile flow; tests inject
// synthetic sets instead.
func (c *Client) FetchCurrent(ctx context.Context, desc *schema.Descriptor, seq string) (*resource.VersionSet, error) {
	return c.GetVersions(ctx, desc, seq, time.Time{}, time.Time{})
}

// CreateVersion implements reconcile.VersionStore. An empty seq creates
// the resource itself from its first version.
func (c *Client) CreateVersion(ctx context.Context, desc *schema.Descriptor, seq string, version *resource.Record) (*resource.Record, error) {
	if seq == "" {
		return c.Create(ctx, version)
	}
	c.logger.Debug("create version", "resource", desc.Name, "seq", seq,
		"start", version.EffectiveStart.Format(wireDateLayout))

	payload := c.codec.Encode(version, false)
	response, err := c.request(ctx, http.MethodPost, versionsPath(desc, seq), nil, []any{payload})
	if err != nil {
		return nil, c.mapWriteError(desc, err)
	}
	created, err := c.firstItem(desc, response)
	if err != nil {
		return nil, err
	}
	if created.Seq == "" {
		created.Seq = seq
	}
	return created, nil
}

// UpdateVersion implements reconcile.VersionStore.
func (c *Client) UpdateVersion(ctx context.Context, desc *schema.Descriptor, seq string, version *resource.Record) (*resource.Record, error) {
	c.logger.Debug("update version", "resource", desc.Name, "seq", seq,
		"start", version.EffectiveStart.Format(wireDateLayout))

	payload := c.codec.Encode(version, true)
	response, err := c.request(ctx, http.MethodPut, versionsPath(desc, seq), nil, []any{payload})
	if err != nil {
		if errors.Is(err, ErrNotModified) {
			return version, nil
		}
		return nil, c.mapWriteError(desc, err)
	}
	updated, err := c.firstItem(desc, response)
	if err != nil {
		return nil, err
	}
	if updated.Seq == "" {
		updated.Seq = seq
	}
	return updated, nil
}

// DeleteVersion implements reconcile.VersionStore. fillFromRight selects
// whether the next-later (true) or next-earlier (false) surviving version
// absorbs the vacated range.
func (c *Client) DeleteVersion(ctx context.Context, desc *schema.Descriptor, seq string, start, end time.Time, fillFromRight bool) error {
	c.logger.Debug("delete version", "resource", desc.Name, "seq", seq,
		"start", start.Format(wireDateLayout), "fill_from_right", fillFromRight)

	query := url.Values{}
	query.Set("effectiveStartDate", start.Format(wireDateLayout))
	query.Set("effectiveEndDate", end.Format(wireDateLayout))
	query.Set("fillFromRight", fmt.Sprintf("%t", fillFromRight))

	_, err := c.request(ctx, http.MethodDelete, versionsPath(desc, seq), query, nil)
	return err
}

// ReconcileVersions is the fetch-reconcile-apply convenience: it reads the
// current remote version set, plans the convergence to desired, and applies
// the plan. The desired set's versions must all describe the resource
// identified by seq; an empty seq means the resource does not exist yet.
//
// The returned version set reflects what was applied. A non-nil
// FirstFailure means the plan stopped there; earlier operations remain
// applied and are included in the result.
func (c *Client) ReconcileVersions(ctx context.Context, desc *schema.Descriptor, seq string, desired *resource.VersionSet, fillFromRight bool) (*resource.VersionSet, *reconcile.FirstFailure, error) {
	current := resource.NewVersionSet(seq)
	if seq != "" {
		var err error
		current, err = c.FetchCurrent(ctx, desc, seq)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch current versions: %w", err)
		}
	}

	plan, err := reconcile.Reconcile(desired, current, fillFromRight)
	if err != nil {
		return nil, nil, err
	}
	if plan.Desc == nil {
		plan.Desc = desc
	}

	result, failure := reconcile.NewOrchestrator(c, c.logger).Apply(ctx, plan)
	return result, failure, nil
}
