package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tallyware/tally/pkg/pipeline"
	"github.com/tallyware/tally/pkg/schema"
)

// Pipeline job submission and run tracking. The Client implements
// pipeline.Submitter; pipeline.Submit handles parameter validation before
// the payload ever reaches the wire.

// SubmitJob implements pipeline.Submitter. The submit endpoint answers with
// the run sequence nested under a batch index:
//
//	{"pipelines": {"0": ["12345"]}}
func (c *Client) SubmitJob(ctx context.Context, payload map[string]any) (string, error) {
	c.logger.Debug("submit pipeline job", "command", payload["command"])

	response, err := c.request(ctx, http.MethodPost, c.registry.MustLookup(schema.Pipelines).Endpoint, nil, payload)
	if err != nil {
		return "", err
	}
	batches, ok := response["pipelines"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("submit response missing pipelines: %v", response)
	}
	for _, seqs := range batches {
		list, ok := seqs.([]any)
		if !ok || len(list) == 0 {
			continue
		}
		return runSeqString(list[0]), nil
	}
	return "", fmt.Errorf("submit response carried no run sequence: %v", response)
}

// runSeqString renders a run sequence from a decoded JSON value. Sequence
// identifiers can arrive as strings or as large numbers.
func runSeqString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// RunPipeline validates and submits a pipeline job, returning a handle for
// polling its run.
func (c *Client) RunPipeline(ctx context.Context, job pipeline.Job) (*pipeline.Handle, error) {
	return pipeline.Submit(ctx, c, job)
}

// GetRun reads the current state of a pipeline run.
func (c *Client) GetRun(ctx context.Context, runSeq string) (*pipeline.Run, error) {
	desc := c.registry.MustLookup(schema.Pipelines)
	rec, err := c.Get(ctx, desc, runSeq)
	if err != nil {
		return nil, err
	}
	return pipeline.RunFromRecord(rec), nil
}

// CancelPipeline requests cancellation of a running pipeline. The service
// rejects cancellation of a run that is already finishing with TCMP_60255
// even though the run does stop; that rejection is treated as success.
func (c *Client) CancelPipeline(ctx context.Context, runSeq string) error {
	c.logger.Debug("cancel pipeline", "run_seq", runSeq)

	desc := c.registry.MustLookup(schema.Pipelines)
	path := fmt.Sprintf("%s(%s)", desc.Endpoint, runSeq)
	_, err := c.request(ctx, http.MethodDelete, path, nil, nil)
	if err == nil {
		return nil
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if text, ok := reqErr.Data[runSeq].(string); ok && strings.Contains(text, codeCancelRejected) {
			c.logger.Debug("cancel rejected for finishing run, treating as done", "run_seq", runSeq)
			return nil
		}
	}
	return fmt.Errorf("failed to cancel pipeline %s: %w", runSeq, err)
}

// ListRuns lists pipeline runs matching the given options, newest first
// unless an explicit order is set.
func (c *Client) ListRuns(ctx context.Context, opts ListOptions) ([]*pipeline.Run, error) {
	desc := c.registry.MustLookup(schema.Pipelines)
	records, err := c.List(ctx, desc, opts)
	if err != nil {
		return nil, err
	}
	runs := make([]*pipeline.Run, 0, len(records))
	for _, rec := range records {
		runs = append(runs, pipeline.RunFromRecord(rec))
	}
	return runs, nil
}

var _ pipeline.Submitter = (*Client)(nil)
