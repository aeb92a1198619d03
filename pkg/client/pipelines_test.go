package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyware/tally/pkg/pipeline"
)

func TestClient_SubmitJob(t *testing.T) {
	ctx := context.Background()

	t.Run("string run sequence", func(t *testing.T) {
		var gotBody map[string]any
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v2/pipelines", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			writeJSON(t, w, http.StatusOK, map[string]any{
				"pipelines": map[string]any{"0": []any{"12345"}},
			})
		})

		runSeq, err := c.SubmitJob(ctx, map[string]any{"command": "PipelineRun"})
		require.NoError(t, err)
		assert.Equal(t, "12345", runSeq)
		assert.Equal(t, "PipelineRun", gotBody["command"])
	})

	t.Run("numeric run sequence", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"pipelines": map[string]any{"0": []any{float64(12345)}},
			})
		})

		runSeq, err := c.SubmitJob(ctx, map[string]any{"command": "PipelineRun"})
		require.NoError(t, err)
		assert.Equal(t, "12345", runSeq)
	})

	t.Run("missing run sequence", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"pipelines": map[string]any{},
			})
		})

		_, err := c.SubmitJob(ctx, map[string]any{"command": "PipelineRun"})
		assert.ErrorContains(t, err, "no run sequence")
	})
}

func TestClient_GetRun(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/pipelines(12345)", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"pipelineRunSeq": "12345",
			"command":        "PipelineRun",
			"stageType":      "21",
			"state":          "Done",
			"status":         "Successful",
			"runProgress":    "100%",
			"numErrors":      0,
			"numWarnings":    2,
		})
	})

	run, err := c.GetRun(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", run.RunSeq)
	assert.Equal(t, pipeline.StateDone, run.State)
	assert.Equal(t, 2, run.NumWarnings)
	assert.True(t, run.Terminal())
	assert.False(t, run.Failed())
}

func TestClient_CancelPipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/api/v2/pipelines(12345)", r.URL.Path)
			writeJSON(t, w, http.StatusOK, map[string]any{})
		})

		assert.NoError(t, c.CancelPipeline(ctx, "12345"))
	})

	t.Run("rejection of a finishing run counts as done", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusBadRequest, map[string]any{
				"12345": "TCMP_60255: pipeline run is already finishing",
			})
		})

		assert.NoError(t, c.CancelPipeline(ctx, "12345"))
	})

	t.Run("other rejections propagate", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusBadRequest, map[string]any{
				"12345": "TCMP_0001: no such run",
			})
		})

		err := c.CancelPipeline(ctx, "12345")
		assert.ErrorContains(t, err, "failed to cancel pipeline 12345")
	})
}

func TestClient_ListRuns(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/pipelines", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"pipelines": []any{
				map[string]any{
					"pipelineRunSeq": "1",
					"command":        "PipelineRun",
					"state":          "Running",
				},
				map[string]any{
					"pipelineRunSeq": "2",
					"command":        "Import",
					"state":          "Done",
					"status":         "Failed",
				},
			},
		})
	})

	runs, err := c.ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[0].Terminal())
	assert.True(t, runs[1].Failed())
}
