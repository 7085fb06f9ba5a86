// Package pipeline defines the contract between the scheduling core and the
// external content generation/publishing pipeline.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Invoker hands a job to the pipeline and waits for the outcome. On success
// the pipeline itself moves the job to PUBLISHED or REVIEW; the error return
// is the only signal the core acts on.
type Invoker interface {
	Run(ctx context.Context, jobID uint64) error
}

// DefaultRunBudget bounds one pipeline run. Generation plus third-party
// publishing is slow; the budget surfaces as a context deadline error.
const DefaultRunBudget = 12 * time.Minute

// HTTPInvoker calls the pipeline service over HTTP and blocks until it
// answers or the run budget expires.
type HTTPInvoker struct {
	Endpoint string
	Secret   string
	Client   *http.Client
	Budget   time.Duration
}

func (h *HTTPInvoker) Run(ctx context.Context, jobID uint64) error {
	budget := h.Budget
	if budget <= 0 {
		budget = DefaultRunBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	body, _ := json.Marshal(map[string]any{"job_id": jobID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+h.Secret)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("pipeline returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
