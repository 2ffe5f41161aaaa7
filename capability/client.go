package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// HTTPOptions configure the HTTPInvoker.
type HTTPOptions struct {
	// Timeout bounds a single call end to end.
	Timeout time.Duration
	// HTTPClient overrides the underlying client (tests, custom transports).
	HTTPClient *http.Client
}

// HTTPInvoker posts capability requests to an agent's remote endpoint.
// Connection failures, non-2xx statuses and timeouts are all normalized to a
// single failure error so retry and breaker logic treat them uniformly.
type HTTPInvoker struct {
	endpoint string
	client   *http.Client
}

// NewHTTPInvoker creates an invoker for the given endpoint.
func NewHTTPInvoker(endpoint string, optFns ...func(o *HTTPOptions)) *HTTPInvoker {
	opts := HTTPOptions{Timeout: 10 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPInvoker{endpoint: endpoint, client: client}
}

// Invoke implements core.Invoker.
func (h *HTTPInvoker) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode capability request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build capability request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, core.WrapError(core.KindAgentTimeout, "capability call timed out", err)
		}
		return nil, core.WrapError(core.KindAgentCallFailed, "capability call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.NewError(core.KindAgentCallFailed, fmt.Sprintf("capability returned status %d", resp.StatusCode))
	}

	var result core.CapabilityResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.KindAgentCallFailed, "decode capability response", err)
	}
	if result.Provenance == "" {
		result.Provenance = "live"
	}
	return &result, nil
}
