package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/h2adev/reelforge/internal/apierr"
	"github.com/h2adev/reelforge/internal/catalog"
)

// Client is the generic provider client: it submits generation requests,
// polls or simulates an event stream, fetches results, and uploads local
// files to the provider's asset store. Raw HTTP rather than a vendor SDK;
// the client stays vendor-agnostic.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a provider client against baseURL, authenticating with
// apiKey via a bearer token.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Upload sends a local file's bytes to the provider's asset store and
// returns its URL. Callers normally reach this through the upload cache
// rather than directly.
func (c *Client) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploads", bytes.NewReader(data))
	if err != nil {
		return "", apierr.System("failed to build upload request", err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sub, retryable := ClassifyNetworkError(err)
		return "", apierr.API("upload request failed: "+err.Error(), sub, retryable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sub, retryable := Classify(resp.StatusCode, string(body))
		return "", apierr.API(fmt.Sprintf("upload failed with status %d", resp.StatusCode), sub, retryable)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", apierr.System("failed to parse upload response", err.Error())
	}
	return out.URL, nil
}

// Submit creates a generation request and returns a Handle whose Events
// channel the caller drains until it closes. Internally this applies the
// duration-routing rule: image-to-video jobs requesting >=10s MUST
// be driven by submit+poll at a 10s cadence; shorter jobs MAY be driven by
// the faster subscribe-style cadence. Both are implemented as polling here
// since the provider is opaque JSON over HTTP, not a real push stream.
func (c *Client) Submit(ctx context.Context, taskKind, modelID string, arguments map[string]any) (*Handle, error) {
	spec, err := catalog.Lookup(modelID)
	if err != nil {
		return nil, apierr.Validation(err.Error(), catalog.AllModelIDs(), "use one of the registered model ids", `{"model_id":"video-A"}`)
	}

	body := mergeFixedArgs(spec, arguments)
	requestID, err := c.submitRaw(ctx, spec.EndpointPath, body)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 8)
	var streamErr error

	interval := subscribePollIntervalS
	if taskKind == "video" && requiresLongPoll(arguments) {
		interval = pollIntervalS
	}

	timeout := defaultPollTimeout
	if t, ok := arguments["timeout_s"]; ok {
		if f, ok := toNumber(t); ok && f > 0 {
			timeout = time.Duration(f) * time.Second
		}
	}

	go func() {
		defer close(events)
		streamErr = c.pollLoop(ctx, modelID, requestID, interval, timeout, events)
	}()

	return &Handle{
		RequestID: requestID,
		Events:    events,
		Err:       func() error { return streamErr },
	}, nil
}

// requiresLongPoll reports whether the job's requested duration triggers
// the mandatory submit+poll path of the duration-routing rule.
func requiresLongPoll(arguments map[string]any) bool {
	d, ok := arguments["duration_s"]
	if !ok {
		return false
	}
	f, ok := toNumber(d)
	return ok && f >= 10
}

func mergeFixedArgs(spec *catalog.ModelSpec, arguments map[string]any) map[string]any {
	merged := make(map[string]any, len(arguments)+len(spec.FixedArgs))
	for k, v := range arguments {
		merged[k] = v
	}
	for k, v := range spec.FixedArgs {
		merged[k] = v
	}
	return merged
}

func (c *Client) submitRaw(ctx context.Context, endpointPath string, body map[string]any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", apierr.System("failed to marshal submit request", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpointPath, bytes.NewReader(payload))
	if err != nil {
		return "", apierr.System("failed to build submit request", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sub, retryable := ClassifyNetworkError(err)
		return "", apierr.API("submit request failed: "+err.Error(), sub, retryable)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		sub, retryable := Classify(resp.StatusCode, string(respBody))
		return "", apierr.API(fmt.Sprintf("provider returned status %d", resp.StatusCode), sub, retryable)
	}

	var out struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", apierr.System("failed to parse submit response", err.Error())
	}
	if out.RequestID == "" {
		return "", apierr.System("provider submit response missing request_id", string(respBody))
	}
	return out.RequestID, nil
}

// Status performs one synchronous poll of a request's lifecycle state.
func (c *Client) Status(ctx context.Context, modelID, requestID string, withLogs bool) (StatusResult, error) {
	url := fmt.Sprintf("%s/requests/%s/status", c.baseURL, requestID)
	if withLogs {
		url += "?logs=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusResult{}, apierr.System("failed to build status request", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sub, retryable := ClassifyNetworkError(err)
		return StatusResult{}, apierr.API("status request failed: "+err.Error(), sub, retryable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		if isNotReady(resp.StatusCode, string(body)) {
			return StatusResult{State: "in_queue"}, nil
		}
		sub, retryable := Classify(resp.StatusCode, string(body))
		return StatusResult{}, apierr.API(fmt.Sprintf("status returned %d", resp.StatusCode), sub, retryable)
	}

	var raw struct {
		Status        string   `json:"status"`
		Logs          []string `json:"logs"`
		QueuePosition *int     `json:"queue_position"`
		Progress      *float64 `json:"progress"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return StatusResult{}, apierr.System("failed to parse status response", err.Error())
	}
	return StatusResult{
		State:         raw.Status,
		Logs:          raw.Logs,
		QueuePosition: raw.QueuePosition,
		Progress:      raw.Progress,
	}, nil
}

// Result fetches the terminal payload for a completed request. Called
// after a Completed event, and may itself return a "pending" error if the
// caller races ahead of the provider settling the result.
func (c *Client) Result(ctx context.Context, modelID, requestID string) (map[string]any, error) {
	url := fmt.Sprintf("%s/requests/%s/result", c.baseURL, requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apierr.System("failed to build result request", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sub, retryable := ClassifyNetworkError(err)
		return nil, apierr.API("result request failed: "+err.Error(), sub, retryable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		if isNotReady(resp.StatusCode, string(body)) {
			return nil, apierr.API("result not ready", apierr.SubClassDownstreamTransient, true)
		}
		sub, retryable := Classify(resp.StatusCode, string(body))
		return nil, apierr.API(fmt.Sprintf("result returned %d", resp.StatusCode), sub, retryable)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apierr.System("failed to parse result response", err.Error())
	}
	return result, nil
}

// pollLoop drives a submitted request to completion, translating status
// polls into Events. "Not ready" classes ({not found, pending, in_queue,
// processing}) never terminate the loop as failures; any other error does.
func (c *Client) pollLoop(ctx context.Context, modelID, requestID string, interval, timeout time.Duration, events chan<- Event) error {
	deadline := time.Now().Add(timeout)
	sentInProgress := false

	for {
		if time.Now().After(deadline) {
			return apierr.API("generation timed out", apierr.SubClassTimeout, false)
		}

		st, err := c.Status(ctx, modelID, requestID, true)
		if err != nil {
			return err
		}

		switch st.State {
		case "completed", "":
			// Some providers return no status
			// field at all once complete, relying on the result endpoint.
			result, err := c.Result(ctx, modelID, requestID)
			if err != nil {
				return err
			}
			events <- Event{Kind: EventCompleted, Logs: st.Logs, Result: result}
			return nil
		case "failed", "error":
			return apierr.API("provider reported generation failure", apierr.SubClassDownstreamPermanent, false)
		case "in_queue", "queued":
			events <- Event{Kind: EventQueued, Position: st.QueuePosition}
		default:
			if !sentInProgress {
				sentInProgress = true
			}
			events <- Event{Kind: EventInProgress, Logs: st.Logs, Progress: st.Progress}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Subscribe is the synchronous convenience path for short jobs: it submits,
// polls internally at the cadence Submit's duration-routing rule picks, and
// returns the terminal result —
// applying the retry/backoff policy around the whole attempt, unlike
// the queue's own long-running polled path which only classifies.
func (c *Client) Subscribe(ctx context.Context, taskKind, modelID string, arguments map[string]any, onEvent func(Event)) (map[string]any, error) {
	var lastErr error

	for attempt := 1; attempt <= maxSubscribeAttempts; attempt++ {
		if attempt > 1 {
			delay := retryDelay(attempt - 1)
			log.Printf("[provider] subscribe retry %d/%d for %s (waiting %v)", attempt, maxSubscribeAttempts, modelID, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		handle, err := c.Submit(ctx, taskKind, modelID, arguments)
		if err != nil {
			lastErr = err
			if !retryableErr(err) {
				return nil, err
			}
			continue
		}

		var result map[string]any
		for ev := range handle.Events {
			if onEvent != nil {
				onEvent(ev)
			}
			if ev.Kind == EventCompleted {
				result = ev.Result
			}
		}

		if err := handle.Err(); err != nil {
			lastErr = err
			if !retryableErr(err) {
				return nil, err
			}
			continue
		}

		return result, nil
	}

	return nil, lastErr
}

func retryableErr(err error) bool {
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		return false
	}
	return apiErr.Retryable
}
