// Package callbackout buffers run progress and delivers it to the callback
// endpoint.
package callbackout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nathantilsley/update-agent/internal/deploy/domain"
)

// payload is the body of one callback POST.
type payload struct {
	RunID    string                `json:"runId"`
	Messages []domain.ReportRecord `json:"messages"`
}

// Adapter implements ports.ReporterPort. Log, Success and Fail only append
// to an in-memory buffer; Flush delivers it.
type Adapter struct {
	endpoint string
	runID    string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	buffer []domain.ReportRecord
}

// New creates a reporter for the given callback endpoint.
func New(endpoint string, timeout time.Duration, logger *slog.Logger) (*Adapter, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewArgError("callbackEndpoint", fmt.Sprintf("%q is not an http(s) URL", endpoint))
	}
	runID := uuid.NewString()
	return &Adapter{
		endpoint: endpoint,
		runID:    runID,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With("runId", runID),
		now:    time.Now,
	}, nil
}

// RunID identifies every batch this reporter sends.
func (a *Adapter) RunID() string {
	return a.runID
}

// Log buffers a progress message.
func (a *Adapter) Log(message string) error {
	return a.add(domain.KindLog, message)
}

// Success buffers the success outcome.
func (a *Adapter) Success(message string) error {
	return a.add(domain.KindSuccess, message)
}

// Fail buffers the failure outcome.
func (a *Adapter) Fail(message string) error {
	return a.add(domain.KindFail, message)
}

func (a *Adapter) add(kind domain.RecordKind, message string) error {
	if message == "" {
		return domain.NewArgError("message", "must not be empty")
	}
	rec := domain.ReportRecord{Kind: kind, Message: message, Timestamp: a.now().UnixMilli()}

	a.mu.Lock()
	a.buffer = append(a.buffer, rec)
	a.mu.Unlock()
	return nil
}

// Pending returns the number of buffered records.
func (a *Adapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// Flush sends every buffered record in a single POST. The buffer is swapped
// out before the request so appends never wait on the network. If delivery
// fails the batch is put back ahead of anything appended meanwhile.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.buffer
	a.buffer = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := a.post(ctx, batch); err != nil {
		a.mu.Lock()
		a.buffer = append(batch, a.buffer...)
		a.mu.Unlock()
		a.logger.Error("callback delivery failed", "records", len(batch), "error", err)
		return fmt.Errorf("flushing %d records to callback endpoint: %w", len(batch), err)
	}

	a.logger.Debug("callback delivered", "records", len(batch))
	return nil
}

func (a *Adapter) post(ctx context.Context, batch []domain.ReportRecord) error {
	body, err := json.Marshal(payload{RunID: a.runID, Messages: batch})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
