// Package mirror pushes accepted guides to an optional downstream
// endpoint. Delivery is fire-and-forget: failures are logged, never
// propagated, and a full queue drops new work rather than blocking.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const defaultQueueSize = 64

type task struct {
	kind    string
	payload any
}

// Mirror owns a bounded queue drained by a single worker goroutine.
type Mirror struct {
	url    string
	http   *http.Client
	logger *slog.Logger

	tasks chan task
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// New creates a mirror for the given URL. An empty URL disables
// mirroring entirely: enqueue calls become no-ops.
func New(url string, queueSize int, logger *slog.Logger) *Mirror {
	m := &Mirror{
		url:    url,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
	if url == "" {
		return m
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	m.tasks = make(chan task, queueSize)
	m.wg.Add(1)
	go m.run()
	return m
}

// Enabled reports whether a mirror URL is configured.
func (m *Mirror) Enabled() bool { return m.url != "" }

// GuideSaved enqueues an accepted guide for delivery.
func (m *Mirror) GuideSaved(payload any) {
	m.enqueue("guide.saved", payload)
}

// DraftSnapshot enqueues a draft snapshot for delivery.
func (m *Mirror) DraftSnapshot(payload any) {
	m.enqueue("draft.snapshot", payload)
}

func (m *Mirror) enqueue(kind string, payload any) {
	if m.tasks == nil {
		return
	}
	select {
	case m.tasks <- task{kind: kind, payload: payload}:
	default:
		m.logger.Warn("mirror: queue full, dropping", slog.String("kind", kind))
	}
}

// Close drains the queue and stops the worker.
func (m *Mirror) Close() {
	if m.tasks == nil {
		return
	}
	m.closeOnce.Do(func() { close(m.tasks) })
	m.wg.Wait()
}

func (m *Mirror) run() {
	defer m.wg.Done()
	for t := range m.tasks {
		m.deliver(t)
	}
}

func (m *Mirror) deliver(t task) {
	body, err := json.Marshal(map[string]any{
		"kind":    t.kind,
		"payload": t.payload,
	})
	if err != nil {
		m.logger.Warn("mirror: marshal failed", slog.String("kind", t.kind), slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		m.logger.Warn("mirror: build request failed", slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		m.logger.Warn("mirror: delivery failed", slog.String("kind", t.kind), slog.String("error", err.Error()))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		m.logger.Warn("mirror: rejected", slog.String("kind", t.kind), slog.Int("status", resp.StatusCode))
		return
	}
	m.logger.Debug("mirror: delivered", slog.String("kind", t.kind))
}
