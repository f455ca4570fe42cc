// Package notify delivers web push alerts to field units.
package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/scmc-ops/hoscad/internal/repository"
)

// Sender abstracts the webpush transport so tests can stub it.
type Sender interface {
	Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

type webpushSender struct{}

func (webpushSender) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotificationWithContext(ctx, payload, sub, options)
}

type job struct {
	unitID string
	title  string
	body   string
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WorkerPool fans push deliveries out to a fixed set of goroutines so a
// slow push endpoint never blocks a dispatch write.
type WorkerPool struct {
	size    int
	jobs    chan job
	units   repository.UnitRepository
	options *webpush.Options
	sender  Sender
	log     *zap.Logger
}

// NewWorkerPool constructs a pool. Size is both the goroutine count and
// the queue depth.
func NewWorkerPool(size int, units repository.UnitRepository, options *webpush.Options, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan job, size),
		units:   units,
		options: options,
		sender:  webpushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx)
	}
}

// Notify queues a push for a unit. Non-blocking: when the queue is full
// the alert is dropped and logged, never the caller stalled.
func (wp *WorkerPool) Notify(_ context.Context, unitID, title, body string) {
	select {
	case wp.jobs <- job{unitID: unitID, title: title, body: body}:
	default:
		wp.log.Warn("push queue full, alert dropped", zap.String("unit", unitID))
	}
}

func (wp *WorkerPool) worker(ctx context.Context) {
	for {
		select {
		case j := <-wp.jobs:
			wp.deliver(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) deliver(ctx context.Context, j job) {
	unit, err := wp.units.GetUnit(ctx, j.unitID)
	if err != nil {
		wp.log.Warn("push target lookup failed", zap.String("unit", j.unitID), zap.Error(err))
		return
	}
	if unit.PushToken == "" {
		return
	}

	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(unit.PushToken), &sub); err != nil {
		wp.log.Warn("stored push subscription unreadable, clearing",
			zap.String("unit", unit.UnitID), zap.Error(err))
		wp.clearToken(ctx, unit.UnitID)
		return
	}

	payload, err := json.Marshal(pushPayload{Title: j.title, Body: j.body})
	if err != nil {
		return
	}

	resp, err := wp.sender.Send(ctx, payload, &sub, wp.options)
	if err != nil {
		wp.log.Warn("push send failed", zap.String("unit", unit.UnitID), zap.Error(err))
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// 404 and 410 mean the subscription is dead; keep the record clean.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		wp.log.Info("push subscription expired, clearing", zap.String("unit", unit.UnitID))
		wp.clearToken(ctx, unit.UnitID)
	}
}

func (wp *WorkerPool) clearToken(ctx context.Context, unitID string) {
	unit, err := wp.units.GetUnit(ctx, unitID)
	if err != nil {
		return
	}
	unit.PushToken = ""
	if err := wp.units.PutUnit(ctx, unit); err != nil {
		wp.log.Warn("push token clear failed", zap.String("unit", unitID), zap.Error(err))
	}
}
