package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository/memory"
)

type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription) (*http.Response, error)
}

func (m *mockSender) Send(_ context.Context, payload []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub)
}

func pushResponse(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewBuffer(nil))}
}

const subJSON = `{"endpoint":"https://push.example/abc","keys":{"p256dh":"k1","auth":"a1"}}`

func seedUnit(t *testing.T, store *memory.Store, token string) {
	t.Helper()
	err := store.PutUnit(context.Background(), &model.Unit{
		UnitID: "EMS1", Active: true, Status: model.StatusAvailable, PushToken: token,
	})
	require.NoError(t, err)
}

func TestWorkerDeliversPayload(t *testing.T) {
	store := memory.NewStore()
	seedUnit(t, store, subJSON)

	wp := NewWorkerPool(1, store, &webpush.Options{}, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{SendFunc: func(payload []byte, sub *webpush.Subscription) (*http.Response, error) {
		defer wg.Done()
		assert.Equal(t, "https://push.example/abc", sub.Endpoint)
		assert.Contains(t, string(payload), "return to base")
		return pushResponse(http.StatusCreated), nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Notify(ctx, "EMS1", "Message from STA1/SMITHJ", "return to base")
	wg.Wait()
}

func TestWorkerClearsExpiredSubscription(t *testing.T) {
	store := memory.NewStore()
	seedUnit(t, store, subJSON)

	wp := NewWorkerPool(1, store, &webpush.Options{}, nil)
	wp.sender = &mockSender{SendFunc: func([]byte, *webpush.Subscription) (*http.Response, error) {
		return pushResponse(http.StatusGone), nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)
	wp.Notify(ctx, "EMS1", "t", "b")

	require.Eventually(t, func() bool {
		u, err := store.GetUnit(context.Background(), "EMS1")
		return err == nil && u.PushToken == ""
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerSkipsUnitsWithoutToken(t *testing.T) {
	store := memory.NewStore()
	seedUnit(t, store, "")

	wp := NewWorkerPool(1, store, &webpush.Options{}, nil)
	sent := false
	wp.sender = &mockSender{SendFunc: func([]byte, *webpush.Subscription) (*http.Response, error) {
		sent = true
		return pushResponse(http.StatusCreated), nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)
	wp.Notify(ctx, "EMS1", "t", "b")

	time.Sleep(50 * time.Millisecond)
	assert.False(t, sent)
}

func TestNotifyNeverBlocks(t *testing.T) {
	store := memory.NewStore()
	wp := NewWorkerPool(1, store, &webpush.Options{}, nil)
	// Pool not started: the queue fills, later alerts drop.
	for i := 0; i < 10; i++ {
		wp.Notify(context.Background(), "EMS1", "t", "b")
	}
}
