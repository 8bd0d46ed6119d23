package usecase

import (
	"context"
	"sync"

	"SignalDesk/internal/domain/models"
)

type sentMessage struct {
	cred models.Credential
	text string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[int]error
	calls  int
}

func (f *fakeSender) Send(_ context.Context, cred models.Credential, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.failOn[f.calls]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{cred: cred, text: text})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakePublisher struct {
	mu        sync.Mutex
	published []models.Signal
	err       error
}

func (f *fakePublisher) PublishSignal(_ context.Context, s models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, s)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// sourceFunc adapts a function to SignalSource.
type sourceFunc func(ctx context.Context, ds models.Dataset, w models.TimeRange) ([]models.RawSignal, error)

func (f sourceFunc) FetchSignals(ctx context.Context, ds models.Dataset, w models.TimeRange) ([]models.RawSignal, error) {
	return f(ctx, ds, w)
}

var goodCred = models.Credential{Token: "123456:token", ChatID: "42"}
