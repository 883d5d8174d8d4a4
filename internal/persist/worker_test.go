package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/strangerhub/realtime/internal/modlog"
)

type recordedMessage struct {
	ConvID   string
	SenderID string
	Text     string
}

// fakeStores implements MessageAppender and LogCreator with optional
// transient failures.
type fakeStores struct {
	mu        sync.Mutex
	messages  []recordedMessage
	logs      []*modlog.Log
	failTimes int // fail this many calls before succeeding
}

func (f *fakeStores) AppendMessage(ctx context.Context, convID, senderID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTimes > 0 {
		f.failTimes--
		return errors.New("transient failure")
	}
	f.messages = append(f.messages, recordedMessage{convID, senderID, text})
	return nil
}

func (f *fakeStores) Create(ctx context.Context, entry *modlog.Log) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTimes > 0 {
		f.failTimes--
		return errors.New("transient failure")
	}
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeStores) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeStores) logCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorker_PersistsMessage(t *testing.T) {
	stores := &fakeStores{}
	w := NewWorker(stores, stores)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	if !w.EnqueueMessage("conv-1", "alice", "hello") {
		t.Fatal("enqueue should succeed on empty queue")
	}

	waitFor(t, func() bool { return stores.messageCount() == 1 })

	stores.mu.Lock()
	got := stores.messages[0]
	stores.mu.Unlock()
	if got.ConvID != "conv-1" || got.SenderID != "alice" || got.Text != "hello" {
		t.Errorf("unexpected persisted message: %+v", got)
	}
}

func TestWorker_PersistsModerationLog(t *testing.T) {
	stores := &fakeStores{}
	w := NewWorker(stores, stores)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.EnqueueLog(&modlog.Log{
		ReporterID: "alice",
		ReportedID: "bob",
		Type:       modlog.TypeChatLog,
		Reason:     "Chat log between alice and bob",
	})

	waitFor(t, func() bool { return stores.logCount() == 1 })
}

func TestWorker_RetriesTransientFailure(t *testing.T) {
	stores := &fakeStores{failTimes: 2} // fail twice, succeed on 3rd attempt
	w := NewWorker(stores, stores)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.EnqueueMessage("conv-1", "alice", "eventually")

	waitFor(t, func() bool { return stores.messageCount() == 1 })
}

func TestWorker_DrainsOnShutdown(t *testing.T) {
	stores := &fakeStores{}
	w := NewWorker(stores, stores)

	// Queue before starting so jobs are pending at cancellation time.
	w.EnqueueMessage("conv-1", "alice", "one")
	w.EnqueueMessage("conv-1", "bob", "two")

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	w.Wait()

	if stores.messageCount() != 2 {
		t.Errorf("expected 2 drained messages, got %d", stores.messageCount())
	}
}
