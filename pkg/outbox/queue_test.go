package outbox

import (
	"sync"
	"testing"
	"time"
)

func TestTryEnqueueFull(t *testing.T) {
	q := NewQueue(2)
	if err := q.TryEnqueue(&Op{Kind: OpPublish, Room: "r", Event: "e"}); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	if err := q.TryEnqueue(&Op{Kind: OpPublish, Room: "r", Event: "e"}); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}
	if err := q.TryEnqueue(&Op{Kind: OpPublish, Room: "r", Event: "e"}); err != ErrQueueFull {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if q.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", q.Dropped())
	}
	if q.Len() != 2 || q.Cap() != 2 {
		t.Errorf("len/cap = %d/%d", q.Len(), q.Cap())
	}
}

func TestWrapCopiesPayloadAndRecipients(t *testing.T) {
	q := NewQueue(4)
	payload := []byte(`{"v":1}`)
	recipients := []string{"bob"}
	if err := q.TryEnqueue(&Op{Kind: OpNotify, Payload: payload, Recipients: recipients}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// mutate the caller's slices after enqueue; the queued copy must not
	// observe it
	payload[0] = 'X'
	recipients[0] = "mallory"

	it := <-q.Out()
	defer it.Done()
	if string(it.Op.Payload) != `{"v":1}` {
		t.Errorf("payload aliased: %q", it.Op.Payload)
	}
	if it.Op.Recipients[0] != "bob" {
		t.Errorf("recipients aliased: %v", it.Op.Recipients)
	}
}

func TestRunWorkerProcessesUntilStopped(t *testing.T) {
	q := NewQueue(8)
	var mu sync.Mutex
	var seen []string
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.RunWorker(stop, func(op *Op) error {
			mu.Lock()
			seen = append(seen, op.Event)
			mu.Unlock()
			return nil
		})
	}()

	for _, ev := range []string{"a", "b", "c"} {
		if err := q.TryEnqueue(&Op{Kind: OpPublish, Event: ev}); err != nil {
			t.Fatalf("enqueue %s: %v", ev, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker processed %d of 3", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(stop)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Errorf("order = %v", seen)
	}
}
