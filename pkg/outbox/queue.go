package outbox

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// OpKind represents a side-effect kind queued behind a message write.
type OpKind string

const (
	OpPublish OpKind = "publish"
	OpDeliver OpKind = "deliver"
	OpNotify  OpKind = "notify"
)

// Op is a lightweight in-memory representation of a post-write side
// effect: a realtime broadcast, a delivery-status transition, or a
// notification fan-out. Payload may be backed by a pooled ByteBuffer;
// consumers must call Item.Done() when finished.
type Op struct {
	Kind OpKind
	// Room and Event address a realtime broadcast (publish ops).
	Room  string
	Event string
	// Payload holds the marshalled event body (may be nil).
	Payload []byte
	// Conversation and Message identify the subject record for deliver
	// and notify ops.
	Conversation string
	Message      string
	// Recipients, Actor, NotifyKind and Preview carry notification
	// fan-out fields (notify ops).
	Recipients []string
	Actor      string
	NotifyKind string
	Preview    string
	// TS is the event timestamp (nanoseconds).
	TS int64
}

var (
	// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
	ErrQueueFull = errors.New("outbox queue full")
)

// Item wraps an Op and owns a pooled ByteBuffer if one was used. Consumers
// MUST call Done() exactly once after processing the item to return
// pooled resources.
type Item struct {
	Op *Op

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
	q    *Queue
}

// Done releases internal pooled resources (buffer + op) back to the pool.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			// avoid retaining huge buffers in the pool
			if cap(it.buf.B) > maxPooledBuffer {
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		// clear slice headers to avoid retention
		if it.Op != nil {
			it.Op.Payload = nil
			it.Op.Recipients = nil
			opPool.Put(it.Op)
			it.Op = nil
		}
		itemPool.Put(it)
	})
}

// Queue is a bounded in-memory queue decoupling message writes from their
// side effects. It is safe for concurrent producers. Consumers should
// range over Out() to receive items.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

var opPool = sync.Pool{New: func() any { return &Op{} }}
var itemPool = sync.Pool{New: func() any { return &Item{} }}

// maxPooledBuffer controls the largest buffer size that will be returned
// to the pooled ByteBuffer. Buffers larger than this will be dropped to
// avoid unbounded resident memory.
var maxPooledBuffer = 256 * 1024 // 256 KiB

// NewQueue creates a new bounded Queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out returns a read-only channel that consumers can range over to receive
// queued items. Do not close it from callers.
func (q *Queue) Out() <-chan *Item { return q.ch }

func (q *Queue) wrap(op *Op) *Item {
	newOp := opPool.Get().(*Op)
	*newOp = *op
	// copy Recipients to avoid sharing mutable slices
	if op.Recipients != nil {
		newOp.Recipients = append([]string(nil), op.Recipients...)
	}

	var bb *bytebufferpool.ByteBuffer
	if len(op.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], op.Payload...)
		newOp.Payload = bb.B[:len(op.Payload)]
	}

	it := itemPool.Get().(*Item)
	*it = Item{Op: newOp, buf: bb, q: q}
	return it
}

func (q *Queue) release(it *Item) {
	if it.buf != nil {
		bytebufferpool.Put(it.buf)
	}
	opPool.Put(it.Op)
	itemPool.Put(it)
	atomic.AddUint64(&q.dropped, 1)
}

// TryEnqueue attempts to enqueue an Op by copying its payload into a
// pooled buffer. If the queue is full ErrQueueFull is returned and the
// caller may choose to apply the effect inline or drop it.
func (q *Queue) TryEnqueue(op *Op) error {
	it := q.wrap(op)
	select {
	case q.ch <- it:
		return nil
	default:
		q.release(it)
		return ErrQueueFull
	}
}

// RunWorker runs a worker loop that invokes handler for each dequeued Op.
// It guarantees Item.Done() is called even if handler returns an error.
// The worker exits when stop is closed or when the queue is closed.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Op) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				_ = handler(it.Op)
			}(it)
		case <-stop:
			return
		}
	}
}

// Len returns the current number of items in the queue.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity of the queue.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns the number of operations rejected because the queue was
// at capacity.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
