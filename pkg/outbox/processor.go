package outbox

import (
	"encoding/json"
	"sync"

	"glimpse/pkg/logger"
	"glimpse/pkg/messaging"
	"glimpse/pkg/models"
	"glimpse/pkg/store"
	"glimpse/pkg/telemetry"
	"glimpse/pkg/utils"
)

// Delivery is the realtime transport the processor publishes through.
type Delivery interface {
	// Publish sends a marshalled event to every connection subscribed to
	// room.
	Publish(room, event string, payload []byte)
	// Reachable reports whether the user has at least one live connection.
	Reachable(userID string) bool
}

// Notifier persists notifications for recipients that cannot be reached
// over the realtime transport.
type Notifier interface {
	Create(n models.Notification) error
}

// Processor drains the outbox queue and applies side effects: realtime
// broadcasts, delivered-status transitions and notification fan-out. It
// satisfies the message service's emitter contract, so writes never block
// on delivery.
type Processor struct {
	q        *Queue
	delivery Delivery
	notifier Notifier
	workers  int

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewProcessor builds a Processor around q. workers <= 0 defaults to 2.
func NewProcessor(q *Queue, delivery Delivery, notifier Notifier, workers int) *Processor {
	if workers <= 0 {
		workers = 2
	}
	return &Processor{q: q, delivery: delivery, notifier: notifier, workers: workers, stop: make(chan struct{})}
}

// Start launches the worker pool.
func (p *Processor) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.q.RunWorker(p.stop, p.apply)
		}()
	}
}

// Stop signals the workers, drains the queue so pending side effects are
// still applied, and waits for the pool to exit.
func (p *Processor) Stop() {
	close(p.stop)
	p.wg.Wait()
	for {
		select {
		case it, ok := <-p.q.ch:
			if !ok {
				return
			}
			_ = p.apply(it.Op)
			it.Done()
		default:
			return
		}
	}
}

// EmitPublish marshals payload and queues a broadcast to room. A full
// queue falls back to publishing inline so events are not lost.
func (p *Processor) EmitPublish(room, event string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		logger.Error("outbox_marshal_failed", "room", room, "event", event, "error", err)
		return
	}
	op := &Op{Kind: OpPublish, Room: room, Event: event, Payload: b}
	if err := p.q.TryEnqueue(op); err != nil {
		logger.Warn("outbox_enqueue_full", "kind", "publish", "room", room, "event", event)
		p.delivery.Publish(room, event, b)
	}
}

// EmitDeliver queues a sent-to-delivered transition for a stored message.
func (p *Processor) EmitDeliver(convID, msgID string) {
	op := &Op{Kind: OpDeliver, Conversation: convID, Message: msgID}
	if err := p.q.TryEnqueue(op); err != nil {
		logger.Warn("outbox_enqueue_full", "kind", "deliver", "message", msgID)
		_ = p.deliver(op)
	}
}

// EmitNotify queues notification fan-out for the given intent.
func (p *Processor) EmitNotify(in messaging.NotifyIntent) {
	op := &Op{
		Kind:         OpNotify,
		Conversation: in.Conversation,
		Message:      in.Message,
		Recipients:   in.Recipients,
		Actor:        in.Actor,
		NotifyKind:   in.Kind,
		Preview:      in.Preview,
		TS:           in.TS,
	}
	if err := p.q.TryEnqueue(op); err != nil {
		logger.Warn("outbox_enqueue_full", "kind", "notify", "message", in.Message)
		_ = p.notify(op)
	}
}

func (p *Processor) apply(op *Op) error {
	telemetry.SetOutboxDepth(p.q.Len())
	switch op.Kind {
	case OpPublish:
		p.delivery.Publish(op.Room, op.Event, op.Payload)
		telemetry.EventPublished(op.Event)
		return nil
	case OpDeliver:
		return p.deliver(op)
	case OpNotify:
		return p.notify(op)
	default:
		logger.Warn("outbox_unknown_op", "kind", string(op.Kind))
		return nil
	}
}

// deliver advances a freshly stored message from sent to delivered and
// broadcasts the change. Messages already past sent are left alone.
func (p *Processor) deliver(op *Op) error {
	changed := false
	updated, err := store.MutateMessage(op.Message, func(m *models.Message) error {
		if m.Status == models.StatusSent {
			m.Status = models.StatusDelivered
			changed = true
		}
		return nil
	})
	if err != nil {
		logger.Warn("outbox_deliver_failed", "message", op.Message, "error", err)
		return err
	}
	if !changed {
		return nil
	}
	b, err := json.Marshal(&updated)
	if err != nil {
		return err
	}
	p.delivery.Publish(messaging.RoomConversation(op.Conversation), messaging.EventMessageUpdated, b)
	return nil
}

// notify persists a notification for each recipient without a live
// connection. Reachable recipients already saw the broadcast.
func (p *Processor) notify(op *Op) error {
	var firstErr error
	for _, uid := range op.Recipients {
		if p.delivery.Reachable(uid) {
			continue
		}
		n := models.Notification{
			ID:           utils.GenNotifID(),
			User:         uid,
			Kind:         op.NotifyKind,
			Conversation: op.Conversation,
			Message:      op.Message,
			Actor:        op.Actor,
			Preview:      op.Preview,
			TS:           op.TS,
		}
		if err := p.notifier.Create(n); err != nil {
			logger.Warn("outbox_notify_failed", "user", uid, "message", op.Message, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
