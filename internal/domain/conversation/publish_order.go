package conversation

import "sync"

// publishOrder releases the fan-outs of one conversation in the order their slots were reserved.
// Slots are reserved while the conversation lock is held, so release order is commit order.
// Whoever resolves the head slot drains every ready slot behind it. Later callers never wait.
type publishOrder struct {
	mu     sync.Mutex
	queues map[int64]*publishQueue
}

type publishQueue struct {
	slots    []*publishSlot
	draining bool
}

type publishSlot struct {
	ready bool
	run   func()
}

func newPublishOrder() *publishOrder {
	return &publishOrder{queues: make(map[int64]*publishQueue)}
}

// reserve appends a slot for conversationID. Every slot must be resolved exactly once.
func (o *publishOrder) reserve(conversationID int64) *publishSlot {
	o.mu.Lock()
	defer o.mu.Unlock()

	q, ok := o.queues[conversationID]
	if !ok {
		q = &publishQueue{}
		o.queues[conversationID] = q
	}
	slot := &publishSlot{}
	q.slots = append(q.slots, slot)
	return slot
}

// resolve marks slot ready with run, or cancelled when run is nil, and drains the queue
// unless another caller is already draining it.
func (o *publishOrder) resolve(conversationID int64, slot *publishSlot, run func()) {
	o.mu.Lock()
	slot.ready = true
	slot.run = run

	q := o.queues[conversationID]
	if q == nil || q.draining {
		o.mu.Unlock()
		return
	}
	q.draining = true

	for len(q.slots) > 0 && q.slots[0].ready {
		head := q.slots[0]
		q.slots = q.slots[1:]
		if head.run == nil {
			continue
		}
		o.mu.Unlock()
		head.run()
		o.mu.Lock()
	}

	q.draining = false
	if len(q.slots) == 0 {
		delete(o.queues, conversationID)
	}
	o.mu.Unlock()
}

func (o *publishOrder) pending(conversationID int64) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if q, ok := o.queues[conversationID]; ok {
		return len(q.slots)
	}
	return 0
}
