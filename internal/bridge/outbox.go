package bridge

import "sync"

// outbox delivers events to a single reader in the order they were sent.
// Sending never blocks and never drops; the queue grows while the reader
// is slow.
type outbox struct {
	out  chan Event
	wake chan struct{}
	done chan struct{}

	mu     sync.Mutex
	queue  []Event
	closed bool
}

func newOutbox() *outbox {
	o := &outbox{
		out:  make(chan Event),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go o.run()
	return o
}

// send queues e. Events sent after close are discarded.
func (o *outbox) send(e Event) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, e)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// close stops delivery and closes the output channel. Undelivered events
// are dropped.
func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.queue = nil
	close(o.done)
}

func (o *outbox) run() {
	defer close(o.out)
	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			o.mu.Unlock()
			select {
			case <-o.wake:
				continue
			case <-o.done:
				return
			}
		}
		e := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		o.mu.Unlock()

		select {
		case o.out <- e:
		case <-o.done:
			return
		}
	}
}
