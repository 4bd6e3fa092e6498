package session

import "sync"

// subscriber buffers transitions without bound so a slow reader never blocks
// a transition and never misses one.
type subscriber struct {
	mu       sync.Mutex
	queue    []Transition
	draining bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
	out  chan Transition
}

func newSubscriber() *subscriber {
	s := &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Transition),
	}
	go s.pump()
	return s
}

func (s *subscriber) push(t Transition) {
	s.mu.Lock()
	s.queue = append(s.queue, t)
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// drain delivers what is queued, then closes the channel.
func (s *subscriber) drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.signal()
}

// cancel closes the channel and drops anything queued.
func (s *subscriber) cancel() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.draining {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			select {
			case <-s.wake:
			case <-s.done:
				return
			}
			s.mu.Lock()
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}

type broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*subscriber]struct{})}
}

func (b *broadcaster) subscribe(initial *Transition) (<-chan Transition, func()) {
	s := newSubscriber()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.drain()
		return s.out, func() {}
	}
	b.subs[s] = struct{}{}
	if initial != nil {
		s.push(*initial)
	}
	b.mu.Unlock()

	return s.out, func() {
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		s.cancel()
	}
}

func (b *broadcaster) publish(t Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		s.push(t)
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.drain()
	}
	clear(b.subs)
}
