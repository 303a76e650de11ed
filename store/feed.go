package store

import "sync"

// feed delivers snapshots to one handler on its own goroutine, in the order
// they were pushed, without ever blocking the pusher.
type feed struct {
	mu      sync.Mutex
	pending []Snapshot
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	fn      Handler
}

func newFeed(fn Handler) *feed {
	f := &feed{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		fn:   fn,
	}
	go f.run()
	return f
}

func (f *feed) push(s Snapshot) {
	f.mu.Lock()
	f.pending = append(f.pending, s)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *feed) stop() {
	f.once.Do(func() { close(f.done) })
}

func (f *feed) run() {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}

		for {
			f.mu.Lock()
			batch := f.pending
			f.pending = nil
			f.mu.Unlock()

			if len(batch) == 0 {
				break
			}

			for _, s := range batch {
				select {
				case <-f.done:
					return
				default:
				}
				f.fn(s)
			}
		}
	}
}
