package status

import (
	"sync"
	"time"
)

// admission couples the pending set with the FIFO of requests. A file is in
// pending iff a request for it still sits in queue; both are only ever
// changed together under mu.
type admission struct {
	mu      sync.Mutex
	pending map[FileID]struct{}
	queue   []Request

	// signal wakes a worker blocked in poll. Capacity 1 so producers never block.
	signal chan struct{}
}

func newAdmission() *admission {
	return &admission{
		pending: make(map[FileID]struct{}),
		signal:  make(chan struct{}, 1),
	}
}

// add enqueues req unless its file is already pending or open reports false.
// open is evaluated inside the critical section so that a concurrent close
// cannot leave a request behind.
func (a *admission) add(req Request, open func() bool) (queued bool, depth int) {
	a.mu.Lock()
	if !open() {
		a.mu.Unlock()
		return false, 0
	}
	if _, ok := a.pending[req.File]; ok {
		depth = len(a.queue)
		a.mu.Unlock()
		return false, depth
	}
	a.pending[req.File] = struct{}{}
	a.queue = append(a.queue, req)
	depth = len(a.queue)
	a.mu.Unlock()
	a.wake()
	return true, depth
}

func (a *admission) wake() {
	select {
	case a.signal <- struct{}{}:
	default:
	}
}

// poll waits up to timeout for the head request. pending reports whether the
// file was still pending when dequeued; it is removed in the same step.
func (a *admission) poll(timeout time.Duration) (req Request, pending bool, ok bool) {
	var timer *time.Timer
	for {
		if req, pending, ok = a.pop(); ok {
			if timer != nil {
				timer.Stop()
			}
			return req, pending, true
		}
		if timer == nil {
			timer = time.NewTimer(timeout)
		}
		select {
		case <-a.signal:
		case <-timer.C:
			// one last look: a request may have landed right at the deadline
			return a.pop()
		}
	}
}

func (a *admission) pop() (Request, bool, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return Request{}, false, false
	}
	req := a.queue[0]
	a.queue[0] = Request{}
	a.queue = a.queue[1:]
	if len(a.queue) == 0 {
		a.queue = nil
	}
	_, pending := a.pending[req.File]
	delete(a.pending, req.File)
	return req, pending, true
}

// forget drops file from pending while leaving its request queued; the worker
// skips such a request when it reaches it.
func (a *admission) forget(file FileID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.pending[file]; !ok {
		return false
	}
	delete(a.pending, file)
	return true
}

func (a *admission) clear() (pending, requests int) {
	a.mu.Lock()
	pending, requests = len(a.pending), len(a.queue)
	a.pending = make(map[FileID]struct{})
	a.queue = nil
	a.mu.Unlock()
	a.wake()
	return pending, requests
}

func (a *admission) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

func (a *admission) pendingFiles() []FileID {
	a.mu.Lock()
	defer a.mu.Unlock()
	files := make([]FileID, 0, len(a.pending))
	for f := range a.pending {
		files = append(files, f)
	}
	return files
}
