package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Scheduler runs callbacks at given times. Tasks are keyed by id, so
// scheduling an existing id moves it.
type Scheduler struct {
	heap    taskHeap
	tasks   map[string]*task
	mu      sync.Mutex
	wakeup  chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

// NewScheduler creates a stopped scheduler. Call Start to run it.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		heap:   make(taskHeap, 0),
		tasks:  make(map[string]*task),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	heap.Init(&s.heap)
	return s
}

// Start launches the scheduling loop
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	go s.run()
}

// Stop ends the loop. Pending tasks are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stopCh)
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

// Schedule runs callback at due, replacing any task with the same id
func (s *Scheduler) Schedule(id string, due time.Time, callback func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if existing, ok := s.tasks[id]; ok {
		heap.Remove(&s.heap, existing.index)
		delete(s.tasks, id)
	}

	t := &task{id: id, due: due, callback: callback}
	heap.Push(&s.heap, t)
	s.tasks[id] = t

	if s.heap[0] == t {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Cancel removes a task. It reports whether the task was pending.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, t.index)
	delete(s.tasks, id)
	return true
}

// Pending returns the number of scheduled tasks
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}

		wait := 24 * time.Hour
		if s.heap.Len() > 0 {
			wait = time.Until(s.heap[0].due)
			if wait <= 0 {
				t := heap.Pop(&s.heap).(*task)
				delete(s.tasks, t.id)
				go t.callback()

				s.mu.Unlock()
				continue
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

var (
	ErrSchedulerStopped = &TimerError{"scheduler is stopped"}
)

// TimerError represents a timer error
type TimerError struct {
	msg string
}

func (e *TimerError) Error() string {
	return e.msg
}
