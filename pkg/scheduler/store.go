package scheduler

import (
	"context"
	"hash/fnv"
	"sync"
)

// The job table is the only structure mutated by multiple workers. It is a
// sharded keyed store: reads and writes to a single job id are mutually
// exclusive, while jobs on different shards never contend. This avoids the
// single-global-lock bottleneck without an actor per job.
const shardCount = 16

type entry struct {
	mu     sync.Mutex
	job    Job
	cancel context.CancelFunc // set while the job is running
}

type store struct {
	shards [shardCount]struct {
		mu   sync.RWMutex
		jobs map[string]*entry
	}
}

func newStore() *store {
	s := &store{}
	for i := range s.shards {
		s.shards[i].jobs = make(map[string]*entry)
	}
	return s
}

func (s *store) shard(id string) *struct {
	mu   sync.RWMutex
	jobs map[string]*entry
} {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *store) put(job Job) {
	sh := s.shard(job.ID)
	sh.mu.Lock()
	sh.jobs[job.ID] = &entry{job: job}
	sh.mu.Unlock()
}

func (s *store) lookup(id string) (*entry, bool) {
	sh := s.shard(id)
	sh.mu.RLock()
	e, ok := sh.jobs[id]
	sh.mu.RUnlock()
	return e, ok
}

// get returns a consistent snapshot of one job.
func (s *store) get(id string) (Job, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return Job{}, false
	}
	e.mu.Lock()
	job := e.job.clone()
	e.mu.Unlock()
	return job, true
}

// update applies fn to the job record under its entry lock.
// Returns false for unknown ids.
func (s *store) update(id string, fn func(*Job)) bool {
	e, ok := s.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	fn(&e.job)
	e.mu.Unlock()
	return true
}

// transition moves a job to next unless it is already terminal, applying fn
// to the record in the same critical section. Reports whether the
// transition was accepted; late transitions against terminal jobs are
// silently refused, never errors, since they may race with results.
func (s *store) transition(id string, next State, fn func(*Job)) bool {
	e, ok := s.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job.State.Terminal() {
		return false
	}
	e.job.State = next
	if fn != nil {
		fn(&e.job)
	}
	return true
}

// setCancel records the cancellation handle for a running job and returns
// false when the job no longer exists.
func (s *store) setCancel(id string, cancel context.CancelFunc) bool {
	e, ok := s.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	return true
}

// cancelFunc fetches the job's cancellation handle, which may be nil.
func (s *store) cancelFunc(id string) context.CancelFunc {
	e, ok := s.lookup(id)
	if !ok {
		return nil
	}
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	return cancel
}

func (s *store) delete(id string) {
	sh := s.shard(id)
	sh.mu.Lock()
	delete(sh.jobs, id)
	sh.mu.Unlock()
}

// forEach visits a snapshot of every job. The callback runs without any
// locks held, so it may call back into the store.
func (s *store) forEach(fn func(Job)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		entries := make([]*entry, 0, len(sh.jobs))
		for _, e := range sh.jobs {
			entries = append(entries, e)
		}
		sh.mu.RUnlock()

		for _, e := range entries {
			e.mu.Lock()
			job := e.job.clone()
			e.mu.Unlock()
			fn(job)
		}
	}
}
