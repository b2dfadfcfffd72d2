// Package lock provides per-Subject advisory locks. Memory serializes
// goroutines within one process; Redis extends that across replicas.
package lock

import (
	"context"
	"sync"

	"kyccase/internal/kyc/ports"
	id "kyccase/pkg/domain"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Memory is an in-process SubjectLocker. Entries are dropped once no
// goroutine holds or waits for them.
type Memory struct {
	mu      sync.Mutex
	entries map[id.SubjectID]*entry
}

var _ ports.SubjectLocker = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[id.SubjectID]*entry)}
}

func (m *Memory) Acquire(ctx context.Context, subjectID id.SubjectID) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[subjectID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[subjectID] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(subjectID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.unref(subjectID, e)
		})
	}, nil
}

func (m *Memory) unref(subjectID id.SubjectID, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, subjectID)
	}
}

// held reports how many subjects have a holder or waiter.
func (m *Memory) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
