package submission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps submissions in process memory, in insertion order.
type MemoryStore struct {
	mu   sync.RWMutex
	subs []Submission
	// Fail, when set, is returned by Create after validation passes.
	Fail error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, in Input) (*Submission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if m.Fail != nil {
		return nil, m.Fail
	}
	now := time.Now().UTC()
	sub := Submission{
		ID:        uuid.New(),
		Filepath:  in.Filepath,
		Type:      in.Type,
		Body:      in.Body,
		Timeslot:  in.Timeslot,
		Person:    in.Person,
		Email:     in.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return &sub, nil
}

func (m *MemoryStore) All(_ context.Context) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Submission, len(m.subs))
	copy(out, m.subs)
	return out, nil
}
