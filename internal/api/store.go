package api

import (
	"sync"

	"github.com/google/uuid"
)

// ResultStore keeps completed multiplies for later retrieval. Entries live
// until deleted or evicted by the capacity bound, oldest first.
type ResultStore struct {
	mu      sync.Mutex
	results map[string]MatmulResponse
	order   []string
	max     int
}

// NewResultStore returns a store holding at most max results; max <= 0 means
// unbounded.
func NewResultStore(max int) *ResultStore {
	return &ResultStore{
		results: make(map[string]MatmulResponse),
		max:     max,
	}
}

func newResultID() string {
	return "mm_" + uuid.NewString()
}

func (s *ResultStore) Save(resp MatmulResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[resp.ID]; !ok {
		s.order = append(s.order, resp.ID)
	}
	s.results[resp.ID] = resp
	for s.max > 0 && len(s.order) > s.max {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.results, oldest)
	}
}

func (s *ResultStore) Get(id string) (MatmulResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.results[id]
	return resp, ok
}

func (s *ResultStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[id]; !ok {
		return false
	}
	delete(s.results, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *ResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}
