package store

import "sync"

type pendingSlot struct {
	mu   sync.Mutex
	text string
	set  bool
}

// PendingStore keeps at most one unpaid question per user. A new question
// silently replaces the previous one; a take empties the slot.
type PendingStore struct {
	mu    sync.Mutex // guards the map, not the slots
	slots map[int64]*pendingSlot
}

func NewPendingStore() *PendingStore {
	return &PendingStore{
		slots: make(map[int64]*pendingSlot),
	}
}

func (s *PendingStore) slot(userID int64) *pendingSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[userID]
	if !ok {
		sl = &pendingSlot{}
		s.slots[userID] = sl
	}
	return sl
}

// Put records text as userID's pending question, replacing any earlier one.
func (s *PendingStore) Put(userID int64, text string) {
	sl := s.slot(userID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.text = text
	sl.set = true
}

// Take atomically reads and clears userID's pending question. The second of
// two racing takes sees an empty slot.
func (s *PendingStore) Take(userID int64) (string, bool) {
	sl := s.slot(userID)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if !sl.set {
		return "", false
	}
	text := sl.text
	sl.text = ""
	sl.set = false
	return text, true
}

// Len reports how many users currently have a pending question.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sl := range s.slots {
		sl.mu.Lock()
		if sl.set {
			n++
		}
		sl.mu.Unlock()
	}
	return n
}
