// Package store holds the bot's in-memory per-user state: the free-question
// counters and the pending paywalled questions. Everything here lives for the
// process lifetime only; a restart resets quotas and discards pending
// questions.
package store

import "sync"

// Decision is the outcome of charging one message against a user's quota.
type Decision struct {
	RequiresPayment bool
	Used            int // free questions consumed so far
	Limit           int
}

type entitlement struct {
	mu   sync.Mutex
	used int
}

// EntitlementStore counts free questions per user. The counter never
// decreases, and once it reaches the limit the user is paywalled for good.
type EntitlementStore struct {
	mu    sync.Mutex // guards the map, not the entries
	users map[int64]*entitlement
	limit int
}

func NewEntitlementStore(limit int) *EntitlementStore {
	return &EntitlementStore{
		users: make(map[int64]*entitlement),
		limit: limit,
	}
}

func (s *EntitlementStore) entry(userID int64) *entitlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.users[userID]
	if !ok {
		e = &entitlement{}
		s.users[userID] = e
	}
	return e
}

// CheckAndConsume decides whether userID's next question is free and, if it
// is, spends one free slot. The check and the increment are a single atomic
// step, so two racing messages can never both claim the last slot.
func (s *EntitlementStore) CheckAndConsume(userID int64) Decision {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.used >= s.limit {
		return Decision{RequiresPayment: true, Used: e.used, Limit: s.limit}
	}
	e.used++
	return Decision{Used: e.used, Limit: s.limit}
}

// Remaining reports how many free questions userID still has.
func (s *EntitlementStore) Remaining(userID int64) int {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.used >= s.limit {
		return 0
	}
	return s.limit - e.used
}

// Limit returns the configured free-question threshold.
func (s *EntitlementStore) Limit() int {
	return s.limit
}

// Known lists every user that has been seen so far.
func (s *EntitlementStore) Known() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids
}

// Tracked reports how many users have been seen so far.
func (s *EntitlementStore) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
