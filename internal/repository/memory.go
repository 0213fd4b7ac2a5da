package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/stats"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/internal/xp"
)

type userState struct {
	events       []activity.Event
	fingerprints map[string]struct{}
	streaks      map[activity.Type]streak.Streak
	stats        stats.UserStats
	unlocks      map[string]achievement.Unlock
	ledger       []xp.Transaction
}

func newUserState(userID uuid.UUID) *userState {
	return &userState{
		fingerprints: make(map[string]struct{}),
		streaks:      make(map[activity.Type]streak.Streak),
		stats:        stats.UserStats{UserID: userID},
		unlocks:      make(map[string]achievement.Unlock),
	}
}

func (s *userState) clone() *userState {
	c := &userState{
		events:       slices.Clone(s.events),
		fingerprints: make(map[string]struct{}, len(s.fingerprints)),
		streaks:      make(map[activity.Type]streak.Streak, len(s.streaks)),
		stats:        s.stats,
		unlocks:      make(map[string]achievement.Unlock, len(s.unlocks)),
		ledger:       slices.Clone(s.ledger),
	}
	for k := range s.fingerprints {
		c.fingerprints[k] = struct{}{}
	}
	for k, v := range s.streaks {
		c.streaks[k] = v
	}
	for k, v := range s.unlocks {
		c.unlocks[k] = v
	}
	return c
}

type userSlot struct {
	mu    sync.RWMutex
	state *userState
}

// Memory keeps progression state in process. Each user has its own lock; there is no
// global lock on the write path.
type Memory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*userSlot
}

func NewMemory() *Memory {
	return &Memory{users: make(map[uuid.UUID]*userSlot)}
}

func (m *Memory) slot(userID uuid.UUID, create bool) *userSlot {
	m.mu.RLock()
	s, ok := m.users[userID]
	m.mu.RUnlock()
	if ok || !create {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.users[userID]; ok {
		return s
	}
	s = &userSlot{state: newUserState(userID)}
	m.users[userID] = s
	return s
}

func (m *Memory) InUserTx(ctx context.Context, userID uuid.UUID, fn func(tx UserTx) error) error {
	s := m.slot(userID, true)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&memoryTx{userID: userID, state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (m *Memory) ReadUser(ctx context.Context, userID uuid.UUID, fn func(r UserReader) error) error {
	s := m.slot(userID, false)
	if s == nil {
		return fn(&memoryTx{userID: userID, state: newUserState(userID)})
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memoryTx{userID: userID, state: s.state})
}

func (m *Memory) ResetInactiveStreaks(ctx context.Context, today time.Time) (int64, error) {
	today = activity.ToDate(today)

	m.mu.RLock()
	slots := make([]*userSlot, 0, len(m.users))
	for _, s := range m.users {
		slots = append(slots, s)
	}
	m.mu.RUnlock()

	var n int64
	for _, s := range slots {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		s.mu.Lock()
		for t, st := range s.state.streaks {
			if st.IsActiveToday && st.LastActivityDate.Before(today) {
				st.IsActiveToday = false
				s.state.streaks[t] = st
				n++
			}
		}
		s.mu.Unlock()
	}
	return n, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

type memoryTx struct {
	userID uuid.UUID
	state  *userState
}

func (t *memoryTx) GetStats(context.Context) (stats.UserStats, error) {
	return t.state.stats, nil
}

func (t *memoryTx) GetStreak(_ context.Context, st activity.Type) (*streak.Streak, error) {
	s, ok := t.state.streaks[st]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (t *memoryTx) ListStreaks(context.Context) ([]streak.Streak, error) {
	var out []streak.Streak
	for _, st := range activity.Types {
		if s, ok := t.state.streaks[st]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *memoryTx) ListUnlocks(context.Context) (map[string]achievement.Unlock, error) {
	out := make(map[string]achievement.Unlock, len(t.state.unlocks))
	for k, v := range t.state.unlocks {
		out[k] = v
	}
	return out, nil
}

func (t *memoryTx) ListEvents(_ context.Context, st activity.Type) ([]activity.Event, error) {
	var out []activity.Event
	for _, e := range t.state.events {
		if e.Type == st {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b activity.Event) int {
		if c := a.OccurredOn.Compare(b.OccurredOn); c != 0 {
			return c
		}
		return a.OccurredAt.Compare(b.OccurredAt)
	})
	return out, nil
}

func (t *memoryTx) TotalXP(context.Context) (uint64, error) {
	return xp.Sum(t.state.ledger), nil
}

func (t *memoryTx) RecentXP(_ context.Context, limit int) ([]xp.Transaction, error) {
	out := slices.Clone(t.state.ledger)
	// reversed first so equal timestamps keep newest first
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b xp.Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memoryTx) InsertEvent(_ context.Context, e activity.Event) error {
	if _, dup := t.state.fingerprints[e.Fingerprint]; dup {
		return ErrDuplicateEvent
	}
	t.state.fingerprints[e.Fingerprint] = struct{}{}
	t.state.events = append(t.state.events, e)
	return nil
}

func (t *memoryTx) MarkEventsApplied(_ context.Context, ids []uuid.UUID) error {
	for i := range t.state.events {
		if slices.Contains(ids, t.state.events[i].ID) {
			t.state.events[i].Applied = true
		}
	}
	return nil
}

func (t *memoryTx) SaveStreak(_ context.Context, s streak.Streak) error {
	s.UserID = t.userID
	s.UpdatedAt = time.Now().UTC()
	t.state.streaks[s.Type] = s
	return nil
}

func (t *memoryTx) SaveStats(_ context.Context, s stats.UserStats) error {
	s.UserID = t.userID
	t.state.stats = s
	return nil
}

func (t *memoryTx) SaveUnlock(_ context.Context, u achievement.Unlock) error {
	u.UserID = t.userID
	if prev, ok := t.state.unlocks[u.AchievementKey]; ok && prev.Unlocked() {
		u.UnlockedAt, u.UnlockedVia = prev.UnlockedAt, prev.UnlockedVia
	}
	t.state.unlocks[u.AchievementKey] = u
	return nil
}

func (t *memoryTx) AppendXP(_ context.Context, tx xp.Transaction) error {
	tx.UserID = t.userID
	t.state.ledger = append(t.state.ledger, tx)
	return nil
}
