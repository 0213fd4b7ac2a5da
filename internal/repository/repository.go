package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/stats"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/internal/xp"
)

var ErrDuplicateEvent = errors.New("duplicate activity event")

// UserReader reads one user's progression state. Missing rows read as zero values.
type UserReader interface {
	GetStats(ctx context.Context) (stats.UserStats, error)
	GetStreak(ctx context.Context, t activity.Type) (*streak.Streak, error)
	ListStreaks(ctx context.Context) ([]streak.Streak, error)
	ListUnlocks(ctx context.Context) (map[string]achievement.Unlock, error)
	// ListEvents returns the retained events of type t ordered by date, then timestamp.
	ListEvents(ctx context.Context, t activity.Type) ([]activity.Event, error)
	TotalXP(ctx context.Context) (uint64, error)
	// RecentXP returns at most limit transactions, newest first.
	RecentXP(ctx context.Context, limit int) ([]xp.Transaction, error)
}

// UserTx is a unit of work for one user. Writes become visible together when the
// enclosing InUserTx returns nil, and are discarded otherwise.
type UserTx interface {
	UserReader
	// InsertEvent returns ErrDuplicateEvent when the fingerprint is already recorded.
	InsertEvent(ctx context.Context, e activity.Event) error
	MarkEventsApplied(ctx context.Context, ids []uuid.UUID) error
	SaveStreak(ctx context.Context, s streak.Streak) error
	SaveStats(ctx context.Context, s stats.UserStats) error
	// SaveUnlock upserts progress. An unlocked row never reverts to locked.
	SaveUnlock(ctx context.Context, u achievement.Unlock) error
	AppendXP(ctx context.Context, t xp.Transaction) error
}

type Repository interface {
	// InUserTx serializes fn against every other InUserTx for the same user and
	// applies its writes atomically.
	InUserTx(ctx context.Context, userID uuid.UUID, fn func(tx UserTx) error) error
	// ReadUser runs fn against a consistent snapshot of the user's state.
	ReadUser(ctx context.Context, userID uuid.UUID, fn func(r UserReader) error) error
	// ResetInactiveStreaks clears is_active_today on streaks last active before today.
	// Counts are never touched.
	ResetInactiveStreaks(ctx context.Context, today time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close()
}
