package xp

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourceAchievement Source = "achievement"
	SourceStreak      Source = "streak"
	SourceActivity    Source = "activity"
	// SourceAdjustment credits are compensating corrections; prior transactions are never edited.
	SourceAdjustment Source = "adjustment"
)

func (s Source) Valid() bool {
	switch s {
	case SourceAchievement, SourceStreak, SourceActivity, SourceAdjustment:
		return true
	}
	return false
}

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Amount      int       `json:"amount" db:"amount"`
	Source      Source    `json:"source" db:"source"`
	Reference   string    `json:"reference,omitempty" db:"reference"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type InvalidAmountError struct {
	Amount int
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("xp amount must be positive, got %d", e.Amount)
}

// NewTransaction validates and stamps a credit. reference ties the credit to what earned it
// (achievement key, streak milestone, event id).
func NewTransaction(userID uuid.UUID, amount int, source Source, reference, description string, now time.Time) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, &InvalidAmountError{Amount: amount}
	}
	if !source.Valid() {
		return Transaction{}, fmt.Errorf("unknown xp source %q", source)
	}
	return Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Source:      source,
		Reference:   reference,
		Description: description,
		CreatedAt:   now.UTC(),
	}, nil
}

// Sum totals a set of transactions.
func Sum(txs []Transaction) uint64 {
	var total uint64
	for _, t := range txs {
		if t.Amount > 0 {
			total += uint64(t.Amount)
		}
	}
	return total
}
