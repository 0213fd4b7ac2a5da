package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fitQuestAPI/internal/repository"
	"fitQuestAPI/internal/xp"
)

// XPService is the append-only XP ledger. Level is always derived from the ledger sum.
type XPService struct {
	repo  repository.Repository
	curve *xp.Curve
	now   func() time.Time
}

func NewXPService(repo repository.Repository, curve *xp.Curve, now func() time.Time) *XPService {
	if now == nil {
		now = time.Now
	}
	return &XPService{repo: repo, curve: curve, now: now}
}

// Credit appends one positive transaction for userID in its own unit of work.
func (s *XPService) Credit(ctx context.Context, userID uuid.UUID, amount int, source xp.Source, description string) (xp.Transaction, error) {
	var out xp.Transaction
	if amount <= 0 {
		return out, &xp.InvalidAmountError{Amount: amount}
	}
	err := s.repo.InUserTx(ctx, userID, func(tx repository.UserTx) error {
		var err error
		out, err = s.credit(ctx, tx, userID, amount, source, "", description)
		return err
	})
	if err != nil {
		return xp.Transaction{}, err
	}
	recordCredits([]xp.Transaction{out})
	return out, nil
}

func (s *XPService) credit(ctx context.Context, tx repository.UserTx, userID uuid.UUID, amount int, source xp.Source, reference, description string) (xp.Transaction, error) {
	t, err := xp.NewTransaction(userID, amount, source, reference, description, s.now())
	if err != nil {
		return xp.Transaction{}, err
	}
	if err := tx.AppendXP(ctx, t); err != nil {
		return xp.Transaction{}, fmt.Errorf("credit %s xp: %w", source, err)
	}
	return t, nil
}

// recordCredits counts and logs transactions once their unit of work has committed.
func recordCredits(txns []xp.Transaction) {
	for _, t := range txns {
		xpCredited.WithLabelValues(string(t.Source)).Add(float64(t.Amount))
		logrus.WithFields(logrus.Fields{
			"user_id": t.UserID,
			"amount":  t.Amount,
			"source":  t.Source,
		}).Debug("XP credited")
	}
}

func (s *XPService) TotalXP(ctx context.Context, userID uuid.UUID) (uint64, error) {
	var total uint64
	err := s.repo.ReadUser(ctx, userID, func(r repository.UserReader) error {
		var err error
		total, err = r.TotalXP(ctx)
		return err
	})
	return total, err
}

func (s *XPService) LevelFor(totalXP uint64) xp.Level {
	return s.curve.LevelFor(totalXP)
}

func (s *XPService) Snapshot(totalXP uint64) xp.Snapshot {
	return s.curve.Snapshot(totalXP)
}
