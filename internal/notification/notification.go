package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type UnlockedItem struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	XPReward int    `json:"xp_reward"`
}

// ProgressUpdate is what a user is told after an ingestion changed their progression.
type ProgressUpdate struct {
	UserID      uuid.UUID      `json:"user_id"`
	Unlocks     []UnlockedItem `json:"unlocks"`
	LevelBefore int            `json:"level_before"`
	LevelAfter  int            `json:"level_after"`
	TotalXP     uint64         `json:"total_xp"`
}

func (u ProgressUpdate) LeveledUp() bool {
	return u.LevelAfter > u.LevelBefore
}

// Empty reports whether there is nothing worth telling the user.
func (u ProgressUpdate) Empty() bool {
	return len(u.Unlocks) == 0 && !u.LeveledUp()
}

func (u ProgressUpdate) Title() string {
	switch {
	case len(u.Unlocks) == 1:
		return "Achievement unlocked!"
	case len(u.Unlocks) > 1:
		return fmt.Sprintf("%d achievements unlocked!", len(u.Unlocks))
	}
	return fmt.Sprintf("Level %d reached!", u.LevelAfter)
}

func (u ProgressUpdate) Body() string {
	var parts []string
	for _, a := range u.Unlocks {
		parts = append(parts, fmt.Sprintf("%s (+%d XP)", a.Name, a.XPReward))
	}
	if u.LeveledUp() && len(u.Unlocks) > 0 {
		parts = append(parts, fmt.Sprintf("You are now level %d", u.LevelAfter))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("You now have %d XP", u.TotalXP)
	}
	return strings.Join(parts, ", ")
}

// Data is the string-only payload delivered alongside the push.
func (u ProgressUpdate) Data() map[string]string {
	keys := make([]string, 0, len(u.Unlocks))
	for _, a := range u.Unlocks {
		keys = append(keys, a.Key)
	}
	return map[string]string{
		"user_id":      u.UserID.String(),
		"achievements": strings.Join(keys, ","),
		"level":        fmt.Sprint(u.LevelAfter),
		"total_xp":     fmt.Sprint(u.TotalXP),
	}
}

type Notifier interface {
	Notify(ctx context.Context, u ProgressUpdate) error
}

// LogNotifier writes updates to the log. It is used when no push provider is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, u ProgressUpdate) error {
	logrus.WithFields(logrus.Fields{
		"user_id": u.UserID,
		"title":   u.Title(),
		"body":    u.Body(),
	}).Info("Progress notification")
	return nil
}
