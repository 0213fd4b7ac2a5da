package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProgressUpdateText(t *testing.T) {
	user := uuid.New()

	single := ProgressUpdate{
		UserID:      user,
		Unlocks:     []UnlockedItem{{Key: "meals_10", Name: "Regular Logger", XPReward: 50}},
		LevelBefore: 1,
		LevelAfter:  2,
		TotalXP:     125,
	}
	assert.False(t, single.Empty())
	assert.Equal(t, "Achievement unlocked!", single.Title())
	assert.Equal(t, "Regular Logger (+50 XP), You are now level 2", single.Body())
	assert.Equal(t, "meals_10", single.Data()["achievements"])
	assert.Equal(t, "125", single.Data()["total_xp"])

	many := ProgressUpdate{UserID: user, Unlocks: []UnlockedItem{{Name: "A", XPReward: 1}, {Name: "B", XPReward: 2}}, LevelBefore: 3, LevelAfter: 3}
	assert.Equal(t, "2 achievements unlocked!", many.Title())
	assert.Equal(t, "A (+1 XP), B (+2 XP)", many.Body())

	levelOnly := ProgressUpdate{UserID: user, LevelBefore: 4, LevelAfter: 5, TotalXP: 300}
	assert.Equal(t, "Level 5 reached!", levelOnly.Title())
	assert.Equal(t, "You now have 300 XP", levelOnly.Body())

	assert.True(t, ProgressUpdate{UserID: user, LevelBefore: 2, LevelAfter: 2}.Empty())
}

func TestLogNotifier(t *testing.T) {
	err := LogNotifier{}.Notify(context.Background(), ProgressUpdate{UserID: uuid.New(), LevelBefore: 1, LevelAfter: 2})
	assert.NoError(t, err)
}
