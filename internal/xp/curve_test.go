package xp

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCurve(t *testing.T) {
	c, err := NewCurve(DefaultCurveConfig())
	require.NoError(t, err)

	l := c.LevelFor(0)
	assert.Equal(t, 1, l.Level)
	assert.EqualValues(t, 120, l.XPToNextLevel)
	assert.Zero(t, l.ProgressPercent)

	assert.EqualValues(t, 120, c.Threshold(2))
	assert.EqualValues(t, 144, c.Threshold(3))

	l = c.LevelFor(120)
	assert.Equal(t, 2, l.Level)
	assert.EqualValues(t, 24, l.XPToNextLevel)

	l = c.LevelFor(132)
	assert.Equal(t, 2, l.Level)
	assert.InDelta(t, 50.0, l.ProgressPercent, 0.0001)
}

func TestLevelIsMonotonic(t *testing.T) {
	c, err := NewCurve(DefaultCurveConfig())
	require.NoError(t, err)

	prev := c.LevelFor(0)
	for total := uint64(1); total < 20000; total += 7 {
		cur := c.LevelFor(total)
		assert.GreaterOrEqual(t, cur.Level, prev.Level)
		assert.Positive(t, cur.XPToNextLevel)
		assert.GreaterOrEqual(t, cur.ProgressPercent, 0.0)
		assert.Less(t, cur.ProgressPercent, 100.0)
		if cur.Level == prev.Level {
			assert.Greater(t, cur.ProgressPercent, prev.ProgressPercent)
		}
		prev = cur
	}
}

func TestTableCurveExtendsPastLastThreshold(t *testing.T) {
	c, err := NewCurve(CurveConfig{Kind: CurveTable, Thresholds: []uint64{100, 250, 450}})
	require.NoError(t, err)

	assert.Equal(t, 1, c.LevelFor(99).Level)
	assert.Equal(t, 2, c.LevelFor(100).Level)
	assert.Equal(t, 4, c.LevelFor(450).Level)

	// the final band is 200 wide
	l := c.LevelFor(700)
	assert.Equal(t, 5, l.Level)
	assert.EqualValues(t, 650, l.LevelFloorXP)
	assert.EqualValues(t, 150, l.XPToNextLevel)
	assert.EqualValues(t, 850, c.Threshold(6))
}

func TestLevelSaturatesAtTopOfRange(t *testing.T) {
	c, err := NewCurve(CurveConfig{Kind: CurveTable, Thresholds: []uint64{1, 2}})
	require.NoError(t, err)

	totals := []uint64{2, 1 << 40, 1 << 62, 1 << 63, math.MaxUint64 - 1, math.MaxUint64}
	prev := c.LevelFor(0)
	for _, total := range totals {
		cur := c.LevelFor(total)
		assert.GreaterOrEqual(t, cur.Level, prev.Level, "total %d", total)
		assert.Positive(t, cur.XPToNextLevel, "total %d", total)
		assert.GreaterOrEqual(t, cur.ProgressPercent, 0.0)
		assert.Less(t, cur.ProgressPercent, 100.0)
		prev = cur
	}
	assert.Equal(t, math.MaxInt, c.LevelFor(math.MaxUint64).Level)

	wide, err := NewCurve(CurveConfig{Kind: CurveTable, Thresholds: []uint64{1, 1 << 62}})
	require.NoError(t, err)
	assert.Less(t, wide.Threshold(5), wide.Threshold(6))
	assert.EqualValues(t, uint64(math.MaxUint64), wide.Threshold(7))
	top := wide.LevelFor(math.MaxUint64)
	assert.EqualValues(t, uint64(math.MaxUint64), top.NextLevelXP)
	assert.Positive(t, top.XPToNextLevel)
}

func TestNewCurveRejectsBadConfig(t *testing.T) {
	bad := []CurveConfig{
		{Kind: CurveTable},
		{Kind: CurveTable, Thresholds: []uint64{100, 100}},
		{Kind: CurveTable, Thresholds: []uint64{0}},
		{Kind: CurveExponential, Base: 100, Growth: 1, MaxLevel: 10},
		{Kind: CurveExponential, Base: 100, Growth: 1.5, MaxLevel: 1},
		{Kind: "linear"},
	}
	for _, cfg := range bad {
		_, err := NewCurve(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestNewTransaction(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	user := uuid.New()

	tx, err := NewTransaction(user, 50, SourceAchievement, "meals_10", "Achievement unlocked", now)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tx.ID)
	assert.Equal(t, now, tx.CreatedAt)

	for _, amount := range []int{0, -5} {
		_, err := NewTransaction(user, amount, SourceAdjustment, "", "fix", now)
		var invalid *InvalidAmountError
		assert.True(t, errors.As(err, &invalid))
	}

	assert.EqualValues(t, 80, Sum([]Transaction{{Amount: 50}, {Amount: 30}}))
}
