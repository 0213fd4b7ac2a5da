package xp

import (
	"fmt"
	"math"
	"sort"
)

const (
	CurveExponential = "exponential"
	CurveTable       = "table"
)

// CurveConfig selects the level curve. Exponential uses floor(Base * Growth^(L-1)) as the
// cumulative XP for level L >= 2; Table lists cumulative thresholds starting at level 2.
type CurveConfig struct {
	Kind       string   `toml:"kind" json:"kind"`
	Base       float64  `toml:"base" json:"base"`
	Growth     float64  `toml:"growth" json:"growth"`
	MaxLevel   int      `toml:"max_level" json:"max_level"`
	Thresholds []uint64 `toml:"thresholds" json:"thresholds"`
}

func DefaultCurveConfig() CurveConfig {
	return CurveConfig{Kind: CurveExponential, Base: 100, Growth: 1.2, MaxLevel: 100}
}

// Curve maps cumulative XP to a level. Past the last configured threshold every level
// costs the width of the final band, so there is always a next level.
type Curve struct {
	// thresholds[i] is the cumulative XP needed for level i+1; thresholds[0] == 0.
	thresholds []uint64
	lastBand   uint64
}

type Level struct {
	Level           int     `json:"level"`
	XPToNextLevel   uint64  `json:"xp_to_next_level"`
	ProgressPercent float64 `json:"progress_percent"`
	LevelFloorXP    uint64  `json:"level_floor_xp"`
	NextLevelXP     uint64  `json:"next_level_xp"`
}

func NewCurve(cfg CurveConfig) (*Curve, error) {
	var thresholds []uint64
	switch cfg.Kind {
	case CurveExponential, "":
		if cfg.Base <= 0 || cfg.Growth <= 1 {
			return nil, fmt.Errorf("exponential curve needs base > 0 and growth > 1")
		}
		if cfg.MaxLevel < 2 {
			return nil, fmt.Errorf("exponential curve needs max_level >= 2")
		}
		thresholds = []uint64{0}
		for level := 2; level <= cfg.MaxLevel; level++ {
			// the epsilon keeps values like 100*1.2^2 from flooring to 143
			v := math.Floor(cfg.Base*math.Pow(cfg.Growth, float64(level-1)) + 1e-9)
			if v >= math.MaxInt64 {
				break
			}
			thresholds = append(thresholds, uint64(v))
		}
	case CurveTable:
		thresholds = append([]uint64{0}, cfg.Thresholds...)
	default:
		return nil, fmt.Errorf("unknown level curve %q", cfg.Kind)
	}

	if len(thresholds) < 2 {
		return nil, fmt.Errorf("level curve needs at least one threshold above level 1")
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return nil, fmt.Errorf("level thresholds must be strictly ascending (level %d: %d <= %d)",
				i+1, thresholds[i], thresholds[i-1])
		}
	}

	n := len(thresholds)
	return &Curve{thresholds: thresholds, lastBand: thresholds[n-1] - thresholds[n-2]}, nil
}

// Threshold returns the cumulative XP required to reach level.
func (c *Curve) Threshold(level int) uint64 {
	if level <= 1 {
		return 0
	}
	n := len(c.thresholds)
	if level <= n {
		return c.thresholds[level-1]
	}
	extra := uint64(level - n)
	if extra > (math.MaxUint64-c.thresholds[n-1])/c.lastBand {
		return math.MaxUint64
	}
	return c.thresholds[n-1] + extra*c.lastBand
}

// LevelFor is pure and monotonic in total.
func (c *Curve) LevelFor(total uint64) Level {
	n := len(c.thresholds)
	last := c.thresholds[n-1]

	var level int
	var floor, next uint64
	if total < last {
		// first index whose threshold exceeds total
		i := sort.Search(n, func(i int) bool { return c.thresholds[i] > total })
		level = i
		floor = c.thresholds[i-1]
		next = c.thresholds[i]
	} else {
		extra := (total - last) / c.lastBand
		level = math.MaxInt
		if extra <= uint64(math.MaxInt-n) {
			level = n + int(extra)
		}
		floor = last + extra*c.lastBand
		next = math.MaxUint64
		if floor <= math.MaxUint64-c.lastBand {
			next = floor + c.lastBand
		}
	}

	// the band cut off at the top of the uint64 range still reports one XP to go
	toNext := max(next-total, 1)
	var progress float64
	if next > floor {
		progress = float64(total-floor) / float64(next-floor) * 100
	}
	if progress >= 100 {
		progress = math.Nextafter(100, 0)
	}

	return Level{
		Level:           level,
		XPToNextLevel:   toNext,
		ProgressPercent: progress,
		LevelFloorXP:    floor,
		NextLevelXP:     next,
	}
}

// Snapshot is the derived progress read model. It is never stored.
type Snapshot struct {
	TotalXP uint64 `json:"total_xp"`
	Level
}

func (c *Curve) Snapshot(total uint64) Snapshot {
	return Snapshot{TotalXP: total, Level: c.LevelFor(total)}
}
