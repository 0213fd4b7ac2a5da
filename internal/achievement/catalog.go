package achievement

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/xp"
)

//go:embed default_catalog.toml
var defaultCatalog []byte

type StreakBonus struct {
	EveryDays int `toml:"every_days" json:"every_days"`
	XP        int `toml:"xp" json:"xp"`
}

// Catalog is the versioned reward configuration: achievements, per-activity XP,
// streak milestone bonus and the level curve.
type Catalog struct {
	Version      string         `toml:"version" json:"version"`
	ActivityXP   map[string]int `toml:"activity_xp" json:"activity_xp"`
	StreakBonus  StreakBonus    `toml:"streak_bonus" json:"streak_bonus"`
	LevelCurve   xp.CurveConfig `toml:"level_curve" json:"level_curve"`
	Achievements []Achievement  `toml:"achievements" json:"achievements"`

	byKey map[string]int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, falling back to the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{LevelCurve: xp.DefaultCurveConfig()}
	if _, err := toml.Decode(string(data), c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every problem in the catalog at once.
func (c *Catalog) Validate() error {
	var errs []error
	if c.Version == "" {
		errs = append(errs, errors.New("catalog version is required"))
	}
	for name, amount := range c.ActivityXP {
		if _, err := activity.ParseType(name); err != nil {
			errs = append(errs, fmt.Errorf("activity_xp: %w", err))
		}
		if amount < 0 {
			errs = append(errs, fmt.Errorf("activity_xp.%s must not be negative", name))
		}
	}
	if c.StreakBonus.EveryDays < 0 || c.StreakBonus.XP < 0 {
		errs = append(errs, errors.New("streak_bonus values must not be negative"))
	}
	if _, err := xp.NewCurve(c.LevelCurve); err != nil {
		errs = append(errs, fmt.Errorf("level_curve: %w", err))
	}

	c.byKey = make(map[string]int, len(c.Achievements))
	for i, a := range c.Achievements {
		if a.Key == "" {
			errs = append(errs, fmt.Errorf("achievement #%d has no key", i+1))
			continue
		}
		if _, dup := c.byKey[a.Key]; dup {
			errs = append(errs, fmt.Errorf("achievement %s: duplicate key", a.Key))
		}
		c.byKey[a.Key] = i
		if a.Category == "" {
			errs = append(errs, fmt.Errorf("achievement %s: category is required", a.Key))
		}
		if a.Difficulty < 1 || a.Difficulty > 5 {
			errs = append(errs, fmt.Errorf("achievement %s: difficulty %d out of range 1..5", a.Key, a.Difficulty))
		}
		if a.XPReward <= 0 {
			errs = append(errs, fmt.Errorf("achievement %s: xp_reward must be positive", a.Key))
		}
		if !a.CriteriaType.valid() {
			errs = append(errs, fmt.Errorf("achievement %s: unknown criteria %q", a.Key, a.CriteriaType))
		}
		if a.CriteriaValue <= 0 {
			errs = append(errs, fmt.Errorf("achievement %s: criteria_value must be positive", a.Key))
		}
		if a.CriteriaType.needsStreakType() && !a.StreakType.Valid() {
			errs = append(errs, fmt.Errorf("achievement %s: criteria %s needs a streak_type", a.Key, a.CriteriaType))
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) Get(key string) (Achievement, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Achievement{}, false
	}
	return c.Achievements[i], true
}

// XPFor returns the XP credited for one event of type t.
func (c *Catalog) XPFor(t activity.Type) int {
	return c.ActivityXP[string(t)]
}

// Categories returns categories in first-appearance order.
func (c *Catalog) Categories() []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, a := range c.Achievements {
		if !seen[a.Category] {
			seen[a.Category] = true
			out = append(out, a.Category)
		}
	}
	return out
}

func (c *Catalog) Curve() (*xp.Curve, error) {
	return xp.NewCurve(c.LevelCurve)
}
