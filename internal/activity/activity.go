package activity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

type Type string

const (
	TypeNutrition Type = "nutrition"
	TypeExercise  Type = "exercise"
	TypeHydration Type = "hydration"
)

// Types lists every tracked activity type in display order.
var Types = []Type{TypeNutrition, TypeExercise, TypeHydration}

func (t Type) Valid() bool {
	switch t {
	case TypeNutrition, TypeExercise, TypeHydration:
		return true
	}
	return false
}

func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown activity type %q", s)
	}
	return t, nil
}

// Payload is the closed set of event bodies. Only the types in this package implement it.
type Payload interface {
	Type() Type
	validate() error
	canonical() string
}

type Nutrition struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

func (Nutrition) Type() Type { return TypeNutrition }

func (n Nutrition) validate() error {
	if n.Calories < 0 || n.ProteinG < 0 || n.CarbsG < 0 || n.FatG < 0 {
		return fmt.Errorf("nutrition values must not be negative")
	}
	return nil
}

func (n Nutrition) canonical() string {
	return fmt.Sprintf("cal=%s;p=%s;c=%s;f=%s", fmtFloat(n.Calories), fmtFloat(n.ProteinG), fmtFloat(n.CarbsG), fmtFloat(n.FatG))
}

type Exercise struct {
	DurationMinutes int     `json:"duration_minutes"`
	CaloriesBurned  float64 `json:"calories_burned"`
}

func (Exercise) Type() Type { return TypeExercise }

func (e Exercise) validate() error {
	if e.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if e.CaloriesBurned < 0 {
		return fmt.Errorf("calories_burned must not be negative")
	}
	return nil
}

func (e Exercise) canonical() string {
	return fmt.Sprintf("min=%d;burn=%s", e.DurationMinutes, fmtFloat(e.CaloriesBurned))
}

type Hydration struct {
	AmountMl int `json:"amount_ml"`
}

func (Hydration) Type() Type { return TypeHydration }

func (h Hydration) validate() error {
	if h.AmountMl <= 0 {
		return fmt.Errorf("amount_ml must be positive")
	}
	return nil
}

func (h Hydration) canonical() string {
	return "ml=" + strconv.Itoa(h.AmountMl)
}

// Event is an immutable activity fact reported by a collaborator.
type Event struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Type        Type      `json:"type"`
	OccurredOn  time.Time `json:"occurred_on"`
	OccurredAt  time.Time `json:"occurred_at"`
	Payload     Payload   `json:"payload"`
	Fingerprint string    `json:"fingerprint"`
	// Applied is false while the event is retained but not yet folded into streaks and stats.
	Applied    bool      `json:"applied"`
	RecordedAt time.Time `json:"recorded_at"`
}

// New builds an event for payload p. occurredAt defaults to now when zero.
func New(userID uuid.UUID, date time.Time, occurredAt time.Time, p Payload, now time.Time) Event {
	if occurredAt.IsZero() {
		occurredAt = now
	}
	e := Event{
		ID:         uuid.New(),
		UserID:     userID,
		OccurredOn: ToDate(date),
		OccurredAt: occurredAt.UTC(),
		Payload:    p,
		RecordedAt: now.UTC(),
	}
	if p != nil {
		e.Type = p.Type()
	}
	e.Fingerprint = Fingerprint(e)
	return e
}

// Validate checks the event against the known shapes. today is the current civil date.
func Validate(e Event, today time.Time) error {
	if e.UserID == uuid.Nil {
		return &InvalidEventError{Reason: "missing user id"}
	}
	if !e.Type.Valid() {
		return &InvalidEventError{Reason: fmt.Sprintf("unknown activity type %q", e.Type)}
	}
	if e.Payload == nil {
		return &InvalidEventError{Reason: "missing payload"}
	}
	if e.Payload.Type() != e.Type {
		return &InvalidEventError{Reason: fmt.Sprintf("payload of type %s on %s event", e.Payload.Type(), e.Type)}
	}
	if err := e.Payload.validate(); err != nil {
		return &InvalidEventError{Reason: err.Error()}
	}
	if e.OccurredOn.IsZero() {
		return &InvalidEventError{Reason: "missing occurred_on date"}
	}
	if e.OccurredOn.After(ToDate(today)) {
		return &InvalidEventError{Reason: fmt.Sprintf("event dated %s is in the future", FormatDate(e.OccurredOn))}
	}
	return nil
}

// Fingerprint identifies a logical event: same user, type, exact timestamp and payload.
func Fingerprint(e Event) string {
	d := xxhash.New()
	d.WriteString(e.UserID.String())
	d.WriteString("|")
	d.WriteString(string(e.Type))
	d.WriteString("|")
	d.WriteString(e.OccurredAt.UTC().Format(time.RFC3339Nano))
	d.WriteString("|")
	if e.Payload != nil {
		d.WriteString(e.Payload.canonical())
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

func MarshalPayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

func UnmarshalPayload(t Type, data []byte) (Payload, error) {
	switch t {
	case TypeNutrition:
		var n Nutrition
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("decode nutrition payload: %w", err)
		}
		return n, nil
	case TypeExercise:
		var e Exercise
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode exercise payload: %w", err)
		}
		return e, nil
	case TypeHydration:
		var h Hydration
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("decode hydration payload: %w", err)
		}
		return h, nil
	}
	return nil, fmt.Errorf("unknown activity type %q", t)
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
