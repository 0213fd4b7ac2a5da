package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/stats"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/internal/xp"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	db *pgxpool.Pool
}

// Connect opens a pool sized for the API and verifies the connection.
func Connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the progression tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (p *Postgres) InUserTx(ctx context.Context, userID uuid.UUID, fn func(tx UserTx) error) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// serializes writers of the same user until commit
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, userID.String()); err != nil {
		return fmt.Errorf("failed to lock user %s: %w", userID, err)
	}

	if err := fn(&pgUserTx{tx: tx, userID: userID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *Postgres) ReadUser(ctx context.Context, userID uuid.UUID, fn func(r UserReader) error) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	return fn(&pgUserTx{tx: tx, userID: userID})
}

func (p *Postgres) ResetInactiveStreaks(ctx context.Context, today time.Time) (int64, error) {
	query := `
	UPDATE streaks
	SET is_active_today = false, updated_at = NOW()
	WHERE is_active_today AND last_activity_date < $1
	`

	result, err := p.db.Exec(ctx, query, activity.ToDate(today))
	if err != nil {
		return 0, fmt.Errorf("failed to reset streaks: %w", err)
	}
	return result.RowsAffected(), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Close() {
	p.db.Close()
}

type pgUserTx struct {
	tx     pgx.Tx
	userID uuid.UUID
}

func (t *pgUserTx) GetStats(ctx context.Context) (stats.UserStats, error) {
	query := `
	SELECT meals_logged, calories_consumed, exercise_sessions, exercise_minutes, calories_burned,
		water_logs, water_ml, nutrition_days, exercise_days, hydration_days
	FROM user_stats
	WHERE user_id = $1
	`

	s := stats.UserStats{UserID: t.userID}
	err := t.tx.QueryRow(ctx, query, t.userID).Scan(
		&s.MealsLogged,
		&s.CaloriesConsumed,
		&s.ExerciseSessions,
		&s.ExerciseMinutes,
		&s.CaloriesBurned,
		&s.WaterLogs,
		&s.WaterMl,
		&s.NutritionDays,
		&s.ExerciseDays,
		&s.HydrationDays,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, nil
		}
		return s, fmt.Errorf("failed to get stats: %w", err)
	}
	return s, nil
}

func (t *pgUserTx) GetStreak(ctx context.Context, st activity.Type) (*streak.Streak, error) {
	query := `
	SELECT streak_type, current_count, longest_count, last_activity_date, is_active_today, updated_at
	FROM streaks
	WHERE user_id = $1 AND streak_type = $2
	`

	s := &streak.Streak{UserID: t.userID}
	err := t.tx.QueryRow(ctx, query, t.userID, st).Scan(
		&s.Type,
		&s.CurrentCount,
		&s.LongestCount,
		&s.LastActivityDate,
		&s.IsActiveToday,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return s, nil
}

func (t *pgUserTx) ListStreaks(ctx context.Context) ([]streak.Streak, error) {
	query := `
	SELECT streak_type, current_count, longest_count, last_activity_date, is_active_today, updated_at
	FROM streaks
	WHERE user_id = $1
	ORDER BY CASE streak_type WHEN 'nutrition' THEN 1 WHEN 'exercise' THEN 2 WHEN 'hydration' THEN 3 ELSE 4 END
	`

	rows, err := t.tx.Query(ctx, query, t.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch streaks: %w", err)
	}
	defer rows.Close()

	var out []streak.Streak
	for rows.Next() {
		s := streak.Streak{UserID: t.userID}
		if err := rows.Scan(&s.Type, &s.CurrentCount, &s.LongestCount, &s.LastActivityDate, &s.IsActiveToday, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *pgUserTx) ListUnlocks(ctx context.Context) (map[string]achievement.Unlock, error) {
	query := `
	SELECT achievement_key, progress_percent, unlocked_at, unlocked_via
	FROM user_achievements
	WHERE user_id = $1
	`

	rows, err := t.tx.Query(ctx, query, t.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch achievements: %w", err)
	}
	defer rows.Close()

	out := make(map[string]achievement.Unlock)
	for rows.Next() {
		u := achievement.Unlock{UserID: t.userID}
		if err := rows.Scan(&u.AchievementKey, &u.ProgressPercent, &u.UnlockedAt, &u.UnlockedVia); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out[u.AchievementKey] = u
	}
	return out, rows.Err()
}

func (t *pgUserTx) ListEvents(ctx context.Context, st activity.Type) ([]activity.Event, error) {
	query := `
	SELECT id, activity_type, occurred_on, occurred_at, payload, fingerprint, applied, recorded_at
	FROM activity_events
	WHERE user_id = $1 AND activity_type = $2
	ORDER BY occurred_on, occurred_at
	`

	rows, err := t.tx.Query(ctx, query, t.userID, st)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	defer rows.Close()

	var out []activity.Event
	for rows.Next() {
		e := activity.Event{UserID: t.userID}
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.OccurredOn, &e.OccurredAt, &payload, &e.Fingerprint, &e.Applied, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.Payload, err = activity.UnmarshalPayload(e.Type, payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgUserTx) TotalXP(ctx context.Context) (uint64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM xp_transactions WHERE user_id = $1`, t.userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum xp: %w", err)
	}
	return uint64(total), nil
}

func (t *pgUserTx) RecentXP(ctx context.Context, limit int) ([]xp.Transaction, error) {
	query := `
	SELECT id, amount, source, reference, description, created_at
	FROM xp_transactions
	WHERE user_id = $1
	ORDER BY created_at DESC, seq DESC
	LIMIT $2
	`

	rows, err := t.tx.Query(ctx, query, t.userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch xp history: %w", err)
	}
	defer rows.Close()

	var out []xp.Transaction
	for rows.Next() {
		tx := xp.Transaction{UserID: t.userID}
		if err := rows.Scan(&tx.ID, &tx.Amount, &tx.Source, &tx.Reference, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan xp transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (t *pgUserTx) InsertEvent(ctx context.Context, e activity.Event) error {
	payload, err := activity.MarshalPayload(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	query := `
	INSERT INTO activity_events (id, user_id, activity_type, occurred_on, occurred_at, payload, fingerprint, applied, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (user_id, fingerprint) DO NOTHING
	`

	result, err := t.tx.Exec(ctx, query, e.ID, t.userID, e.Type, e.OccurredOn, e.OccurredAt, payload, e.Fingerprint, e.Applied, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

func (t *pgUserTx) MarkEventsApplied(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `UPDATE activity_events SET applied = true WHERE user_id = $1 AND id = ANY($2)`, t.userID, ids)
	if err != nil {
		return fmt.Errorf("failed to mark events applied: %w", err)
	}
	return nil
}

func (t *pgUserTx) SaveStreak(ctx context.Context, s streak.Streak) error {
	query := `
	INSERT INTO streaks (user_id, streak_type, current_count, longest_count, last_activity_date, is_active_today, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (user_id, streak_type)
	DO UPDATE SET
		current_count = EXCLUDED.current_count,
		longest_count = EXCLUDED.longest_count,
		last_activity_date = EXCLUDED.last_activity_date,
		is_active_today = EXCLUDED.is_active_today,
		updated_at = NOW()
	`

	_, err := t.tx.Exec(ctx, query, t.userID, s.Type, s.CurrentCount, s.LongestCount, s.LastActivityDate, s.IsActiveToday)
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}

func (t *pgUserTx) SaveStats(ctx context.Context, s stats.UserStats) error {
	query := `
	INSERT INTO user_stats (user_id, meals_logged, calories_consumed, exercise_sessions, exercise_minutes,
		calories_burned, water_logs, water_ml, nutrition_days, exercise_days, hydration_days, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	ON CONFLICT (user_id)
	DO UPDATE SET
		meals_logged = EXCLUDED.meals_logged,
		calories_consumed = EXCLUDED.calories_consumed,
		exercise_sessions = EXCLUDED.exercise_sessions,
		exercise_minutes = EXCLUDED.exercise_minutes,
		calories_burned = EXCLUDED.calories_burned,
		water_logs = EXCLUDED.water_logs,
		water_ml = EXCLUDED.water_ml,
		nutrition_days = EXCLUDED.nutrition_days,
		exercise_days = EXCLUDED.exercise_days,
		hydration_days = EXCLUDED.hydration_days,
		updated_at = NOW()
	`

	_, err := t.tx.Exec(ctx, query, t.userID,
		s.MealsLogged,
		s.CaloriesConsumed,
		s.ExerciseSessions,
		s.ExerciseMinutes,
		s.CaloriesBurned,
		s.WaterLogs,
		s.WaterMl,
		s.NutritionDays,
		s.ExerciseDays,
		s.HydrationDays,
	)
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

func (t *pgUserTx) SaveUnlock(ctx context.Context, u achievement.Unlock) error {
	query := `
	INSERT INTO user_achievements (user_id, achievement_key, progress_percent, unlocked_at, unlocked_via)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, achievement_key)
	DO UPDATE SET
		progress_percent = EXCLUDED.progress_percent,
		unlocked_at = COALESCE(user_achievements.unlocked_at, EXCLUDED.unlocked_at),
		unlocked_via = COALESCE(user_achievements.unlocked_via, EXCLUDED.unlocked_via)
	`

	_, err := t.tx.Exec(ctx, query, t.userID, u.AchievementKey, u.ProgressPercent, u.UnlockedAt, u.UnlockedVia)
	if err != nil {
		return fmt.Errorf("failed to save achievement progress: %w", err)
	}
	return nil
}

func (t *pgUserTx) AppendXP(ctx context.Context, tx xp.Transaction) error {
	query := `
	INSERT INTO xp_transactions (id, user_id, amount, source, reference, description, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := t.tx.Exec(ctx, query, tx.ID, t.userID, tx.Amount, tx.Source, tx.Reference, tx.Description, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append xp transaction: %w", err)
	}
	return nil
}
