// Package postgres backs the history store with PostgreSQL. Verdict events
// are written to the outbox table in the same transaction as the activity,
// so the dispatcher can deliver them without dual-write races.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/events"
	"github.com/nieko-nera/core/internal/history"
	"github.com/nieko-nera/core/internal/observability"
)

// Store provides Postgres-backed persistence for activities, users and
// their outbox events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const activityColumns = `activity_id, user_id, name, description, sport_type, gear, commute, trainer,
        distance_km, elevation_gain_m, speed_avg_kmh, speed_max_kmh, pace_avg_sec, pace_max_sec,
        watts_avg, watts_max, hr_avg, hr_max, cadence_avg, calories, moving_time_sec, total_time_sec,
        date_start, date_end, utc_start_offset_min,
        location_start_lat, location_start_lon, location_end_lat, location_end_lon, polyline, new_records`

// SaveActivity implements history.Store.
func (s *Store) SaveActivity(ctx context.Context, activity *domain.Activity, verdicts []events.RecipeEvaluated) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	insertActivity := `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31)
        ON CONFLICT (activity_id) DO NOTHING`

	tag, err := tx.Exec(ctx, insertActivity,
		activity.ID,
		activity.UserID,
		activity.Name,
		activity.Description,
		activity.SportType,
		activity.Gear,
		activity.Commute,
		activity.Trainer,
		activity.Distance,
		activity.ElevationGain,
		activity.SpeedAvg,
		activity.SpeedMax,
		activity.PaceAvg,
		activity.PaceMax,
		activity.WattsAvg,
		activity.WattsMax,
		activity.HeartrateAvg,
		activity.HeartrateMax,
		activity.CadenceAvg,
		activity.Calories,
		activity.MovingTime,
		activity.TotalTime,
		activity.DateStart,
		nullIfZeroTime(activity.DateEnd),
		activity.UTCStartOffset,
		latOrNil(activity.LocationStart),
		lonOrNil(activity.LocationStart),
		latOrNil(activity.LocationEnd),
		lonOrNil(activity.LocationEnd),
		activity.Polyline,
		emptyIfNil(activity.NewRecords),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = history.ErrDuplicateActivity
		return err
	}

	for _, verdict := range verdicts {
		if err = s.insertOutbox(ctx, tx, activity, verdict); err != nil {
			return err
		}
	}

	advanceUser := `INSERT INTO users (user_id, last_activity_at)
        VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE
            SET last_activity_at = GREATEST(users.last_activity_at, EXCLUDED.last_activity_at),
                updated_at = NOW()`
	if _, err = tx.Exec(ctx, advanceUser, activity.UserID, activity.DateStart); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}

	observability.RecordActivitySaved(activity.DateStart)
	return nil
}

func (s *Store) insertOutbox(ctx context.Context, tx pgx.Tx, activity *domain.Activity, verdict events.RecipeEvaluated) error {
	body, err := json.Marshal(verdict)
	if err != nil {
		return err
	}

	dedupeKey := fmt.Sprintf("%d:%s:%s", activity.ID, events.TypeRecipeEvaluated, verdict.RecipeID)

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		activity.UserID,
		"activity",
		fmt.Sprintf("%d", activity.ID),
		events.TypeRecipeEvaluated,
		events.TopicAutomationEvents,
		events.SubjectRecipeEvaluated,
		activity.UserID,
		body,
		dedupeKey,
	)
	return err
}

// GetActivity implements history.Store.
func (s *Store) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE activity_id=$1`

	row := s.pool.QueryRow(ctx, query, id)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}

// ListRange implements history.Store.
func (s *Store) ListRange(ctx context.Context, userID string, from time.Time, to *time.Time) ([]domain.Activity, error) {
	args := []interface{}{userID, from}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1 AND date_start >= $2`
	if to != nil {
		query += ` AND date_start < $3`
		args = append(args, *to)
	}
	query += ` ORDER BY date_start ASC, activity_id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, scanErr := scanActivity(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetUser implements history.Store.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.UserData, error) {
	const query = `SELECT user_id, units, music_provider, music_external_id, music_access_token, last_activity_at
        FROM users WHERE user_id=$1`

	var (
		user     domain.UserData
		units    string
		provider *string
		extID    *string
		token    *string
		lastAt   *time.Time
	)
	row := s.pool.QueryRow(ctx, query, id)
	if err := row.Scan(&user.ID, &units, &provider, &extID, &token, &lastAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	user.Preferences.Units = domain.UnitSystem(units)
	if provider != nil && *provider != "" {
		user.Music = &domain.MusicAccount{Provider: *provider}
		if extID != nil {
			user.Music.ExternalID = *extID
		}
		if token != nil {
			user.Music.AccessToken = *token
		}
	}
	if lastAt != nil {
		user.LastActivityAt = lastAt.UTC()
	}
	return &user, nil
}

// SaveUser implements history.Store.
func (s *Store) SaveUser(ctx context.Context, user domain.UserData) error {
	units := string(user.Preferences.Units)
	if units == "" {
		units = string(domain.UnitsMetric)
	}

	var provider, extID, token interface{}
	if user.Music != nil {
		provider = nullIfEmpty(user.Music.Provider)
		extID = nullIfEmpty(user.Music.ExternalID)
		token = nullIfEmpty(user.Music.AccessToken)
	}

	const stmt = `INSERT INTO users (user_id, units, music_provider, music_external_id, music_access_token, last_activity_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (user_id) DO UPDATE
            SET units = EXCLUDED.units,
                music_provider = EXCLUDED.music_provider,
                music_external_id = EXCLUDED.music_external_id,
                music_access_token = EXCLUDED.music_access_token,
                last_activity_at = GREATEST(users.last_activity_at, EXCLUDED.last_activity_at),
                updated_at = NOW()`

	_, err := s.pool.Exec(ctx, stmt, user.ID, units, provider, extID, token, nullIfZeroTime(user.LastActivityAt))
	return err
}

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var (
		activity                           domain.Activity
		dateEnd                            *time.Time
		startLat, startLon, endLat, endLon *float64
	)
	if err := row.Scan(
		&activity.ID,
		&activity.UserID,
		&activity.Name,
		&activity.Description,
		&activity.SportType,
		&activity.Gear,
		&activity.Commute,
		&activity.Trainer,
		&activity.Distance,
		&activity.ElevationGain,
		&activity.SpeedAvg,
		&activity.SpeedMax,
		&activity.PaceAvg,
		&activity.PaceMax,
		&activity.WattsAvg,
		&activity.WattsMax,
		&activity.HeartrateAvg,
		&activity.HeartrateMax,
		&activity.CadenceAvg,
		&activity.Calories,
		&activity.MovingTime,
		&activity.TotalTime,
		&activity.DateStart,
		&dateEnd,
		&activity.UTCStartOffset,
		&startLat,
		&startLon,
		&endLat,
		&endLon,
		&activity.Polyline,
		&activity.NewRecords,
	); err != nil {
		return nil, err
	}

	activity.DateStart = activity.DateStart.UTC()
	if dateEnd != nil {
		activity.DateEnd = dateEnd.UTC()
	}
	if startLat != nil && startLon != nil {
		activity.LocationStart = &domain.Coordinates{Lat: *startLat, Lon: *startLon}
	}
	if endLat != nil && endLon != nil {
		activity.LocationEnd = &domain.Coordinates{Lat: *endLat, Lon: *endLon}
	}
	return &activity, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullIfZeroTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func latOrNil(c *domain.Coordinates) interface{} {
	if c == nil {
		return nil
	}
	return c.Lat
}

func lonOrNil(c *domain.Coordinates) interface{} {
	if c == nil {
		return nil
	}
	return c.Lon
}
