package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lifesync-engine/internal/db"
	"lifesync-engine/internal/domain"
)

// ProfileRepository mantiene el puntero al assessment vigente por usuario.
type ProfileRepository interface {
	UpsertProfile(ctx context.Context, userID, assessmentID string) error
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
}

type PgProfileRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func NewPgProfileRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *PgProfileRepository {
	return &PgProfileRepository{pool: pool, queryTimeout: queryTimeout}
}

func (r *PgProfileRepository) UpsertProfile(ctx context.Context, userID, assessmentID string) error {
	const query = `
		INSERT INTO user_profiles (user_id, current_assessment_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET current_assessment_id = EXCLUDED.current_assessment_id,
		    updated_at = now()
	`
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, query, userID, assessmentID)
		return err
	})
	if err != nil {
		return wrap("upsert profile", err)
	}
	return nil
}

func (r *PgProfileRepository) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	const query = `
		SELECT user_id, current_assessment_id, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`
	var p domain.Profile
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.CurrentAssessmentID, &p.UpdatedAt)
	})
	if err != nil {
		return domain.Profile{}, wrap("get profile", err)
	}
	return p, nil
}
