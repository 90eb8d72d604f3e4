package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lifesync-engine/internal/db"
	"lifesync-engine/internal/domain"
)

// UserRepository expone las operaciones SQL de cuentas. La lógica de
// credenciales (bcrypt, tokens) vive en el servicio de auth.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash string) (string, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	TouchSignIn(ctx context.Context, userID string) error
}

type PgUserRepository struct {
	pool        *pgxpool.Pool
	authTimeout time.Duration
}

func NewPgUserRepository(pool *pgxpool.Pool, authTimeout time.Duration) *PgUserRepository {
	return &PgUserRepository{pool: pool, authTimeout: authTimeout}
}

func (r *PgUserRepository) Create(ctx context.Context, email, passwordHash string) (string, error) {
	const query = `
		INSERT INTO users (email, password_hash, created_at)
		VALUES ($1, $2, now())
		RETURNING id
	`
	var id string
	err := db.WithRetry(ctx, r.authTimeout, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, query, email, passwordHash).Scan(&id)
	})
	if err != nil {
		return "", wrap("create user", err)
	}
	return id, nil
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT id, email, password_hash, created_at, last_sign_in
		FROM users
		WHERE email = $1
	`
	var u domain.User
	err := db.WithRetry(ctx, r.authTimeout, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, query, email).Scan(
			&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.LastSignIn,
		)
	})
	if err != nil {
		return domain.User{}, wrap("get user by email", err)
	}
	return u, nil
}

func (r *PgUserRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	const query = `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`
	err := db.WithRetry(ctx, r.authTimeout, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, query, userID, passwordHash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return db.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return wrap("update password", err)
	}
	return nil
}

func (r *PgUserRepository) TouchSignIn(ctx context.Context, userID string) error {
	const query = `
		UPDATE users SET last_sign_in = now() WHERE id = $1
	`
	err := db.WithRetry(ctx, r.authTimeout, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, query, userID)
		return err
	})
	if err != nil {
		return wrap("touch sign in", err)
	}
	return nil
}
