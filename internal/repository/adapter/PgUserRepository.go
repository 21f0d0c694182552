package adapter

import (
	"context"
	"errors"
	"strings"
	"time"

	chat "go-messenger/internal/pkg/chat/application/domain"
	repository "go-messenger/internal/repository/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id::text, name, email, image, role, hashed_password, created_at, updated_at`

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

type PgUserRepository struct {
	pool *pgxpool.Pool
}

var _ repository.UserRepository = (*PgUserRepository)(nil)

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*chat.User, error) {
	var (
		u    chat.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Image, &role, &u.HashedPassword, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}
	u.Role = chat.Role(role)
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, user *chat.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = chat.RoleMember
	}
	email := strings.ToLower(strings.TrimSpace(user.EmailAddress()))
	user.Email = nil
	if email != "" {
		user.Email = &email
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat.app_user (id, name, email, image, role, hashed_password, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $7)
	`, user.ID, user.Name, user.Email, user.Image, string(user.Role), user.HashedPassword, user.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicateEmail
	}
	return err
}

func (r *PgUserRepository) FindByID(ctx context.Context, id string) (*chat.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM chat.app_user WHERE id = $1::uuid`, id))
}

func (r *PgUserRepository) FindByIDs(ctx context.Context, ids []string) ([]chat.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM chat.app_user
		WHERE id = ANY($1::text[]::uuid[])
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chat.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		u.HashedPassword = nil
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *PgUserRepository) FindByEmail(ctx context.Context, email string) (*chat.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM chat.app_user WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id string, name string, image *string) (*chat.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE chat.app_user SET name = $2, image = $3, updated_at = now()
		WHERE id = $1::uuid
		RETURNING `+userColumns, id, name, image))
}

func (r *PgUserRepository) UpdateRole(ctx context.Context, id string, role chat.Role) (*chat.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE chat.app_user SET role = $2, updated_at = now()
		WHERE id = $1::uuid
		RETURNING `+userColumns, id, string(role)))
}
