package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kafkasder-git/panel/internal/auth"
)

var _ auth.Store = (*Store)(nil)

func (s *Store) Users(context.Context) auth.UserStore {
	return &pgUsers{db: s.db}
}

func (s *Store) RefreshTokens(context.Context) auth.RefreshTokenStore {
	return &pgRefresh{db: s.db}
}

type pgUsers struct {
	db *sql.DB
}

func (u *pgUsers) Create(ctx context.Context, user *auth.User) error {
	_, err := u.db.ExecContext(ctx, `
		insert into users (id, email, full_name, password_hash, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.FullName, user.PasswordHash, user.Status, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (u *pgUsers) Find(ctx context.Context, id string) (*auth.User, error) {
	return u.scanOne(u.db.QueryRowContext(ctx, `
		select id, email, full_name, password_hash, status, created_at, updated_at
		from users
		where id = $1
	`, id))
}

func (u *pgUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return u.scanOne(u.db.QueryRowContext(ctx, `
		select id, email, full_name, password_hash, status, created_at, updated_at
		from users
		where email = $1
	`, email))
}

func (u *pgUsers) scanOne(row *sql.Row) (*auth.User, error) {
	var user auth.User
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash,
		&user.Status, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *pgUsers) Roles(ctx context.Context, userID string) ([]string, error) {
	rows, err := u.db.QueryContext(ctx, `
		select role
		from user_roles
		where user_id = $1
		order by role
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

type pgRefresh struct {
	db *sql.DB
}

func (r *pgRefresh) Create(ctx context.Context, tok *auth.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, session_id, token_hash, expires_at, created_at, revoked)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, tok.ID, tok.UserID, tok.SessionID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt, tok.Revoked)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (r *pgRefresh) Find(ctx context.Context, id string) (*auth.RefreshToken, error) {
	var tok auth.RefreshToken
	err := r.db.QueryRowContext(ctx, `
		select id, user_id, session_id, token_hash, expires_at, created_at, revoked
		from refresh_tokens
		where id = $1
	`, id).Scan(&tok.ID, &tok.UserID, &tok.SessionID, &tok.TokenHash,
		&tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (r *pgRefresh) MarkRevoked(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		update refresh_tokens set revoked = true where id = $1
	`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (r *pgRefresh) MarkRevokedByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		update refresh_tokens set revoked = true where user_id = $1 and not revoked
	`, userID)
	return err
}
