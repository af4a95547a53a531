package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reservation_app/internal/common"
	"reservation_app/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// FindConflict reports which unique field ("username", "email" or
	// "phone_number") is already taken by a user other than excludeID.
	// Empty values are not checked. Returns "" when nothing collides.
	FindConflict(ctx context.Context, username, email, phone string, excludeID int64) (string, error)
	Search(ctx context.Context, term string) ([]model.User, error)
	List(ctx context.Context) ([]model.User, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
	// UpdateProfile sets the non-nil fields of upd and nothing else. A new
	// email clears email_verified in the same write.
	UpdateProfile(ctx context.Context, id int64, upd model.ProfileUpdate) (*model.User, error)
	SetRole(ctx context.Context, id int64, role model.Role) (*model.User, error)
	SetActive(ctx context.Context, id int64, active bool) (*model.User, error)
	SetPassword(ctx context.Context, id int64, hashedPassword string) error
	// MarkEmailVerified flags the address as verified only while it is still
	// the user's email; otherwise it returns ErrNotFound.
	MarkEmailVerified(ctx context.Context, id int64, email string) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, email, first_name, last_name, phone_number, hashed_password,
	role, active, email_verified, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.PhoneNumber,
		&user.HashedPassword, &user.Role, &user.Active, &user.EmailVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (username, email, first_name, last_name, phone_number, hashed_password, role, active, email_verified)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FirstName, user.LastName, user.PhoneNumber,
		user.HashedPassword, user.Role, user.Active, user.EmailVerified,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgUserRepository.Create: %w", common.TranslatePgError(err))
	}
	return nil
}

func (r *pgUserRepository) findOne(ctx context.Context, op, where string, arg any) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, "FindByID", "id = $1", id)
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "FindByEmail", "email = $1", email)
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "FindByUsername", "username = $1", username)
}

func (r *pgUserRepository) FindConflict(ctx context.Context, username, email, phone string, excludeID int64) (string, error) {
	query := `SELECT username, email, phone_number FROM users
	          WHERE id <> $4 AND (
	                ($1 <> '' AND username = $1) OR
	                ($2 <> '' AND email = $2) OR
	                ($3 <> '' AND phone_number = $3))
	          LIMIT 1`
	var u, e, p string
	err := r.db.QueryRowContext(ctx, query, username, email, phone, excludeID).Scan(&u, &e, &p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("pgUserRepository.FindConflict: %w", err)
	}
	return conflictField(username, email, phone, u, e, p), nil
}

func (r *pgUserRepository) Search(ctx context.Context, term string) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	          WHERE username ILIKE $1 OR email ILIKE $1 OR first_name ILIKE $1 OR last_name ILIKE $1
	          ORDER BY id`
	return r.list(ctx, "Search", query, likePattern(term))
}

func (r *pgUserRepository) List(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, "List", `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (r *pgUserRepository) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND active ORDER BY last_name, first_name, id`
	return r.list(ctx, "ListByRole", query, role)
}

func (r *pgUserRepository) list(ctx context.Context, op, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.%s scan: %w", op, err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *pgUserRepository) UpdateProfile(ctx context.Context, id int64, upd model.ProfileUpdate) (*model.User, error) {
	query := `UPDATE users
	          SET first_name = COALESCE($2, first_name),
	              last_name = COALESCE($3, last_name),
	              username = COALESCE($4, username),
	              email_verified = email_verified AND ($5::text IS NULL OR $5::text = email),
	              email = COALESCE($5, email),
	              phone_number = COALESCE($6, phone_number),
	              updated_at = NOW()
	          WHERE id = $1
	          RETURNING ` + userColumns
	return r.updateOne(ctx, "UpdateProfile", query,
		id, upd.FirstName, upd.LastName, upd.Username, upd.Email, upd.PhoneNumber)
}

func (r *pgUserRepository) SetRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return r.updateOne(ctx, "SetRole", query, id, role)
}

func (r *pgUserRepository) SetActive(ctx context.Context, id int64, active bool) (*model.User, error) {
	query := `UPDATE users SET active = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return r.updateOne(ctx, "SetActive", query, id, active)
}

func (r *pgUserRepository) SetPassword(ctx context.Context, id int64, hashedPassword string) error {
	query := `UPDATE users SET hashed_password = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	_, err := r.updateOne(ctx, "SetPassword", query, id, hashedPassword)
	return err
}

func (r *pgUserRepository) MarkEmailVerified(ctx context.Context, id int64, email string) (*model.User, error) {
	query := `UPDATE users SET email_verified = TRUE, updated_at = NOW()
	          WHERE id = $1 AND email = $2
	          RETURNING ` + userColumns
	return r.updateOne(ctx, "MarkEmailVerified", query, id, email)
}

// updateOne runs a single-row UPDATE ... RETURNING userColumns.
func (r *pgUserRepository) updateOne(ctx context.Context, op, query string, args ...any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, common.TranslatePgError(err))
	}
	return user, nil
}

func (r *pgUserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgUserRepository.Delete: %w", common.TranslatePgError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgUserRepository.Delete: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func conflictField(username, email, phone, takenUsername, takenEmail, takenPhone string) string {
	switch {
	case username != "" && username == takenUsername:
		return "username"
	case email != "" && email == takenEmail:
		return "email"
	case phone != "" && phone == takenPhone:
		return "phone_number"
	}
	return ""
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
