package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an operator account
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (name, login, role, cpf, vessel, vessels, password_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		u.Name,
		u.Login,
		u.Role.String(),
		u.CPF,
		u.Vessel,
		u.Vessels,
		u.PasswordHash,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("login", u.Login), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	u.ID = strconv.FormatInt(id, 10)
	return nil
}

// GetByLogin finds an account by login, case-insensitively
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*entity.User, error) {
	query := `
		SELECT id, name, login, role, cpf, vessel, vessels, password_hash
		FROM users
		WHERE login = ?
	`

	var (
		u    entity.User
		id   int64
		role string
	)
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, login).Scan(
		&id, &u.Name, &u.Login, &role, &u.CPF, &u.Vessel, &u.Vessels, &u.PasswordHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", login, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.ID = strconv.FormatInt(id, 10)
	u.Role = entity.Role(role)
	return &u, nil
}

// Count returns the number of accounts
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (r *UserRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
