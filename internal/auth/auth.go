// Package auth verifies account credentials against the accounts
// table. Passwords are stored as bcrypt hashes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kanoonai/kanoon/internal/log"
)

// Account is a registered user.
type Account struct {
	ID        uuid.UUID
	Email     string
	CreatedAt time.Time
}

// DB is the subset of pgx operations the service needs.
// *pgxpool.Pool satisfies it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service authenticates accounts.
type Service struct {
	db     DB
	logger log.Logger
}

// NewService creates an authentication service.
func NewService(db DB, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{db: db, logger: logger}
}

// Verify checks the credentials. An unknown email and a wrong password
// both return (nil, nil); callers cannot distinguish the two. A
// non-nil error means the check itself failed.
func (s *Service) Verify(ctx context.Context, email, password string) (*Account, error) {
	acct := &Account{Email: email}
	var hash string
	err := s.db.QueryRow(ctx,
		`SELECT id, password_hash, created_at FROM accounts WHERE email = $1`,
		email,
	).Scan(&acct.ID, &hash, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		s.logger.Debug("password mismatch", "email", email)
		return nil, nil
	}
	return acct, nil
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	acct := &Account{ID: uuid.New(), Email: email}
	err = s.db.QueryRow(ctx,
		`INSERT INTO accounts (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
		acct.ID, email, string(hash),
	).Scan(&acct.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	s.logger.Info("account created", "email", email)
	return acct, nil
}
