package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/toolshare/internal/database"
	"github.com/jackc/pgx/v5"
)

// AllowlistEntry is an email permitted to sign in.
type AllowlistEntry struct {
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// AllowlistService maintains the sign-in allow-list read by the sign-in service.
type AllowlistService struct {
	db *database.DB
}

func NewAllowlistService(db *database.DB) *AllowlistService {
	return &AllowlistService{db: db}
}

// Add is idempotent; an existing entry keeps its original source.
func (s *AllowlistService) Add(ctx context.Context, email, source string) error {
	email = normalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO email_allowlist (email, source)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING
	`, email, source)
	if err != nil {
		return fmt.Errorf("failed to add allow-list entry: %w", err)
	}
	return nil
}

func (s *AllowlistService) Remove(ctx context.Context, email string) (bool, error) {
	result, err := s.db.Pool.Exec(ctx, `DELETE FROM email_allowlist WHERE email = $1`, normalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("failed to remove allow-list entry: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *AllowlistService) IsAllowed(ctx context.Context, email string) (bool, error) {
	var source string
	err := s.db.Pool.QueryRow(ctx, `SELECT source FROM email_allowlist WHERE email = $1`, normalizeEmail(email)).Scan(&source)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check allow-list: %w", err)
	}
	return true, nil
}

func (s *AllowlistService) List(ctx context.Context) ([]AllowlistEntry, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT email, source, created_at FROM email_allowlist ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list allow-list: %w", err)
	}
	defer rows.Close()

	entries := []AllowlistEntry{}
	for rows.Next() {
		var e AllowlistEntry
		if err := rows.Scan(&e.Email, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allow-list entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
