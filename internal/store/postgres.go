package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"vigil/pkg/platform/sentinel"
)

// Postgres backs the store interfaces with the shared relational store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool against the given URL and verifies it.
func NewPostgres(url string) (*Postgres, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Postgres{db: db}, nil
}

// DB exposes the pool so the audit store can share the same connection
// budget.
func (s *Postgres) DB() *sql.DB {
	return s.db
}

// Health checks the underlying connection pool.
func (s *Postgres) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	return s.db.Close()
}

func (s *Postgres) LookupCredential(ctx context.Context, fingerprint string) (*CredentialRecord, error) {
	query := `
		SELECT fingerprint, secret_hash, kind, tenant_id, COALESCE(user_id, ''),
		       access_level, issued_at, expires_at, failure_count, extend_allowed
		FROM credentials
		WHERE fingerprint = $1 AND NOT revoked
	`
	var record CredentialRecord
	err := s.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&record.Fingerprint,
		&record.SecretHash,
		&record.Kind,
		&record.TenantID,
		&record.UserID,
		&record.Access,
		&record.IssuedAt,
		&record.ExpiresAt,
		&record.FailureCount,
		&record.ExtendAllowed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup credential: %w", err)
	}
	return &record, nil
}

func (s *Postgres) LookupTenant(ctx context.Context, tenantID string) (*TenantRecord, error) {
	query := `SELECT id, name, active, extend_allowed FROM tenants WHERE id = $1`
	var tenant TenantRecord
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Active,
		&tenant.ExtendAllowed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup tenant: %w", err)
	}
	return &tenant, nil
}

// ExtendCredential performs the conditional expiry update. The WHERE clause
// carries the expected expiry, so the database serializes concurrent
// extenders: exactly one UPDATE matches, the rest see zero rows and get
// ErrConflict.
func (s *Postgres) ExtendCredential(ctx context.Context, fingerprint string, newExpiry, expectedCurrent time.Time) error {
	query := `
		UPDATE credentials
		SET expires_at = $2
		WHERE fingerprint = $1 AND expires_at = $3 AND NOT revoked
	`
	result, err := s.db.ExecContext(ctx, query, fingerprint, newExpiry, expectedCurrent)
	if err != nil {
		return fmt.Errorf("extend credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("extend credential rows: %w", err)
	}
	if affected == 0 {
		// Either the credential vanished or another instance extended first.
		if _, lookupErr := s.LookupCredential(ctx, fingerprint); lookupErr != nil {
			return lookupErr
		}
		return fmt.Errorf("expiry moved from %s: %w", expectedCurrent.Format(time.RFC3339), sentinel.ErrConflict)
	}
	return nil
}

func (s *Postgres) RevokeCredential(ctx context.Context, fingerprint string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET revoked = TRUE WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke credential rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("credential not found: %w", sentinel.ErrNotFound)
	}
	return nil
}
