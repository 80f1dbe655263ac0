package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists comparison records in the relational store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts one comparison record. The conflict clause on request_id is
// what makes retried writes safe: the first insert wins, duplicates vanish.
func (s *PostgresStore) Append(ctx context.Context, r ComparisonRecord) error {
	query := `
		INSERT INTO comparison_records (
			request_id, recorded_at, selected, disrupted, agree,
			performance_delta_ns, cross_tenant_block,
			extension_attempted, extension_applied, extension_failed,
			translated_category, client_ip, user_agent,
			legacy_success, legacy_error_kind, legacy_tenant_id,
			legacy_access, legacy_duration_ns, legacy_cache_status,
			enhanced_success, enhanced_error_kind, enhanced_tenant_id,
			enhanced_access, enhanced_duration_ns, enhanced_cache_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (request_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		r.RequestID, r.RecordedAt, r.Selected, r.Disrupted, r.Agree,
		r.PerformanceDelta.Nanoseconds(), r.CrossTenantBlock,
		r.ExtensionAttempted, r.ExtensionApplied, r.ExtensionFailed,
		r.TranslatedCategory, r.ClientIP, r.UserAgent,
		r.Legacy.Success, r.Legacy.ErrorKind, r.Legacy.TenantID,
		r.Legacy.Access, r.Legacy.Duration.Nanoseconds(), r.Legacy.CacheStatus,
		r.Enhanced.Success, r.Enhanced.ErrorKind, r.Enhanced.TenantID,
		r.Enhanced.Access, r.Enhanced.Duration.Nanoseconds(), r.Enhanced.CacheStatus,
	)
	if err != nil {
		return fmt.Errorf("append comparison record: %w", err)
	}
	return nil
}

func (s *PostgresStore) QueryWindow(ctx context.Context, start, end time.Time) ([]ComparisonRecord, error) {
	query := `
		SELECT request_id, recorded_at, selected, disrupted, agree,
		       performance_delta_ns, cross_tenant_block,
		       extension_attempted, extension_applied, extension_failed,
		       translated_category, client_ip, user_agent,
		       legacy_success, legacy_error_kind, legacy_tenant_id,
		       legacy_access, legacy_duration_ns, legacy_cache_status,
		       enhanced_success, enhanced_error_kind, enhanced_tenant_id,
		       enhanced_access, enhanced_duration_ns, enhanced_cache_status
		FROM comparison_records
		WHERE recorded_at >= $1 AND recorded_at < $2
		ORDER BY recorded_at
	`
	rows, err := s.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query comparison window: %w", err)
	}
	defer rows.Close()

	var out []ComparisonRecord
	for rows.Next() {
		var (
			r                ComparisonRecord
			perfDelta        int64
			legacyDuration   int64
			enhancedDuration int64
		)
		err := rows.Scan(
			&r.RequestID, &r.RecordedAt, &r.Selected, &r.Disrupted, &r.Agree,
			&perfDelta, &r.CrossTenantBlock,
			&r.ExtensionAttempted, &r.ExtensionApplied, &r.ExtensionFailed,
			&r.TranslatedCategory, &r.ClientIP, &r.UserAgent,
			&r.Legacy.Success, &r.Legacy.ErrorKind, &r.Legacy.TenantID,
			&r.Legacy.Access, &legacyDuration, &r.Legacy.CacheStatus,
			&r.Enhanced.Success, &r.Enhanced.ErrorKind, &r.Enhanced.TenantID,
			&r.Enhanced.Access, &enhancedDuration, &r.Enhanced.CacheStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("scan comparison record: %w", err)
		}
		r.PerformanceDelta = time.Duration(perfDelta)
		r.Legacy.Duration = time.Duration(legacyDuration)
		r.Legacy.Validator = "legacy"
		r.Enhanced.Duration = time.Duration(enhancedDuration)
		r.Enhanced.Validator = "enhanced"
		r.RecordedAt = r.RecordedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparison records: %w", err)
	}
	return out, nil
}
