package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trustdir/internal/directory/models"
	"trustdir/internal/directory/predicate"
	id "trustdir/pkg/domain"
	"trustdir/pkg/platform/sentinel"
)

const reportColumns = `id, name, handle, profile_url, website, phone, description, reporter_ip,
	consent, status, support_count, supporters, created_at, updated_at`

func scanReport(row rowScanner) (*models.Report, error) {
	var r models.Report
	var status string
	err := row.Scan(
		(*uuid.UUID)(&r.ID), &r.Name, &r.Handle, &r.ProfileURL, &r.Website, &r.Phone,
		&r.Description, &r.ReporterIP, &r.Consent, &status, &r.SupportCount,
		pq.Array(&r.Supporters), &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = models.ReportStatus(status)
	return &r, nil
}

func (s *PostgresStore) CreateReport(ctx context.Context, r *models.Report) error {
	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	supporters := r.Supporters
	if supporters == nil {
		supporters = []string{}
	}
	_, err := s.exec(ctx).ExecContext(ctx, query,
		r.ID, r.Name, r.Handle, r.ProfileURL, r.Website, r.Phone,
		r.Description, r.ReporterIP, r.Consent, string(r.Status), len(supporters),
		pq.Array(supporters), r.CreatedAt, r.UpdatedAt,
	)
	return translateWriteErr("create report", err)
}

func (s *PostgresStore) FindReportByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	r, err := scanReport(s.exec(ctx).QueryRowContext(ctx, query, reportID))
	if err != nil {
		return nil, notFoundOr("find report", err)
	}
	return r, nil
}

// UpdateReport writes identity, description and status. Supporters are
// only ever changed by AddSupporter.
func (s *PostgresStore) UpdateReport(ctx context.Context, r *models.Report) error {
	query := `
		UPDATE reports SET
			name = $2, handle = $3, profile_url = $4, website = $5, phone = $6,
			description = $7, status = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.exec(ctx).ExecContext(ctx, query,
		r.ID, r.Name, r.Handle, r.ProfileURL, r.Website, r.Phone,
		r.Description, string(r.Status), r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return requireAffected("update report", res)
}

func (s *PostgresStore) DeleteReport(ctx context.Context, reportID id.ReportID) error {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, reportID)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return requireAffected("delete report", res)
}

// AddSupporter appends fingerprint and increments the count in one
// conditional statement. When the fingerprint is already present nothing
// is written and the current count is returned with updated=false.
func (s *PostgresStore) AddSupporter(ctx context.Context, reportID id.ReportID, fingerprint string) (bool, int, error) {
	ex := s.exec(ctx)
	var count int
	err := ex.QueryRowContext(ctx, `
		UPDATE reports
		SET supporters = array_append(supporters, $2),
			support_count = support_count + 1
		WHERE id = $1 AND NOT ($2 = ANY(supporters))
		RETURNING support_count
	`, reportID, fingerprint).Scan(&count)
	if err == nil {
		return true, count, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, 0, fmt.Errorf("add supporter: %w", err)
	}

	err = ex.QueryRowContext(ctx, `SELECT support_count FROM reports WHERE id = $1`, reportID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, fmt.Errorf("add supporter: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return false, 0, fmt.Errorf("read support count: %w", err)
	}
	return false, count, nil
}

// BlacklistColumns maps predicate fields to blacklist columns.
var BlacklistColumns = predicate.Columns{
	predicate.FieldName:        "name",
	predicate.FieldHandle:      "handle",
	predicate.FieldProfileURL:  "profile_url",
	predicate.FieldWebsite:     "website",
	predicate.FieldPhone:       "phone",
	predicate.FieldDescription: "description",
}

const blacklistColumns = `id, name, handle, profile_url, website, phone, description, created_at, updated_at`

func scanBlacklist(row rowScanner) (*models.Blacklist, error) {
	var b models.Blacklist
	err := row.Scan(
		(*uuid.UUID)(&b.ID), &b.Name, &b.Handle, &b.ProfileURL, &b.Website, &b.Phone,
		&b.Description, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) CreateBlacklist(ctx context.Context, b *models.Blacklist) error {
	query := `INSERT INTO blacklist (` + blacklistColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.exec(ctx).ExecContext(ctx, query,
		b.ID, b.Name, b.Handle, b.ProfileURL, b.Website, b.Phone, b.Description, b.CreatedAt, b.UpdatedAt,
	)
	return translateWriteErr("create blacklist entry", err)
}

func (s *PostgresStore) FindBlacklistByID(ctx context.Context, blID id.BlacklistID) (*models.Blacklist, error) {
	query := `SELECT ` + blacklistColumns + ` FROM blacklist WHERE id = $1`
	b, err := scanBlacklist(s.exec(ctx).QueryRowContext(ctx, query, blID))
	if err != nil {
		return nil, notFoundOr("find blacklist entry", err)
	}
	return b, nil
}

// FindBlacklist lists entries matching q, newest first.
func (s *PostgresStore) FindBlacklist(ctx context.Context, q models.BlacklistQuery) ([]*models.Blacklist, error) {
	where, args := predicate.ToSQL(q.Filter, BlacklistColumns, 0)
	query := `SELECT ` + blacklistColumns + ` FROM blacklist WHERE ` + where + ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find blacklist: %w", err)
	}
	defer rows.Close()

	var out []*models.Blacklist
	for rows.Next() {
		b, err := scanBlacklist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
