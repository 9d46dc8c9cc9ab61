package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"trustdir/internal/directory/models"
	id "trustdir/pkg/domain"
)

const applicationColumns = `id, name, handle, profile_url, website, phone, type, address, city, district,
	description, submitter_name, submitter_email, submitter_phone, submitter_ip, status,
	business_id, rejection_reason, decided_at, created_at, updated_at`

func scanApplication(row rowScanner) (*models.Application, error) {
	var a models.Application
	var businessID uuid.NullUUID
	var decidedAt sql.NullTime
	var status string
	err := row.Scan(
		(*uuid.UUID)(&a.ID), &a.Name, &a.Handle, &a.ProfileURL, &a.Website, &a.Phone,
		&a.Type, &a.Address, &a.City, &a.District, &a.Description,
		&a.SubmitterName, &a.SubmitterEmail, &a.SubmitterPhone, &a.SubmitterIP, &status,
		&businessID, &a.RejectionReason, &decidedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = models.ApplicationStatus(status)
	if businessID.Valid {
		linked := id.BusinessID(businessID.UUID)
		a.BusinessID = &linked
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		a.DecidedAt = &t
	}
	return &a, nil
}

func nullableBusinessID(businessID *id.BusinessID) uuid.NullUUID {
	if businessID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*businessID), Valid: true}
}

func (s *PostgresStore) CreateApplication(ctx context.Context, a *models.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err := s.exec(ctx).ExecContext(ctx, query,
		a.ID, a.Name, a.Handle, a.ProfileURL, a.Website, a.Phone,
		a.Type, a.Address, a.City, a.District, a.Description,
		a.SubmitterName, a.SubmitterEmail, a.SubmitterPhone, a.SubmitterIP, string(a.Status),
		nullableBusinessID(a.BusinessID), a.RejectionReason, a.DecidedAt, a.CreatedAt, a.UpdatedAt,
	)
	return translateWriteErr("create application", err)
}

func (s *PostgresStore) FindApplicationByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	a, err := scanApplication(s.exec(ctx).QueryRowContext(ctx, query, appID))
	if err != nil {
		return nil, notFoundOr("find application", err)
	}
	return a, nil
}

// FindApplicationForUpdate loads the application and, inside a
// transaction, row-locks it until commit.
func (s *PostgresStore) FindApplicationForUpdate(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 FOR UPDATE`
	a, err := scanApplication(s.exec(ctx).QueryRowContext(ctx, query, appID))
	if err != nil {
		return nil, notFoundOr("find application for update", err)
	}
	return a, nil
}

func (s *PostgresStore) UpdateApplication(ctx context.Context, a *models.Application) error {
	query := `
		UPDATE applications SET
			name = $2, handle = $3, profile_url = $4, website = $5, phone = $6, type = $7,
			address = $8, city = $9, district = $10, description = $11, status = $12,
			business_id = $13, rejection_reason = $14, decided_at = $15, updated_at = $16
		WHERE id = $1
	`
	res, err := s.exec(ctx).ExecContext(ctx, query,
		a.ID, a.Name, a.Handle, a.ProfileURL, a.Website, a.Phone, a.Type,
		a.Address, a.City, a.District, a.Description, string(a.Status),
		nullableBusinessID(a.BusinessID), a.RejectionReason, a.DecidedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return requireAffected("update application", res)
}
