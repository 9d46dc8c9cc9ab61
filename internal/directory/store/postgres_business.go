package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trustdir/internal/directory/models"
	"trustdir/internal/directory/predicate"
	id "trustdir/pkg/domain"
)

const businessColumns = `id, name, slug, handle, profile_url, website, phone, type, address, city,
	district, description, summary, features, verified, status, rating, external_rating,
	review_count, application_id, created_at, updated_at`

// BusinessColumns maps predicate fields to businesses columns.
var BusinessColumns = predicate.Columns{
	predicate.FieldName:        "name",
	predicate.FieldType:        "type",
	predicate.FieldSlug:        "slug",
	predicate.FieldHandle:      "handle",
	predicate.FieldProfileURL:  "profile_url",
	predicate.FieldWebsite:     "website",
	predicate.FieldPhone:       "phone",
	predicate.FieldAddress:     "address",
	predicate.FieldCity:        "city",
	predicate.FieldDistrict:    "district",
	predicate.FieldDescription: "description",
	predicate.FieldSummary:     "summary",
	predicate.FieldFeatures:    "array_to_string(features, ' ')",
}

var businessOrderBy = map[models.Order]string{
	models.OrderDefault: "verified DESC, created_at DESC",
	models.OrderRating:  "COALESCE(NULLIF(rating, 0), external_rating) DESC, review_count DESC, verified DESC, created_at DESC",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBusiness(row rowScanner) (*models.Business, error) {
	var b models.Business
	var appID uuid.NullUUID
	var status string
	err := row.Scan(
		(*uuid.UUID)(&b.ID), &b.Name, &b.Slug, &b.Handle, &b.ProfileURL, &b.Website, &b.Phone,
		&b.Type, &b.Address, &b.City, &b.District, &b.Description, &b.Summary,
		pq.Array(&b.Features), &b.Verified, &status, &b.Rating, &b.ExternalRating,
		&b.ReviewCount, &appID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = models.BusinessStatus(status)
	if appID.Valid {
		linked := id.ApplicationID(appID.UUID)
		b.ApplicationID = &linked
	}
	return &b, nil
}

func nullableAppID(appID *id.ApplicationID) uuid.NullUUID {
	if appID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*appID), Valid: true}
}

func features(f []string) any {
	if f == nil {
		f = []string{}
	}
	return pq.Array(f)
}

// CreateBusiness inserts b. A taken slug or application link returns
// sentinel.ErrAlreadyUsed and leaves any open transaction usable.
func (s *PostgresStore) CreateBusiness(ctx context.Context, b *models.Business) error {
	query := `
		INSERT INTO businesses (` + businessColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	return s.withSavepoint(ctx, "create_business", func() error {
		_, err := s.exec(ctx).ExecContext(ctx, query,
			b.ID, b.Name, b.Slug, b.Handle, b.ProfileURL, b.Website, b.Phone,
			b.Type, b.Address, b.City, b.District, b.Description, b.Summary,
			features(b.Features), b.Verified, string(b.Status), b.Rating, b.ExternalRating,
			b.ReviewCount, nullableAppID(b.ApplicationID), b.CreatedAt, b.UpdatedAt,
		)
		return translateWriteErr("create business", err)
	})
}

func (s *PostgresStore) UpdateBusiness(ctx context.Context, b *models.Business) error {
	query := `
		UPDATE businesses SET
			name = $2, slug = $3, handle = $4, profile_url = $5, website = $6, phone = $7,
			type = $8, address = $9, city = $10, district = $11, description = $12, summary = $13,
			features = $14, verified = $15, status = $16, rating = $17, external_rating = $18,
			review_count = $19, application_id = $20, updated_at = $21
		WHERE id = $1
	`
	var res sql.Result
	err := s.withSavepoint(ctx, "update_business", func() error {
		var err error
		res, err = s.exec(ctx).ExecContext(ctx, query,
			b.ID, b.Name, b.Slug, b.Handle, b.ProfileURL, b.Website, b.Phone,
			b.Type, b.Address, b.City, b.District, b.Description, b.Summary,
			features(b.Features), b.Verified, string(b.Status), b.Rating, b.ExternalRating,
			b.ReviewCount, nullableAppID(b.ApplicationID), b.UpdatedAt,
		)
		return translateWriteErr("update business", err)
	})
	if err != nil {
		return err
	}
	return requireAffected("update business", res)
}

func (s *PostgresStore) findBusinessWhere(ctx context.Context, op, where string, arg any) (*models.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE ` + where + ` ORDER BY created_at, id LIMIT 1`
	b, err := scanBusiness(s.exec(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, notFoundOr(op, err)
	}
	return b, nil
}

func (s *PostgresStore) FindBusinessByID(ctx context.Context, businessID id.BusinessID) (*models.Business, error) {
	return s.findBusinessWhere(ctx, "find business by id", "id = $1", businessID)
}

func (s *PostgresStore) FindBusinessBySlug(ctx context.Context, slug string) (*models.Business, error) {
	return s.findBusinessWhere(ctx, "find business by slug", "slug = $1", slug)
}

func (s *PostgresStore) FindBusinessByHandle(ctx context.Context, handle string) (*models.Business, error) {
	return s.findBusinessWhere(ctx, "find business by handle", "handle <> '' AND lower(handle) = lower($1)", handle)
}

func (s *PostgresStore) FindBusinessByPhone(ctx context.Context, phone string) (*models.Business, error) {
	return s.findBusinessWhere(ctx, "find business by phone", "phone <> '' AND phone = $1", phone)
}

func (s *PostgresStore) FindBusinessByApplication(ctx context.Context, appID id.ApplicationID) (*models.Business, error) {
	return s.findBusinessWhere(ctx, "find business by application", "application_id = $1", appID)
}

// ListSlugs returns every slug equal to base or shaped like base-<anything>.
func (s *PostgresStore) ListSlugs(ctx context.Context, base string) ([]string, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT slug FROM businesses WHERE slug = $1 OR slug LIKE $2 ESCAPE '\'`,
		base, predicate.EscapeLike(base)+"-%",
	)
	if err != nil {
		return nil, fmt.Errorf("list slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// FindBusinesses lists businesses matching q, ordered and bounded.
func (s *PostgresStore) FindBusinesses(ctx context.Context, q models.BusinessQuery) ([]*models.Business, error) {
	where, args := predicate.ToSQL(q.Filter, BusinessColumns, 0)
	clauses := []string{where}
	if q.Status != "" {
		args = append(args, string(q.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	orderBy, ok := businessOrderBy[q.Order]
	if !ok {
		orderBy = businessOrderBy[models.OrderDefault]
	}
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY ` + orderBy
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find businesses: %w", err)
	}
	defer rows.Close()

	var out []*models.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountBusinesses(ctx context.Context) (int, error) {
	var n int
	if err := s.exec(ctx).QueryRowContext(ctx, `SELECT count(*) FROM businesses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count businesses: %w", err)
	}
	return n, nil
}
