//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustdir/internal/directory/models"
	"trustdir/internal/directory/predicate"
	"trustdir/internal/directory/promotion"
	"trustdir/internal/directory/reports"
	"trustdir/internal/directory/store"
	"trustdir/internal/identity/canonical"
	id "trustdir/pkg/domain"
	"trustdir/pkg/platform/sentinel"
	"trustdir/pkg/requestcontext"
	"trustdir/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Now().UTC().Truncate(time.Microsecond))
	err := s.postgres.TruncateTables(s.ctx, "businesses", "applications", "reports", "blacklist")
	s.Require().NoError(err)
}

func newBusiness(name, slug string) *models.Business {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Business{
		ID:        id.NewBusinessID(),
		Identity:  canonical.Normalize(canonical.Identity{Name: name}),
		Slug:      slug,
		Status:    models.BusinessStatusApproved,
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) seedApplication() *models.Application {
	now := time.Now().UTC().Truncate(time.Microsecond)
	app := &models.Application{
		ID: id.NewApplicationID(),
		Identity: canonical.Normalize(canonical.Identity{
			Name:   "Kule Sapanca",
			Handle: "@kulesapanca",
			Phone:  "0543 166 54 54",
		}),
		Status:    models.ApplicationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.CreateApplication(s.ctx, app))
	return app
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresStoreSuite) TestSlugUniqueness() {
	s.Require().NoError(s.store.CreateBusiness(s.ctx, newBusiness("Kule Sapanca", "kule-sapanca")))

	err := s.store.CreateBusiness(s.ctx, newBusiness("Kule Sapanca", "kule-sapanca"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	s.Require().NoError(s.store.CreateBusiness(s.ctx, newBusiness("Kule Sapanca", "kule-sapanca-2")))
	slugs, err := s.store.ListSlugs(s.ctx, "kule-sapanca")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"kule-sapanca", "kule-sapanca-2"}, slugs)
}

func (s *PostgresStoreSuite) TestFindBusinessesWithPredicate() {
	a := newBusiness("Kule Sapanca", "kule-sapanca")
	a.Handle = "kulesapanca"
	a.Phone = "+905431665454"
	b := newBusiness("Göl Evi", "gol-evi")
	b.Website = "golevi.com.tr"
	s.Require().NoError(s.store.CreateBusiness(s.ctx, a))
	s.Require().NoError(s.store.CreateBusiness(s.ctx, b))

	got, err := s.store.FindBusinesses(s.ctx, models.BusinessQuery{
		Filter: predicate.Or(
			predicate.Equals(predicate.FieldHandle, "kulesapanca"),
			predicate.DigitsSuffix(predicate.FieldPhone, "1665454"),
		),
		Status: models.BusinessStatusApproved,
		Order:  models.OrderDefault,
		Limit:  10,
	})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(a.ID, got[0].ID)

	got, err = s.store.FindBusinesses(s.ctx, models.BusinessQuery{
		Filter: predicate.Contains(predicate.FieldWebsite, "golevi"),
		Limit:  10,
	})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("gol-evi", got[0].Slug)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBack() {
	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		if err := s.store.CreateBusiness(ctx, newBusiness("Rolled Back", "rolled-back")); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindBusinessBySlug(s.ctx, "rolled-back")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentAddSupporter verifies the conditional update counts one
// fingerprint once no matter how many requests race.
func (s *PostgresStoreSuite) TestConcurrentAddSupporter() {
	now := time.Now().UTC()
	report := &models.Report{
		ID:        id.NewReportID(),
		Identity:  canonical.Identity{Name: "Sahte Otel", Phone: "+905320001122"},
		Status:    models.ReportStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.CreateReport(s.ctx, report))

	const goroutines = 25
	var wg sync.WaitGroup
	var updates atomic.Int32
	for i := range goroutines {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ok, _, err := s.store.AddSupporter(s.ctx, report.ID, "shared")
			if err == nil && ok {
				updates.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			_, _, _ = s.store.AddSupporter(s.ctx, report.ID, fmt.Sprintf("fp-%d", i))
		}()
	}
	wg.Wait()

	s.Equal(int32(1), updates.Load())
	stored, err := s.store.FindReportByID(s.ctx, report.ID)
	s.Require().NoError(err)
	s.Equal(goroutines+1, stored.SupportCount)
	s.Len(stored.Supporters, stored.SupportCount)

	_, _, err = s.store.AddSupporter(s.ctx, id.NewReportID(), "x")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentApproveCreatesOneBusiness runs the promotion workflow against
// the real unique indexes.
func (s *PostgresStoreSuite) TestConcurrentApproveCreatesOneBusiness() {
	app := s.seedApplication()
	svc, err := promotion.New(s.store, s.store,
		promotion.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	const goroutines = 10
	var wg sync.WaitGroup
	var created atomic.Int32
	errs := make(chan error, goroutines)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Approve(s.ctx, app.ID)
			if err != nil {
				errs <- err
				return
			}
			if out.Created {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	s.Equal(int32(1), created.Load())
	count, err := s.store.CountBusinesses(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	stored, err := s.store.FindApplicationByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.ApplicationStatusApproved, stored.Status)
	s.Require().NotNil(stored.BusinessID)
}

func (s *PostgresStoreSuite) TestEscalateIsAtomic() {
	svc, err := reports.New(s.store, s.store)
	s.Require().NoError(err)

	report, err := svc.Create(s.ctx, &models.CreateReportRequest{
		IdentityInput: models.IdentityInput{Name: "Sahte Otel", Phone: "0532 000 11 22"},
		Description:   "took a deposit and vanished",
		Consent:       true,
	})
	s.Require().NoError(err)

	entry, err := svc.Escalate(s.ctx, report.ID)
	s.Require().NoError(err)
	s.Equal("+905320001122", entry.Phone)

	_, err = s.store.FindReportByID(s.ctx, report.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	found, err := s.store.FindBlacklist(s.ctx, models.BlacklistQuery{
		Filter: predicate.Equals(predicate.FieldPhone, "+905320001122"),
		Limit:  1,
	})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(entry.ID, found[0].ID)
}
