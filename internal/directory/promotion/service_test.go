package promotion

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trustdir/internal/directory/metrics"
	"trustdir/internal/directory/models"
	"trustdir/internal/directory/promotion/mocks"
	"trustdir/internal/directory/store"
	"trustdir/internal/identity/canonical"
	id "trustdir/pkg/domain"
	dErrors "trustdir/pkg/domain-errors"
	"trustdir/pkg/platform/events"
	"trustdir/pkg/platform/sentinel"
	"trustdir/pkg/requestcontext"
)

// =============================================================================
// Promotion Workflow Test Suite
// =============================================================================
// Runs the workflow against the in-memory store, which provides the same
// all-or-nothing unit of work as Postgres. Race behaviour against the real
// unique index is covered by the store integration tests.

type PromotionSuite struct {
	suite.Suite
	store     *store.InMemory
	publisher *events.Memory
	service   *Service
	ctx       context.Context
	now       time.Time
}

func TestPromotionSuite(t *testing.T) {
	suite.Run(t, new(PromotionSuite))
}

func (s *PromotionSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.publisher = events.NewMemory()
	s.now = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.service = s.newService(s.store)
}

func (s *PromotionSuite) newService(st Store) *Service {
	svc, err := New(st, s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithPublisher(s.publisher),
	)
	s.Require().NoError(err)
	return svc
}

func (s *PromotionSuite) seedApplication(name, handle, phone string) *models.Application {
	app := &models.Application{
		ID: id.NewApplicationID(),
		Identity: canonical.Normalize(canonical.Identity{
			Name:   name,
			Handle: handle,
			Phone:  phone,
		}),
		City:      "Sakarya",
		Status:    models.ApplicationStatusPending,
		CreatedAt: s.now.Add(-time.Hour),
		UpdatedAt: s.now.Add(-time.Hour),
	}
	s.Require().NoError(s.store.CreateApplication(s.ctx, app))
	return app
}

func (s *PromotionSuite) seedBusiness(slug, handle string, linkedTo *id.ApplicationID) *models.Business {
	b := &models.Business{
		ID:            id.NewBusinessID(),
		Identity:      canonical.Identity{Name: slug, Handle: handle},
		Slug:          slug,
		Status:        models.BusinessStatusApproved,
		ApplicationID: linkedTo,
		CreatedAt:     s.now.Add(-24 * time.Hour),
		UpdatedAt:     s.now.Add(-24 * time.Hour),
	}
	s.Require().NoError(s.store.CreateBusiness(s.ctx, b))
	return b
}

func (s *PromotionSuite) businessCount() int {
	n, err := s.store.CountBusinesses(s.ctx)
	s.Require().NoError(err)
	return n
}

func (s *PromotionSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.store)
		s.ErrorContains(err, "promotion store is required")
	})
	s.Run("nil unit of work returns error", func() {
		_, err := New(s.store, nil)
		s.ErrorContains(err, "unit of work is required")
	})
}

func (s *PromotionSuite) TestApproveCreatesBusiness() {
	app := s.seedApplication("Kule Sapanca", "@KuleSapanca", "0543 166 54 54")

	out, err := s.service.Approve(s.ctx, app.ID)
	s.Require().NoError(err)
	s.True(out.Created)
	s.False(out.Updated)

	b := out.Business
	s.Equal("kule-sapanca", b.Slug)
	s.Equal("kulesapanca", b.Handle)
	s.Equal("+905431665454", b.Phone)
	s.Equal("Sakarya", b.City)
	s.True(b.Verified)
	s.Equal(models.BusinessStatusApproved, b.Status)
	s.True(b.LinkedTo(app.ID))
	s.Equal(s.now, b.CreatedAt)

	stored, err := s.store.FindApplicationByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.ApplicationStatusApproved, stored.Status)
	s.Equal(b.ID, *stored.BusinessID)

	promoted := s.publisher.OfType(events.TypeBusinessPromoted)
	s.Require().Len(promoted, 1)
	s.Equal(b.ID.String(), promoted[0].AggregateID)
}

func (s *PromotionSuite) TestApproveIsIdempotent() {
	app := s.seedApplication("Kule Sapanca", "kulesapanca", "")
	before := s.businessCount()

	first, err := s.service.Approve(s.ctx, app.ID)
	s.Require().NoError(err)
	second, err := s.service.Approve(s.ctx, app.ID)
	s.Require().NoError(err)

	s.Equal(first.Business.ID, second.Business.ID)
	s.True(second.AlreadyApproved)
	s.False(second.Created)
	s.False(second.Updated)
	s.Equal(before+1, s.businessCount())
	s.Len(s.publisher.OfType(events.TypeBusinessPromoted), 1, "no event for the no-op call")
}

func (s *PromotionSuite) TestConcurrentApproveCreatesOneBusiness() {
	app := s.seedApplication("Kule Sapanca", "kulesapanca", "")
	const goroutines = 20

	var wg sync.WaitGroup
	ids := make([]id.BusinessID, goroutines)
	var failures atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.service.Approve(s.ctx, app.ID)
			if err != nil {
				failures.Add(1)
				return
			}
			ids[i] = out.Business.ID
		}()
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load())
	for _, got := range ids {
		s.Equal(ids[0], got)
	}
	s.Equal(1, s.businessCount())
}

func (s *PromotionSuite) TestSlugCollision() {
	other := id.NewApplicationID()
	s.seedBusiness("kule-sapanca", "kule_original", &other)

	app := s.seedApplication("Kule Sapanca", "kulesapanca2026", "")
	out, err := s.service.Approve(s.ctx, app.ID)
	s.Require().NoError(err)
	s.True(out.Created)
	s.Equal("kule-sapanca-2", out.Business.Slug)

	app3 := s.seedApplication("Kule  Sapanca", "kule_three", "")
	out, err = s.service.Approve(s.ctx, app3.ID)
	s.Require().NoError(err)
	s.Equal("kule-sapanca-3", out.Business.Slug)
}

func (s *PromotionSuite) TestUnlinkedSlugHolderIsMergedNotSuffixed() {
	admin := s.seedBusiness("kule-sapanca", "", nil)

	app := s.seedApplication("Kule Sapanca", "kulesapanca2026", "")
	out, err := s.service.Approve(s.ctx, app.ID)
	s.Require().NoError(err)
	s.True(out.Updated)
	s.False(out.Created)
	s.Equal(admin.ID, out.Business.ID)
	s.Equal("kule-sapanca", out.Business.Slug)
	s.Equal(1, s.businessCount(), "no kule-sapanca-2 is created")
}

func (s *PromotionSuite) TestMergesIntoUnlinkedCandidate() {
	existing := s.seedBusiness("kule-otel", "kulesapanca", nil)
	existing.Address = "Göl Yolu 1"
	s.Require().NoError(s.store.UpdateBusiness(s.ctx, existing))

	app := s.seedApplication("Kule Sapanca Otel", "kulesapanca", "0543 166 54 54")
	before := s.businessCount()

	out, err := s.service.Approve(s.ctx, app.ID)
	s.Require().NoError(err)
	s.True(out.Updated)
	s.False(out.Created)
	s.Equal(existing.ID, out.Business.ID)
	s.Equal(before, s.businessCount())

	merged, err := s.store.FindBusinessByID(s.ctx, existing.ID)
	s.Require().NoError(err)
	s.Equal("kule-otel", merged.Slug, "slug is never rewritten by a merge")
	s.Equal("Kule Sapanca Otel", merged.Name)
	s.Equal("+905431665454", merged.Phone)
	s.Equal("Göl Yolu 1", merged.Address, "absent application field keeps business value")
	s.True(merged.Verified)
	s.True(merged.LinkedTo(app.ID))
}

func (s *PromotionSuite) TestCandidateOrderSlugBeforeHandle() {
	bySlug := s.seedBusiness("kule-sapanca", "", nil)
	s.seedBusiness("something-else", "kulesapanca", nil)

	app := s.seedApplication("Kule Sapanca", "kulesapanca", "")
	out, err := s.service.Approve(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(bySlug.ID, out.Business.ID)
}

func (s *PromotionSuite) TestApproveErrors() {
	s.Run("unknown application is not found", func() {
		_, err := s.service.Approve(s.ctx, id.NewApplicationID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejected application is a conflict", func() {
		app := s.seedApplication("Red", "red", "")
		_, err := s.service.Reject(s.ctx, app.ID, "spam")
		s.Require().NoError(err)

		_, err = s.service.Approve(s.ctx, app.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("blacklisted phone is a conflict", func() {
		s.seedBlacklist(canonical.Identity{Phone: "+90 543 166 54 54"})
		app := s.seedApplication("Kule Sapanca", "kulesapanca", "0543 166 54 54")
		before := s.businessCount()

		_, err := s.service.Approve(s.ctx, app.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(before, s.businessCount())

		stored, err := s.store.FindApplicationByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(models.ApplicationStatusPending, stored.Status)
	})

	s.Run("merge that would list a blacklisted handle is a conflict", func() {
		existing := s.seedBusiness("goldeniz", "", nil)
		s.seedBlacklist(canonical.Identity{Handle: "@goldeniz.bungalov"})
		app := s.seedApplication("Göldeniz", "goldeniz.bungalov", "")

		_, err := s.service.Approve(s.ctx, app.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		unchanged, err := s.store.FindBusinessByID(s.ctx, existing.ID)
		s.Require().NoError(err)
		s.Empty(unchanged.Handle)
		s.Nil(unchanged.ApplicationID)
	})
}

func (s *PromotionSuite) seedBlacklist(ident canonical.Identity) {
	entry := &models.Blacklist{
		ID:        id.NewBlacklistID(),
		Identity:  canonical.Normalize(ident),
		CreatedAt: s.now.Add(-time.Hour),
		UpdatedAt: s.now.Add(-time.Hour),
	}
	s.Require().NoError(s.store.CreateBlacklist(s.ctx, entry))
}

// flakyStore injects failures into selected store calls.
type flakyStore struct {
	*store.InMemory
	createFailures int
	failUpdateApp  error
	creates        int
}

func (f *flakyStore) CreateBusiness(ctx context.Context, b *models.Business) error {
	f.creates++
	if f.creates <= f.createFailures {
		return sentinel.ErrAlreadyUsed
	}
	return f.InMemory.CreateBusiness(ctx, b)
}

func (f *flakyStore) UpdateApplication(ctx context.Context, a *models.Application) error {
	if f.failUpdateApp != nil {
		return f.failUpdateApp
	}
	return f.InMemory.UpdateApplication(ctx, a)
}

func (s *PromotionSuite) TestUniqueViolationRetriesOnceWithFallbackSlug() {
	flaky := &flakyStore{InMemory: s.store, createFailures: 1}
	svc := s.newService(flaky)
	app := s.seedApplication("Kule Sapanca", "kulesapanca", "")

	out, err := svc.Approve(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(2, flaky.creates)
	s.True(strings.HasPrefix(out.Business.Slug, "kule-sapanca-"))
	s.NotEqual("kule-sapanca-2", out.Business.Slug)
}

func (s *PromotionSuite) TestSecondUniqueViolationSurfacesConflict() {
	flaky := &flakyStore{InMemory: s.store, createFailures: 2}
	svc := s.newService(flaky)
	app := s.seedApplication("Kule Sapanca", "kulesapanca", "")

	_, err := svc.Approve(s.ctx, app.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal(2, flaky.creates, "retry happens exactly once")

	stored, _ := s.store.FindApplicationByID(s.ctx, app.ID)
	s.Equal(models.ApplicationStatusPending, stored.Status)
}

func (s *PromotionSuite) TestFailureLeavesNoPartialPromotion() {
	flaky := &flakyStore{InMemory: s.store, failUpdateApp: errors.New("disk full")}
	svc := s.newService(flaky)
	app := s.seedApplication("Kule Sapanca", "kulesapanca", "")

	_, err := svc.Approve(s.ctx, app.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(0, s.businessCount(), "business insert rolled back")

	stored, _ := s.store.FindApplicationByID(s.ctx, app.ID)
	s.Equal(models.ApplicationStatusPending, stored.Status)
	s.Nil(stored.BusinessID)
	s.Empty(s.publisher.Events())
}

func (s *PromotionSuite) TestReject() {
	app := s.seedApplication("Kule", "kule", "")

	got, err := s.service.Reject(s.ctx, app.ID, "incomplete documents")
	s.Require().NoError(err)
	s.Equal(models.ApplicationStatusRejected, got.Status)
	s.Equal("incomplete documents", got.RejectionReason)

	s.Run("rejecting again is a no-op", func() {
		again, err := s.service.Reject(s.ctx, app.ID, "other reason")
		s.Require().NoError(err)
		s.Equal("incomplete documents", again.RejectionReason)
		s.Len(s.publisher.OfType(events.TypeApplicationRejected), 1)
	})

	s.Run("approved application cannot be rejected", func() {
		approved := s.seedApplication("Approved", "approved", "")
		_, err := s.service.Approve(s.ctx, approved.ID)
		s.Require().NoError(err)

		_, err = s.service.Reject(s.ctx, approved.ID, "late")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *PromotionSuite) TestPublishFailureDoesNotFailApproval() {
	ctrl := gomock.NewController(s.T())
	defer ctrl.Finish()
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).Times(1)

	svc, err := New(s.store, s.store, WithPublisher(pub))
	s.Require().NoError(err)

	app := s.seedApplication("Kule", "kule", "")
	out, err := svc.Approve(s.ctx, app.ID)
	s.Require().NoError(err)
	s.True(out.Created)
}
