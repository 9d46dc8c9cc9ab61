package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"trustdir/internal/directory/models"
	id "trustdir/pkg/domain"
	"trustdir/pkg/platform/sentinel"
)

type memTxKey struct{}

// InMemory is a process-local directory store for tests and dev mode.
//
// Units of work run one at a time under txMu and restore a snapshot when
// they fail. Writes outside a unit also take txMu, so a rollback never
// discards a concurrent write. Reads take only mu and may observe writes
// of a unit that has not finished yet.
type InMemory struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	businesses   map[id.BusinessID]*models.Business
	applications map[id.ApplicationID]*models.Application
	reports      map[id.ReportID]*models.Report
	blacklist    map[id.BlacklistID]*models.Blacklist
}

func NewInMemory() *InMemory {
	return &InMemory{
		businesses:   make(map[id.BusinessID]*models.Business),
		applications: make(map[id.ApplicationID]*models.Application),
		reports:      make(map[id.ReportID]*models.Report),
		blacklist:    make(map[id.BlacklistID]*models.Blacklist),
	}
}

type snapshot struct {
	businesses   map[id.BusinessID]*models.Business
	applications map[id.ApplicationID]*models.Application
	reports      map[id.ReportID]*models.Report
	blacklist    map[id.BlacklistID]*models.Blacklist
}

// RunInTx runs fn as one unit. If fn fails every write it made is undone.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func inMemTx(ctx context.Context) bool {
	v, _ := ctx.Value(memTxKey{}).(bool)
	return v
}

// lockWrite takes the write locks appropriate for ctx and returns the unlock.
func (s *InMemory) lockWrite(ctx context.Context) func() {
	if inMemTx(ctx) {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

func (s *InMemory) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		businesses:   maps.Clone(s.businesses),
		applications: maps.Clone(s.applications),
		reports:      maps.Clone(s.reports),
		blacklist:    maps.Clone(s.blacklist),
	}
}

// restore swaps the maps back. Stored values are never mutated in place,
// so a shallow map copy is a full snapshot.
func (s *InMemory) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses = snap.businesses
	s.applications = snap.applications
	s.reports = snap.reports
	s.blacklist = snap.blacklist
}

// Businesses

func (s *InMemory) CreateBusiness(ctx context.Context, b *models.Business) error {
	unlock := s.lockWrite(ctx)
	defer unlock()

	if _, exists := s.businesses[b.ID]; exists {
		return fmt.Errorf("create business %s: %w", b.ID, sentinel.ErrAlreadyUsed)
	}
	if err := s.checkBusinessUniqueLocked(b); err != nil {
		return fmt.Errorf("create business: %w", err)
	}
	s.businesses[b.ID] = b.Clone()
	return nil
}

func (s *InMemory) UpdateBusiness(ctx context.Context, b *models.Business) error {
	unlock := s.lockWrite(ctx)
	defer unlock()

	if _, exists := s.businesses[b.ID]; !exists {
		return fmt.Errorf("update business %s: %w", b.ID, sentinel.ErrNotFound)
	}
	if err := s.checkBusinessUniqueLocked(b); err != nil {
		return fmt.Errorf("update business: %w", err)
	}
	s.businesses[b.ID] = b.Clone()
	return nil
}

func (s *InMemory) checkBusinessUniqueLocked(b *models.Business) error {
	for _, other := range s.businesses {
		if other.ID == b.ID {
			continue
		}
		if other.Slug == b.Slug {
			return fmt.Errorf("slug %q: %w", b.Slug, sentinel.ErrAlreadyUsed)
		}
		if b.ApplicationID != nil && other.LinkedTo(*b.ApplicationID) {
			return fmt.Errorf("application %s already linked: %w", b.ApplicationID, sentinel.ErrAlreadyUsed)
		}
	}
	return nil
}

// firstBusiness returns the oldest business matching keep.
func (s *InMemory) firstBusiness(op string, keep func(*models.Business) bool) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.Business
	for _, b := range s.businesses {
		if !keep(b) {
			continue
		}
		if found == nil || b.CreatedAt.Before(found.CreatedAt) ||
			(b.CreatedAt.Equal(found.CreatedAt) && b.ID.String() < found.ID.String()) {
			found = b
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return found.Clone(), nil
}

func (s *InMemory) FindBusinessByID(_ context.Context, businessID id.BusinessID) (*models.Business, error) {
	return s.firstBusiness("find business by id", func(b *models.Business) bool { return b.ID == businessID })
}

func (s *InMemory) FindBusinessBySlug(_ context.Context, slug string) (*models.Business, error) {
	return s.firstBusiness("find business by slug", func(b *models.Business) bool { return b.Slug == slug })
}

func (s *InMemory) FindBusinessByHandle(_ context.Context, handle string) (*models.Business, error) {
	return s.firstBusiness("find business by handle", func(b *models.Business) bool {
		return b.Handle != "" && strings.EqualFold(b.Handle, handle)
	})
}

func (s *InMemory) FindBusinessByPhone(_ context.Context, phone string) (*models.Business, error) {
	return s.firstBusiness("find business by phone", func(b *models.Business) bool {
		return b.Phone != "" && b.Phone == phone
	})
}

func (s *InMemory) FindBusinessByApplication(_ context.Context, appID id.ApplicationID) (*models.Business, error) {
	return s.firstBusiness("find business by application", func(b *models.Business) bool { return b.LinkedTo(appID) })
}

func (s *InMemory) ListSlugs(_ context.Context, base string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var slugs []string
	for _, b := range s.businesses {
		if b.Slug == base || strings.HasPrefix(b.Slug, base+"-") {
			slugs = append(slugs, b.Slug)
		}
	}
	slices.Sort(slugs)
	return slugs, nil
}

func (s *InMemory) FindBusinesses(_ context.Context, q models.BusinessQuery) ([]*models.Business, error) {
	s.mu.RLock()
	var out []*models.Business
	for _, b := range s.businesses {
		if q.Status != "" && b.Status != q.Status {
			continue
		}
		if q.Filter.Match(b) {
			out = append(out, b.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Business) int {
		if c := q.Order.Comparator()(a, b); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *InMemory) CountBusinesses(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.businesses), nil
}

// Applications

func (s *InMemory) CreateApplication(ctx context.Context, a *models.Application) error {
	unlock := s.lockWrite(ctx)
	defer unlock()

	if _, exists := s.applications[a.ID]; exists {
		return fmt.Errorf("create application %s: %w", a.ID, sentinel.ErrAlreadyUsed)
	}
	s.applications[a.ID] = a.Clone()
	return nil
}

func (s *InMemory) FindApplicationByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.applications[appID]
	if !ok {
		return nil, fmt.Errorf("find application %s: %w", appID, sentinel.ErrNotFound)
	}
	return a.Clone(), nil
}

// FindApplicationForUpdate is FindApplicationByID; units of work are
// already serialized.
func (s *InMemory) FindApplicationForUpdate(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	return s.FindApplicationByID(ctx, appID)
}

func (s *InMemory) UpdateApplication(ctx context.Context, a *models.Application) error {
	unlock := s.lockWrite(ctx)
	defer unlock()

	if _, ok := s.applications[a.ID]; !ok {
		return fmt.Errorf("update application %s: %w", a.ID, sentinel.ErrNotFound)
	}
	s.applications[a.ID] = a.Clone()
	return nil
}

// Reports

func (s *InMemory) CreateReport(ctx context.Context, r *models.Report) error {
	unlock := s.lockWrite(ctx)
	defer unlock()

	if _, exists := s.reports[r.ID]; exists {
		return fmt.Errorf("create report %s: %w", r.ID, sentinel.ErrAlreadyUsed)
	}
	c := r.Clone()
	c.SupportCount = len(c.Supporters)
	s.reports[r.ID] = c
	return nil
}

func (s *InMemory) FindReportByID(_ context.Context, reportID id.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, fmt.Errorf("find report %s: %w", reportID, sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

// UpdateReport keeps the stored supporters; only AddSupporter changes them.
func (s *InMemory) UpdateReport(ctx context.Context, r *models.Report) error {
	unlock := s.lockWrite(ctx)
	defer unlock()

	existing, ok := s.reports[r.ID]
	if !ok {
		return fmt.Errorf("update report %s: %w", r.ID, sentinel.ErrNotFound)
	}
	c := r.Clone()
	c.Supporters = slices.Clone(existing.Supporters)
	c.SupportCount = existing.SupportCount
	c.CreatedAt = existing.CreatedAt
	s.reports[r.ID] = c
	return nil
}

func (s *InMemory) DeleteReport(ctx context.Context, reportID id.ReportID) error {
	unlock := s.lockWrite(ctx)
	defer unlock()

	if _, ok := s.reports[reportID]; !ok {
		return fmt.Errorf("delete report %s: %w", reportID, sentinel.ErrNotFound)
	}
	delete(s.reports, reportID)
	return nil
}

// AddSupporter checks and appends under the write lock, which makes it a
// single atomic conditional update.
func (s *InMemory) AddSupporter(ctx context.Context, reportID id.ReportID, fingerprint string) (bool, int, error) {
	unlock := s.lockWrite(ctx)
	defer unlock()

	existing, ok := s.reports[reportID]
	if !ok {
		return false, 0, fmt.Errorf("add supporter %s: %w", reportID, sentinel.ErrNotFound)
	}
	if existing.HasSupporter(fingerprint) {
		return false, existing.SupportCount, nil
	}
	c := existing.Clone()
	c.AddSupporter(fingerprint)
	s.reports[reportID] = c
	return true, c.SupportCount, nil
}

// Blacklist

func (s *InMemory) CreateBlacklist(ctx context.Context, b *models.Blacklist) error {
	unlock := s.lockWrite(ctx)
	defer unlock()

	if _, exists := s.blacklist[b.ID]; exists {
		return fmt.Errorf("create blacklist entry %s: %w", b.ID, sentinel.ErrAlreadyUsed)
	}
	s.blacklist[b.ID] = b.Clone()
	return nil
}

func (s *InMemory) FindBlacklistByID(_ context.Context, blID id.BlacklistID) (*models.Blacklist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blacklist[blID]
	if !ok {
		return nil, fmt.Errorf("find blacklist entry %s: %w", blID, sentinel.ErrNotFound)
	}
	return b.Clone(), nil
}

func (s *InMemory) FindBlacklist(_ context.Context, q models.BlacklistQuery) ([]*models.Blacklist, error) {
	s.mu.RLock()
	var out []*models.Blacklist
	for _, b := range s.blacklist {
		if q.Filter.Match(b) {
			out = append(out, b.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Blacklist) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
