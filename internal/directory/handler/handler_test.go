package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"trustdir/internal/directory/applications"
	"trustdir/internal/directory/promotion"
	"trustdir/internal/directory/reports"
	"trustdir/internal/directory/resolve"
	"trustdir/internal/directory/search"
	"trustdir/internal/directory/store"
	jwttoken "trustdir/internal/jwt_token"
	"trustdir/internal/platform/middleware"
	"trustdir/pkg/platform/events"
	"trustdir/pkg/platform/middleware/requesttime"
)

// =============================================================================
// Directory Handler Test Suite
// =============================================================================
// Drives the real services over the in-memory store through a chi router, so
// each test covers routing, auth, decoding and error mapping together.

type HandlerSuite struct {
	suite.Suite
	router     *chi.Mux
	store      *store.InMemory
	publisher  *events.Memory
	adminToken string
	jwt        *jwttoken.JWTService
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = store.NewInMemory()
	s.publisher = events.NewMemory()

	resolver, err := resolve.New(s.store, resolve.WithLogger(logger))
	s.Require().NoError(err)
	searcher, err := search.New(s.store, search.WithLogger(logger))
	s.Require().NoError(err)
	apps, err := applications.New(s.store, applications.WithLogger(logger))
	s.Require().NoError(err)
	promoter, err := promotion.New(s.store, s.store, promotion.WithLogger(logger), promotion.WithPublisher(s.publisher))
	s.Require().NoError(err)
	reps, err := reports.New(s.store, s.store, reports.WithLogger(logger), reports.WithPublisher(s.publisher))
	s.Require().NoError(err)

	s.jwt = jwttoken.NewJWTService("handler-test-key", "trustdir", "trustdir-admin")
	s.adminToken, err = s.jwt.GenerateAccessToken("moderator-1", jwttoken.RoleAdmin, time.Hour)
	s.Require().NoError(err)

	h := New(Services{
		Resolver:     resolver,
		Searcher:     searcher,
		Applications: apps,
		Promoter:     promoter,
		Reports:      reps,
	}, jwttoken.NewJWTServiceAdapter(s.jwt), logger)

	s.router = chi.NewRouter()
	s.router.Use(requesttime.Middleware)
	s.router.Use(middleware.ContentTypeJSON)
	s.router.Use(middleware.Fingerprint(nil))
	h.Register(s.router)
}

func (s *HandlerSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) admin(method, path, body string) *httptest.ResponseRecorder {
	return s.do(method, path, body, map[string]string{"Authorization": "Bearer " + s.adminToken})
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&out))
	return out
}

func (s *HandlerSuite) submitAndApprove() string {
	w := s.do(http.MethodPost, "/v1/applications",
		`{"name":"Kule Sapanca","handle":"@KuleSapanca","phone":"0543 166 54 54","city":"Sakarya"}`, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	appID := s.decode(w)["id"].(string)

	w = s.admin(http.MethodPost, "/v1/admin/applications/"+appID+"/approve", "")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return appID
}

func (s *HandlerSuite) createReport() string {
	w := s.do(http.MethodPost, "/v1/reports",
		`{"name":"Fake Villa","phone":"+90 555 000 11 22","description":"took a deposit and vanished","consent":true}`, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.decode(w)["id"].(string)
}

func (s *HandlerSuite) TestClassify() {
	s.Run("detects a handle", func() {
		w := s.do(http.MethodGet, "/v1/classify?q=%40KuleSapanca", "", nil)
		s.Equal(http.StatusOK, w.Code)
		body := s.decode(w)
		s.Equal("instagram_username", body["type"])
		s.Equal("kulesapanca", body["canonical_value"])
	})

	s.Run("query is required", func() {
		w := s.do(http.MethodGet, "/v1/classify", "", nil)
		s.Equal(http.StatusUnprocessableEntity, w.Code)
	})
}

func (s *HandlerSuite) TestPromotionThenResolveVerified() {
	appID := s.submitAndApprove()

	w := s.do(http.MethodGet, "/v1/resolve?q=kulesapanca", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("verified", body["status"])
	records := body["records"].([]any)
	s.Require().Len(records, 1)
	s.Equal("kule-sapanca", records[0].(map[string]any)["slug"])

	s.Run("approving again is idempotent", func() {
		w := s.admin(http.MethodPost, "/v1/admin/applications/"+appID+"/approve", "")
		s.Equal(http.StatusOK, w.Code)
		s.Equal(true, s.decode(w)["already_approved"])
	})

	s.Run("rejecting an approved application conflicts", func() {
		w := s.admin(http.MethodPost, "/v1/admin/applications/"+appID+"/reject", `{"reason":"duplicate"}`)
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Len(s.publisher.OfType(events.TypeBusinessPromoted), 1)
}

func (s *HandlerSuite) TestResolveNotFound() {
	w := s.do(http.MethodGet, "/v1/resolve?q=nobody-here", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("not_found", s.decode(w)["status"])
}

func (s *HandlerSuite) TestResolveRejectsBadLimit() {
	w := s.do(http.MethodGet, "/v1/resolve?q=kule&limit=abc", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestSearch() {
	s.submitAndApprove()

	w := s.do(http.MethodGet, "/v1/search?q=kule+sapanca&sort=rating", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.EqualValues(1, body["count"])
}

func (s *HandlerSuite) TestSubmitApplicationValidation() {
	w := s.do(http.MethodPost, "/v1/applications", `{"name":"Only A Name"}`, nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("validation_error", s.decode(w)["error"])

	w = s.do(http.MethodPost, "/v1/applications", `{"name":`, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestSupportIsCountedOncePerFingerprint() {
	reportID := s.createReport()
	path := "/v1/reports/" + reportID + "/support"

	w := s.do(http.MethodPost, path, "", map[string]string{middleware.HeaderFingerprint: "fp-a"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"updated":true,"support_count":1}`, w.Body.String())

	w = s.do(http.MethodPost, path, "", map[string]string{middleware.HeaderFingerprint: "fp-a"})
	s.JSONEq(`{"updated":false,"support_count":1}`, w.Body.String())

	s.Run("no fingerprint reads the count", func() {
		w := s.do(http.MethodPost, path, "", nil)
		s.JSONEq(`{"updated":false,"support_count":1}`, w.Body.String())
	})

	s.Run("unknown report", func() {
		w := s.do(http.MethodPost, "/v1/reports/8f14e45f-ceea-467a-9b57-0a1b2c3d4e5f/support", "",
			map[string]string{middleware.HeaderFingerprint: "fp-a"})
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("malformed id", func() {
		w := s.do(http.MethodPost, "/v1/reports/not-a-uuid/support", "", nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestEscalateThenResolveBlacklist() {
	reportID := s.createReport()

	w := s.admin(http.MethodPost, "/v1/admin/reports/"+reportID+"/escalate", "")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/resolve?q=05550001122", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("blacklist", body["status"])
	s.NotNil(body["blacklist"])
	s.Require().IsType(map[string]any{}, body["record"])
	s.Equal("+905550001122", body["record"].(map[string]any)["phone"])

	w = s.admin(http.MethodPost, "/v1/admin/reports/"+reportID+"/escalate", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestUpdateReport() {
	reportID := s.createReport()

	w := s.admin(http.MethodPatch, "/v1/admin/reports/"+reportID, `{"status":"reviewing","handle":"@FakeVilla"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.decode(w)
	s.Equal("reviewing", body["status"])
	s.Equal("fakevilla", body["handle"])

	w = s.admin(http.MethodPatch, "/v1/admin/reports/"+reportID, `{"status":"archived"}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *HandlerSuite) TestCreateBlacklist() {
	w := s.admin(http.MethodPost, "/v1/admin/blacklist", `{"name":"Scam Bungalow","website":"https://www.scam-bungalow.com/"}`)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("scam-bungalow.com", s.decode(w)["website"])

	w = s.admin(http.MethodPost, "/v1/admin/blacklist", `{"name":"No Contact"}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *HandlerSuite) TestAdminRoutesRequireAdminToken() {
	viewer, err := s.jwt.GenerateAccessToken("viewer-1", "viewer", time.Hour)
	s.Require().NoError(err)

	tests := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"garbage token", map[string]string{"Authorization": "Bearer garbage"}, http.StatusUnauthorized},
		{"non admin role", map[string]string{"Authorization": "Bearer " + viewer}, http.StatusForbidden},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(http.MethodPost, "/v1/admin/blacklist", `{"name":"x","phone":"+905550001122"}`, tt.headers)
			s.Equal(tt.status, w.Code)
		})
	}
}

func (s *HandlerSuite) TestRejectWithoutBody() {
	w := s.do(http.MethodPost, "/v1/applications",
		`{"name":"Göl Evi","website":"golevi.com.tr"}`, nil)
	s.Require().Equal(http.StatusCreated, w.Code)
	appID := s.decode(w)["id"].(string)

	w = s.admin(http.MethodPost, "/v1/admin/applications/"+appID+"/reject", "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("rejected", s.decode(w)["status"])
}
