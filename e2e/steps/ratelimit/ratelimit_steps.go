package ratelimit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POST(path string, body interface{}) error
	GetLastResponseStatus() int
	GetLastHeader(name string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I send (\d+) application submissions$`, steps.sendSubmissions)
	ctx.Step(`^at least one submission should be rate limited$`, steps.atLeastOneLimited)
	ctx.Step(`^the limited response should carry a Retry-After header$`, steps.limitedCarriesRetryAfter)
	ctx.Step(`^the response should carry rate limit headers$`, steps.carriesRateLimitHeaders)
}

type ratelimitSteps struct {
	tc         TestContext
	limited    int
	retryAfter string
}

func (s *ratelimitSteps) sendSubmissions(ctx context.Context, n int) error {
	s.limited, s.retryAfter = 0, ""
	for i := range n {
		err := s.tc.POST("/v1/applications", map[string]interface{}{
			"name":   "Throttle Probe " + strconv.Itoa(i),
			"handle": "@throttleprobe" + strconv.Itoa(i),
		})
		if err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() == 429 {
			s.limited++
			s.retryAfter = s.tc.GetLastHeader("Retry-After")
		}
	}
	return nil
}

func (s *ratelimitSteps) atLeastOneLimited(ctx context.Context) error {
	if s.limited == 0 {
		return fmt.Errorf("no submission was rate limited")
	}
	return nil
}

func (s *ratelimitSteps) limitedCarriesRetryAfter(ctx context.Context) error {
	if s.retryAfter == "" {
		return fmt.Errorf("limited response had no Retry-After header")
	}
	return nil
}

func (s *ratelimitSteps) carriesRateLimitHeaders(ctx context.Context) error {
	for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"} {
		if s.tc.GetLastHeader(h) == "" {
			return fmt.Errorf("missing %s header", h)
		}
	}
	return nil
}
