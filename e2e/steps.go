package e2e

import (
	"github.com/cucumber/godog"

	"trustdir/e2e/steps/common"
	"trustdir/e2e/steps/directory"
	"trustdir/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (health, generic assertions)
	common.RegisterSteps(ctx, tc)

	// Register directory steps (applications, promotion, resolve, reports)
	directory.RegisterSteps(ctx, tc)

	// Register rate limiting steps
	ratelimit.RegisterSteps(ctx, tc)
}
