package directory

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POST(path string, body interface{}) error
	AdminPOST(path string, body interface{}) error
	HasAdminToken() bool
	GetResponseField(field string) (interface{}, error)
	Remember(key, value string)
}

// RegisterSteps registers application, promotion, resolve and report steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &directorySteps{tc: tc}

	// Public submissions
	ctx.Step(`^I submit an application for "([^"]*)" with handle "([^"]*)" and phone "([^"]*)"$`, steps.submitApplication)
	ctx.Step(`^I report "([^"]*)" saying "([^"]*)"$`, steps.createReport)
	ctx.Step(`^I support the last report$`, steps.supportLastReport)

	// Moderation
	ctx.Step(`^I am signed in as an admin$`, steps.signedInAsAdmin)
	ctx.Step(`^I approve the last application$`, steps.approveLastApplication)
	ctx.Step(`^I reject the last application because "([^"]*)"$`, steps.rejectLastApplication)
	ctx.Step(`^I escalate the last report$`, steps.escalateLastReport)
	ctx.Step(`^I approve application "([^"]*)" without a token$`, steps.approveWithoutToken)

	// Lookups
	ctx.Step(`^I classify "([^"]*)"$`, steps.classify)
	ctx.Step(`^I resolve "([^"]*)"$`, steps.resolve)
	ctx.Step(`^I search for "([^"]*)"$`, steps.search)
}

type directorySteps struct {
	tc TestContext
}

func (s *directorySteps) submitApplication(ctx context.Context, name, handle, phone string) error {
	if err := s.tc.POST("/v1/applications", map[string]interface{}{
		"name":   name,
		"handle": handle,
		"phone":  phone,
	}); err != nil {
		return err
	}
	return s.rememberID("application_id")
}

func (s *directorySteps) createReport(ctx context.Context, phone, description string) error {
	if err := s.tc.POST("/v1/reports", map[string]interface{}{
		"phone":       phone,
		"description": description,
		"consent":     true,
	}); err != nil {
		return err
	}
	return s.rememberID("report_id")
}

func (s *directorySteps) supportLastReport(ctx context.Context) error {
	return s.tc.POST("/v1/reports/{report_id}/support", nil)
}

func (s *directorySteps) signedInAsAdmin(ctx context.Context) error {
	if !s.tc.HasAdminToken() {
		// Mint one with: trustctl token <subject> --role admin
		return godog.ErrPending
	}
	return nil
}

func (s *directorySteps) approveLastApplication(ctx context.Context) error {
	return s.tc.AdminPOST("/v1/admin/applications/{application_id}/approve", nil)
}

func (s *directorySteps) rejectLastApplication(ctx context.Context, reason string) error {
	return s.tc.AdminPOST("/v1/admin/applications/{application_id}/reject", map[string]interface{}{"reason": reason})
}

func (s *directorySteps) approveWithoutToken(ctx context.Context, applicationID string) error {
	return s.tc.POST("/v1/admin/applications/"+applicationID+"/approve", nil)
}

func (s *directorySteps) escalateLastReport(ctx context.Context) error {
	return s.tc.AdminPOST("/v1/admin/reports/{report_id}/escalate", nil)
}

func (s *directorySteps) classify(ctx context.Context, q string) error {
	return s.tc.GET("/v1/classify?q=" + url.QueryEscape(q))
}

func (s *directorySteps) resolve(ctx context.Context, q string) error {
	return s.tc.GET("/v1/resolve?q=" + url.QueryEscape(q))
}

func (s *directorySteps) search(ctx context.Context, q string) error {
	return s.tc.GET("/v1/search?q=" + url.QueryEscape(q))
}

func (s *directorySteps) rememberID(key string) error {
	v, err := s.tc.GetResponseField("id")
	if err != nil {
		// Failed requests have no id; the status assertion reports them.
		return nil
	}
	id, ok := v.(string)
	if !ok {
		return fmt.Errorf("id is %T, want string", v)
	}
	s.tc.Remember(key, id)
	return nil
}
