package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trustdir/internal/directory/resolve"
	"trustdir/internal/identity/classify"
	jwttoken "trustdir/internal/jwt_token"
	id "trustdir/pkg/domain"
)

func newClassifyCmd(e *env) *cobra.Command {
	var hint string
	cmd := &cobra.Command{
		Use:   "classify <query>",
		Short: "Show how a query is classified and canonicalized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.print(classify.Classify(args[0], hint))
		},
	}
	cmd.Flags().StringVar(&hint, "type", "", "type hint (instagram_url, instagram_username, website, phone, free_text)")
	return cmd
}

func newResolveCmd(e *env) *cobra.Command {
	var (
		hint  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "resolve <query>",
		Short: "Resolve a query to a verified business or blacklist entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := e.context(cmd)
			a, err := e.load(ctx)
			if err != nil {
				return err
			}
			res, err := a.Resolver.Resolve(ctx, resolve.Request{Query: args[0], Hint: hint, Limit: limit})
			if err != nil {
				return err
			}
			return e.print(res)
		},
	}
	cmd.Flags().StringVar(&hint, "type", "", "type hint")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum verified records to return")
	return cmd
}

func newApproveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <application-id>",
		Short: "Promote a pending application into a verified business",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appID, err := id.ParseApplicationID(args[0])
			if err != nil {
				return err
			}
			ctx := e.context(cmd)
			a, err := e.load(ctx)
			if err != nil {
				return err
			}
			out, err := a.Promoter.Approve(ctx, appID)
			if err != nil {
				return err
			}
			return e.print(out)
		},
	}
}

func newRejectCmd(e *env) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <application-id>",
		Short: "Reject a pending application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appID, err := id.ParseApplicationID(args[0])
			if err != nil {
				return err
			}
			ctx := e.context(cmd)
			a, err := e.load(ctx)
			if err != nil {
				return err
			}
			out, err := a.Promoter.Reject(ctx, appID, reason)
			if err != nil {
				return err
			}
			return e.print(out)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason shown to the submitter")
	return cmd
}

func newEscalateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "escalate <report-id>",
		Short: "Move a report into the blacklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := id.ParseReportID(args[0])
			if err != nil {
				return err
			}
			ctx := e.context(cmd)
			a, err := e.load(ctx)
			if err != nil {
				return err
			}
			out, err := a.Reports.Escalate(ctx, reportID)
			if err != nil {
				return err
			}
			return e.print(out)
		},
	}
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := e.context(cmd)
			a, err := e.load(ctx)
			if err != nil {
				return err
			}
			if err := a.Migrate(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintln(e.out, "schema applied")
			return err
		},
	}
}

func newTokenCmd(e *env) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an operator bearer token for the admin API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.load(e.context(cmd))
			if err != nil {
				return err
			}
			token, err := a.JWT.GenerateAccessToken(args[0], role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(e.out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&role, "role", jwttoken.RoleAdmin, "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
