package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventrentals/portal/internal/data"
	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/domain/portal"
	"github.com/eventrentals/portal/internal/ports"
	"github.com/eventrentals/portal/internal/service"
)

const defaultAuditLimit = 20

func defaultActor() string {
	if u := strings.TrimSpace(os.Getenv("USER")); u != "" {
		return u
	}
	return "portal-admin"
}

func addActorFlag(cmd *cobra.Command, actor *string) {
	cmd.Flags().StringVar(actor, "actor", defaultActor(), "name recorded in the audit trail")
}

func grantCmd(open opener) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "grant <user-id>",
		Short: "Grant the admin role to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInfra(cmd, open, func(ctx context.Context, in *infra) error {
				m, err := in.Admins.Grant(ctx, args[0], actor)
				if err != nil {
					return fmt.Errorf("grant admin: %w", err)
				}
				invalidate(ctx, cmd.ErrOrStderr(), in.Cache, m.UserID)
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "granted admin to %s\n", m.UserID)
				return err
			})
		},
	}
	addActorFlag(cmd, &actor)
	return cmd
}

func revokeCmd(open opener) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Deactivate a user's admin membership, keeping the record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInfra(cmd, open, func(ctx context.Context, in *infra) error {
				m, err := in.Admins.Revoke(ctx, args[0], actor)
				if errors.Is(err, ports.ErrAdminNotFound) {
					return fmt.Errorf("user %s has no admin membership", args[0])
				}
				if err != nil {
					return fmt.Errorf("revoke admin: %w", err)
				}
				invalidate(ctx, cmd.ErrOrStderr(), in.Cache, m.UserID)
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "revoked admin from %s\n", m.UserID)
				return err
			})
		},
	}
	addActorFlag(cmd, &actor)
	return cmd
}

func deleteCmd(open opener) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Remove a user's admin membership record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInfra(cmd, open, func(ctx context.Context, in *infra) error {
				deleted, err := in.Admins.Delete(ctx, args[0], actor)
				if err != nil {
					return fmt.Errorf("delete admin: %w", err)
				}
				if !deleted {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "no admin membership for %s\n", args[0])
					return err
				}
				invalidate(ctx, cmd.ErrOrStderr(), in.Cache, args[0])
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted admin membership of %s\n", args[0])
				return err
			})
		},
	}
	addActorFlag(cmd, &actor)
	return cmd
}

func listCmd(open opener) *cobra.Command {
	var (
		opts   data.AdminListOptions
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List admin memberships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInfra(cmd, open, func(ctx context.Context, in *infra) error {
				admins, err := in.Admins.List(ctx, opts)
				if err != nil {
					return fmt.Errorf("list admins: %w", err)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), membershipViews(admins))
				}
				return printMemberships(cmd.OutOrStdout(), admins)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.ActiveOnly, "active", false, "only list memberships that grant the admin role")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum rows")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func showCmd(open opener) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a membership and its audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInfra(cmd, open, func(ctx context.Context, in *infra) error {
				out := cmd.OutOrStdout()
				m, err := in.Admins.GetAdmin(ctx, args[0])
				switch {
				case errors.Is(err, ports.ErrAdminNotFound):
					if _, werr := fmt.Fprintf(out, "%s: no admin membership\n", args[0]); werr != nil {
						return werr
					}
				case err != nil:
					return fmt.Errorf("get admin: %w", err)
				default:
					if perr := printMemberships(out, []domainauth.AdminMembership{m}); perr != nil {
						return perr
					}
				}

				trail, err := in.Admins.AuditTrail(ctx, args[0], limit)
				if err != nil {
					return fmt.Errorf("audit trail: %w", err)
				}
				return printAuditTrail(out, trail)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultAuditLimit, "maximum audit entries")
	return cmd
}

func checkAccessCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "check-access <user-id>",
		Short: "Resolve the portal a user would be routed to, using the directory only",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInfra(cmd, open, func(ctx context.Context, in *infra) error {
				res := in.Resolver.Resolve(ctx, service.ResolveInput{
					Principal: &domainauth.Principal{UserID: args[0]},
				})
				if res.Failed() {
					return fmt.Errorf("resolve role: %w", res.Err)
				}
				role := res.Role()
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: role=%s source=%s landing=%s\n",
					args[0], role, res.Source, portal.LandingPathForRole(role))
				return err
			})
		},
	}
}

// invalidate drops the cached membership so the change is seen on the next sign-in.
func invalidate(ctx context.Context, stderr io.Writer, cache cacheInvalidator, userID string) {
	if cache == nil {
		fmt.Fprintf(stderr, "warning: admin cache not invalidated for %s; the change applies once the cached entry expires\n", userID)
		return
	}
	if err := cache.Invalidate(ctx, userID); err != nil {
		fmt.Fprintf(stderr, "warning: invalidate admin cache for %s: %v\n", userID, err)
	}
}

type membershipView struct {
	UserID    string    `json:"user_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func membershipViews(admins []domainauth.AdminMembership) []membershipView {
	out := make([]membershipView, 0, len(admins))
	for _, m := range admins {
		out = append(out, membershipView{
			UserID:    m.UserID,
			Active:    m.Grants(),
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return out
}

func printMemberships(w io.Writer, admins []domainauth.AdminMembership) error {
	if len(admins) == 0 {
		_, err := fmt.Fprintln(w, "no admin memberships")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER ID\tACTIVE\tUPDATED")
	for _, v := range membershipViews(admins) {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", v.UserID, v.Active, v.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func printAuditTrail(w io.Writer, trail []domainauth.AdminAuditEntry) error {
	if len(trail) == 0 {
		_, err := fmt.Fprintln(w, "no audit entries")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTION\tACTOR")
	for _, e := range trail {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt.UTC().Format(time.RFC3339), e.Action, e.Actor)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
