package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/infrastructure/erpdb"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <sql>",
		Short: "Check a statement against the read-only guard",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
}

func runValidate(out io.Writer, query string) error {
	if err := erp.ValidateReadOnly(query); err != nil {
		var gwErr *erp.Error
		if errors.As(err, &gwErr) && gwErr.Keyword != "" {
			fmt.Fprintf(out, "rejected: forbidden keyword %s\n", gwErr.Keyword)
		} else {
			fmt.Fprintf(out, "rejected: %v\n", err)
		}
		return err
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the named queries shipped with this build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCatalog(cmd.OutOrStdout(), erpdb.DefaultCatalog())
		},
	}
}

func runCatalog(out io.Writer, catalog *erpdb.Catalog) error {
	if err := catalog.Verify(); err != nil {
		return fmt.Errorf("catalog %s is invalid: %w", catalog.Version(), err)
	}

	fmt.Fprintf(out, "catalog version %s\n\n", catalog.Version())
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tPARAMS\tDESCRIPTION")
	for _, q := range catalog.Queries() {
		names := make([]string, 0, len(q.Params))
		for _, p := range q.Params {
			names = append(names, p.Name)
		}
		params := strings.Join(names, ",")
		if params == "" {
			params = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", q.ID, q.Version, params, q.Description)
	}
	return tw.Flush()
}

func newHealthCmd(flags *globalFlags) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a tenant's ERP connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			e, err := openEnv(flags)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			result := e.gateway.TestConnection(ctx, tenantID)
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Connected {
				return fmt.Errorf("tenant %s: ERP not reachable", tenantID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newInvalidateCmd(flags *globalFlags) *cobra.Command {
	var tenant, domainName string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached ERP data for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			var domain *erp.Domain
			if domainName != "" {
				d, err := erp.ParseDomain(domainName)
				if err != nil {
					return err
				}
				domain = &d
			}

			e, err := openEnv(flags)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			removed, err := e.gateway.InvalidateCache(ctx, tenantID, domain)
			if err != nil {
				return err
			}
			scope := "all"
			if domain != nil {
				scope = domain.String()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached entries (%s)\n", removed, scope)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID (required)")
	cmd.Flags().StringVar(&domainName, "domain", "", "Limit to one domain")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newQueryCmd(flags *globalFlags) *cobra.Command {
	var (
		tenant string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only statement against a tenant's ERP",
		Long: "Runs ad-hoc SQL through the same read-only guard as the catalog. " +
			"Named parameters are passed as --param name=value.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			// Fail before touching any database.
			if err := erp.ValidateReadOnly(query); err != nil {
				return err
			}
			named, err := parseParams(params)
			if err != nil {
				return err
			}

			e, err := openEnv(flags)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			cfg, err := e.configs.Require(ctx, tenantID)
			if err != nil {
				return err
			}
			rows, err := e.queries.ExecuteRaw(ctx, cfg, query, named)
			if err != nil {
				return err
			}
			return writeRows(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID (required)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Named parameter as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func parseTenant(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenant ID %q: %w", s, err)
	}
	return id, nil
}

func parseParams(pairs []string) (map[string]any, error) {
	named := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q must be name=value", pair)
		}
		named[name] = value
	}
	return named, nil
}

// writeRows prints one JSON object per row.
func writeRows(out io.Writer, rows []erp.Row) error {
	enc := json.NewEncoder(out)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
