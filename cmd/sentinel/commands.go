package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sentinel/discovery-engine/internal/config"
	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/engram"
)

func newRootCmd() *cobra.Command {
	var configPath string
	var devLog bool

	root := &cobra.Command{
		Use:   "sentinel",
		Short: "Sentinel discovery-and-correlation engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ~/.config/sentinel/config.yaml)")
	root.PersistentFlags().BoolVar(&devLog, "dev", false, "Use human-readable development logging instead of JSON")

	root.AddCommand(newConnectorCmd(&configPath, &devLog))
	root.AddCommand(newScanCmd(&configPath, &devLog))
	root.AddCommand(newEngramCmd(&configPath, &devLog))
	root.AddCommand(newDoctorCmd(&configPath, &devLog))
	root.AddCommand(newVersionCmd())
	return root
}

// buildLogger mirrors the teacher's dev-vs-production logging split,
// grounded on xkilldash9x-scalpel-cli's cmd/main_test.go pattern.
func buildLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func withApp(configPath *string, dev *bool, fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	logger, err := buildLogger(*dev)
	if err != nil {
		return fmt.Errorf("sentinel: build logger: %w", err)
	}
	defer logger.Sync()

	a, err := newApp(ctx, *configPath, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

func newConnectorCmd(configPath *string, dev *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connector",
		Short: "Inspect and run configured connectors",
	}
	cmd.AddCommand(newConnectorRunCmd(configPath, dev))
	cmd.AddCommand(newConnectorListCmd(configPath, dev))
	return cmd
}

func newConnectorRunCmd(configPath *string, dev *bool) *cobra.Command {
	var tenant, name string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one configured connector now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, dev, func(ctx context.Context, a *app) error {
				entry, err := findConnectorEntry(a, name)
				if err != nil {
					return err
				}
				secret, err := a.secrets.Resolve(ctx, entry.CredentialRef)
				if err != nil {
					return fmt.Errorf("sentinel: resolve credential: %w", err)
				}
				conn, err := buildConnector(ctx, entry, secret)
				if err != nil {
					return err
				}
				tenantID, err := parseTenant(tenant)
				if err != nil {
					return err
				}

				orch := a.orchestrator()
				record, err := orch.RunScan(ctx, tenantID, connector.RunSpec{
					Connector:     conn,
					CredentialRef: entry.CredentialRef,
					Config:        connectorFrameworkConfig(entry),
				})
				if err != nil {
					return err
				}
				return printJSON(record)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&name, "name", "", "Connector name, as configured")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newConnectorListCmd(configPath *string, dev *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured connectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, dev, func(ctx context.Context, a *app) error {
				for _, entry := range a.cfg.Connectors {
					fmt.Printf("%-20s %-10s tenant=%s schedule=%s\n", entry.Name, entry.Type, entry.TenantID, entry.Schedule)
				}
				return nil
			})
		},
	}
	return cmd
}

func findConnectorEntry(a *app, name string) (config.ConnectorEntry, error) {
	for _, entry := range a.cfg.Connectors {
		if entry.Name == name {
			return entry, nil
		}
	}
	return config.ConnectorEntry{}, fmt.Errorf("sentinel: no connector named %q in config", name)
}

func newScanCmd(configPath *string, dev *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Manage scan history",
	}
	cmd.AddCommand(newScanStartCmd(configPath, dev))
	cmd.AddCommand(newScanStatusCmd(configPath, dev))
	cmd.AddCommand(newScanCancelCmd(configPath, dev))
	return cmd
}

func newScanStartCmd(configPath *string, dev *bool) *cobra.Command {
	// "scan start" is an alias for "connector run" at the history layer;
	// kept as a separate verb because spec.md §4.7 names scan start/status
	// /cancel as the orchestrator-facing surface, distinct from "connector
	// run" which is connector-facing.
	cmd := newConnectorRunCmd(configPath, dev)
	cmd.Use = "start"
	return cmd
}

func newScanStatusCmd(configPath *string, dev *bool) *cobra.Command {
	var tenant, name string
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent scan history for a tenant/connector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, dev, func(ctx context.Context, a *app) error {
				tenantID, err := parseTenant(tenant)
				if err != nil {
					return err
				}
				records, err := a.history.List(ctx, tenantID, name, limit)
				if err != nil {
					return err
				}
				return printJSON(records)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&name, "name", "", "Connector name filter (empty: all)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max rows to return")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

// newScanCancelCmd requests cooperative cancellation of an in-flight run.
// It only has something to cancel if the run was started by "scan start"
// against this same process (e.g. a long-lived server embedding
// Orchestrator) — a separate CLI invocation has its own empty registry
// and nothing in flight to find, per spec.md §4.7's cooperative-cancel
// model.
func newScanCancelCmd(configPath *string, dev *bool) *cobra.Command {
	var tenant, name string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Request cancellation of an in-flight scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, dev, func(ctx context.Context, a *app) error {
				tenantID, err := parseTenant(tenant)
				if err != nil {
					return err
				}
				if !a.orchestrator().Registry.Cancel(tenantID, name) {
					return fmt.Errorf("sentinel: no in-flight scan for tenant %q connector %q", tenantID, name)
				}
				fmt.Println("cancel requested")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&name, "name", "", "Connector name")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newEngramCmd(configPath *string, dev *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engram",
		Short: "Inspect recorded reasoning sessions",
	}
	cmd.AddCommand(newEngramListCmd(configPath, dev))
	cmd.AddCommand(newEngramShowCmd(configPath, dev))
	cmd.AddCommand(newEngramVerifyCmd(configPath, dev))
	return cmd
}

func newEngramListCmd(configPath *string, dev *bool) *cobra.Command {
	var tenant, agent string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded engram sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, dev, func(ctx context.Context, a *app) error {
				tenantID, err := parseTenant(tenant)
				if err != nil {
					return err
				}
				sessions, err := a.engrams.List(ctx, engram.Query{Tenant: tenantID, AgentID: agent, Limit: limit})
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Printf("%s  agent=%-20s outcome=%-8s started=%s\n", s.ID, s.AgentID, s.Outcome, s.StartedAt.Format("2006-01-02T15:04:05Z"))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&agent, "agent", "", "Agent ID filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max sessions to list")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newEngramShowCmd(configPath *string, dev *bool) *cobra.Command {
	var tenant, id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one engram session as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, dev, func(ctx context.Context, a *app) error {
				sessionID, err := parseSessionID(id)
				if err != nil {
					return err
				}
				tenantID, err := parseTenant(tenant)
				if err != nil {
					return err
				}
				e, err := a.engrams.Get(ctx, tenantID, sessionID)
				if err != nil {
					return err
				}
				return printJSON(e)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&id, "id", "", "Engram session ID")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newEngramVerifyCmd(configPath *string, dev *bool) *cobra.Command {
	var tenant, id string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an engram session's content hash has not been tampered with",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, dev, func(ctx context.Context, a *app) error {
				sessionID, err := parseSessionID(id)
				if err != nil {
					return err
				}
				tenantID, err := parseTenant(tenant)
				if err != nil {
					return err
				}
				_, err = a.engrams.Get(ctx, tenantID, sessionID)
				if err != nil {
					if errors.Is(err, engram.ErrIntegrityViolation) {
						fmt.Println("TAMPERED")
						os.Exit(1)
					}
					return err
				}
				fmt.Println("OK")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&id, "id", "", "Engram session ID")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), versionInfo())
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func connectorFrameworkConfig(entry config.ConnectorEntry) connector.Config {
	return connector.Config{
		Regions: entry.Regions,
	}
}

func parseSessionID(s string) (engram.SessionID, error) {
	var id engram.SessionID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return id, fmt.Errorf("sentinel: invalid engram session id %q: %w", s, err)
	}
	return id, nil
}

func parseTenant(s string) (core.TenantID, error) {
	t, err := core.ParseTenantID(s)
	if err != nil {
		return core.TenantID{}, fmt.Errorf("sentinel: invalid tenant id %q: %w", s, err)
	}
	return t, nil
}
