package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sentinel/discovery-engine/internal/config"
)

// DoctorResult is the structured output of "sentinel doctor". It can be
// rendered as JSON via --format=json or as a human-readable table
// (default).
type DoctorResult struct {
	Config struct {
		Path  string `json:"path"`
		Valid bool   `json:"valid"`
		Error string `json:"error,omitempty"`
	} `json:"config"`

	Graph struct {
		Reachable bool   `json:"reachable"`
		Error     string `json:"error,omitempty"`
	} `json:"graph"`

	Postgres struct {
		Reachable bool   `json:"reachable"`
		Error     string `json:"error,omitempty"`
	} `json:"postgres"`

	Connectors struct {
		Count            int      `json:"count"`
		CredentialErrors []string `json:"credential_errors,omitempty"`
	} `json:"connectors"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd(configPath *string, dev *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			logger, err := buildLogger(*dev)
			if err != nil {
				return err
			}
			defer logger.Sync()

			result, err := runDoctor(context.Background(), *configPath, logger, cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	return cmd
}

// runDoctor collects all diagnostic results and renders them to w. The
// returned error covers only rendering failures; callers inspect
// result.OverallHealthy to determine environment health.
func runDoctor(ctx context.Context, configPath string, logger *zap.Logger, w io.Writer, format string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, configPath, logger)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("sentinel: encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}
	return result, nil
}

func collectDoctorResult(ctx context.Context, configPath string, logger *zap.Logger) DoctorResult {
	var result DoctorResult

	loader, err := config.NewFileLoader(configPath)
	if err != nil {
		result.Config.Error = err.Error()
		return result
	}
	result.Config.Path = loader.ConfigPath()
	cfg, err := loader.Load()
	if err != nil {
		result.Config.Error = err.Error()
		return result
	}
	result.Config.Valid = true
	result.Connectors.Count = len(cfg.Connectors)

	// newApp dials the graph store and Postgres and verifies connectivity
	// as part of construction (graph.New / postgres.Open), so a
	// successful build is itself the health signal for those two.
	a, err := newApp(ctx, configPath, logger)
	if err != nil {
		msg := err.Error()
		result.Graph.Error = msg
		result.Postgres.Error = msg
	} else {
		result.Graph.Reachable = true
		result.Postgres.Reachable = true
		defer a.close()

		for _, entry := range cfg.Connectors {
			if _, err := a.secrets.Resolve(ctx, entry.CredentialRef); err != nil {
				result.Connectors.CredentialErrors = append(result.Connectors.CredentialErrors,
					fmt.Sprintf("%s: %s", entry.Name, err))
			}
		}
	}

	result.OverallHealthy = result.Config.Valid && result.Graph.Reachable &&
		result.Postgres.Reachable && len(result.Connectors.CredentialErrors) == 0
	return result
}

func renderDoctorTable(r DoctorResult, w io.Writer) {
	fmt.Fprintf(w, "config:     %s\n", checkLine(r.Config.Valid, r.Config.Error))
	fmt.Fprintf(w, "graph:      %s\n", checkLine(r.Graph.Reachable, r.Graph.Error))
	fmt.Fprintf(w, "postgres:   %s\n", checkLine(r.Postgres.Reachable, r.Postgres.Error))
	fmt.Fprintf(w, "connectors: %d configured\n", r.Connectors.Count)
	for _, e := range r.Connectors.CredentialErrors {
		fmt.Fprintf(w, "  credential error: %s\n", e)
	}
	if r.OverallHealthy {
		fmt.Fprintln(w, "overall:    OK")
	} else {
		fmt.Fprintln(w, "overall:    UNHEALTHY")
	}
}

func checkLine(ok bool, errMsg string) string {
	if ok {
		return "OK"
	}
	if errMsg == "" {
		return "FAIL"
	}
	return "FAIL: " + errMsg
}
