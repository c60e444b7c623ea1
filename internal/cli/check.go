package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/sitefn/internal/preflight"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Scenarios string // scenario file path
}

// CheckReport is the per-definition scenario outcome.
type CheckReport struct {
	ID      string                     `json:"id"`
	Name    string                     `json:"name"`
	Results []preflight.ScenarioResult `json:"results"`
	Failed  int                        `json:"failed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <defs-dir>",
		Short: "Check filter matching against sample scenarios",
		Long: `Check function definition filters against YAML scenarios.

Each scenario carries a sample event (plus optional person and groups)
and the expected match outcome. The filters are evaluated directly,
without generating or running any script. Mismatches exit with code 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Scenarios, "scenarios", "s", "", "YAML scenario file (required)")
	_ = cmd.MarkFlagRequired("scenarios")

	return cmd
}

func runCheck(opts *CheckOptions, defsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenarios, err := preflight.LoadScenarios(opts.Scenarios)
	if err != nil {
		return outputCommandError(formatter, ErrCodeScenario, err.Error())
	}
	formatter.VerboseLog("Loaded %d scenario(s) from %s", len(scenarios), opts.Scenarios)

	loadResult, loadErrors := LoadDefinitions(defsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCommandError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputCommandError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, loadErrors)
	}

	var reports []CheckReport
	totalFailed := 0
	for _, def := range loadResult.Definitions {
		results, err := preflight.RunScenarios(def, nil, scenarios)
		if err != nil {
			return outputCommandError(formatter, ErrCodeFilters, fmt.Sprintf("checking %s: %v", def.Name, err))
		}

		report := CheckReport{ID: def.ID, Name: def.Name, Results: results}
		for _, r := range results {
			if !r.Pass() {
				report.Failed++
			}
		}
		totalFailed += report.Failed
		reports = append(reports, report)
	}

	if err := outputCheckReports(formatter, reports, totalFailed); err != nil {
		return err
	}
	if totalFailed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario expectation(s) failed", totalFailed))
	}
	return nil
}

func outputCheckReports(formatter *OutputFormatter, reports []CheckReport, totalFailed int) error {
	if formatter.Format == "json" {
		return formatter.Success(reports)
	}

	if totalFailed == 0 {
		fmt.Fprintln(formatter.Writer, "✓ All scenario expectations hold")
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %d scenario expectation(s) failed\n", totalFailed)
	}
	for _, report := range reports {
		fmt.Fprintf(formatter.Writer, "  %s:\n", report.Name)
		for _, r := range report.Results {
			mark := "✓"
			if !r.Pass() {
				mark = "✗"
			}
			fmt.Fprintf(formatter.Writer, "    %s %s (expected match=%v, got match=%v)\n",
				mark, r.Scenario, r.Expected, r.Actual)
			if !r.Pass() && formatter.Verbose {
				for _, c := range r.Trace {
					fmt.Fprintf(formatter.Writer, "      condition %s %s -> %v\n",
						c.Condition.Key, c.Condition.Operator, c.Matched)
				}
			}
		}
	}
	return nil
}
