package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/sitefn/internal/assemble"
	"github.com/driftline/sitefn/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat lint warnings as failures
}

// ValidationReport is the per-definition validation outcome.
type ValidationReport struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Hash     string                 `json:"hash"`
	Warnings []compiler.LintWarning `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <defs-dir>",
		Short: "Validate function definitions without writing output",
		Long: `Validate CUE function definitions.

Every definition is loaded, compiled end to end (the generated text is
discarded) and linted for suspicious input references. Compilation errors
exit with code 2; with --strict, lint warnings exit with code 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat lint warnings as failures")

	return cmd
}

func runValidate(opts *ValidateOptions, defsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

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

	actx := assemble.NewContext()
	actx.Diag = formatter.VerboseLog

	var reports []ValidationReport
	warningCount := 0
	for _, def := range loadResult.Definitions {
		// A full compile pass catches everything loading alone cannot:
		// template grammar, filter lowering, body wrapping.
		if _, err := assemble.Compile(actx, def); err != nil {
			return outputAssembleError(formatter, def.Name, err)
		}

		hash, err := def.Hash()
		if err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing %s: %v", def.Name, err))
		}

		warnings := compiler.LintDefinition(def)
		warningCount += len(warnings)
		reports = append(reports, ValidationReport{
			ID:       def.ID,
			Name:     def.Name,
			Hash:     hash,
			Warnings: warnings,
		})
	}

	if err := outputValidateReports(formatter, reports, warningCount); err != nil {
		return err
	}
	if opts.Strict && warningCount > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d lint warning(s)", warningCount))
	}
	return nil
}

func outputValidateReports(formatter *OutputFormatter, reports []ValidationReport, warningCount int) error {
	if formatter.Format == "json" {
		return formatter.Success(reports)
	}

	if warningCount == 0 {
		fmt.Fprintf(formatter.Writer, "✓ %d function(s) valid\n", len(reports))
	} else {
		fmt.Fprintf(formatter.Writer, "✓ %d function(s) valid, %d warning(s)\n", len(reports), warningCount)
	}
	for _, r := range reports {
		fmt.Fprintf(formatter.Writer, "  %s (%s)\n", r.Name, shortHash(r.Hash))
		for _, w := range r.Warnings {
			fmt.Fprintf(formatter.Writer, "    %s: %s\n", w.Level, w.Message)
		}
	}
	return nil
}
