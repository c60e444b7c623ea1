package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftline/sitefn/internal/assemble"
	"github.com/driftline/sitefn/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output directory for generated scripts
	Cache  string // artifact cache database path
}

// CompiledFunction describes one generated script.
type CompiledFunction struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Hash    string `json:"hash"`
	Bytes   int    `json:"bytes"`
	Cached  bool   `json:"cached"`
	File    string `json:"file,omitempty"`
	Program string `json:"program,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <defs-dir>",
		Short: "Compile function definitions to browser scripts",
		Long: `Compile CUE function definitions into self-contained browser scripts.

Each definition under the top-level "function" struct produces one script.
Compilation is deterministic; with --cache, unchanged definitions are
served from the artifact cache instead of being regenerated.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "directory to write generated scripts into")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "path to the artifact cache database")

	return cmd
}

func runCompile(opts *CompileOptions, defsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
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

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, defsDir)

	var cache *store.Store
	if opts.Cache != "" {
		var err error
		cache, err = store.Open(opts.Cache)
		if err != nil {
			return outputCommandError(formatter, ErrCodeCache, fmt.Sprintf("opening artifact cache: %v", err))
		}
		defer cache.Close()
	}

	if opts.Output != "" {
		if err := os.MkdirAll(opts.Output, 0755); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("creating output directory: %v", err))
		}
	}

	actx := assemble.NewContext()
	actx.Diag = formatter.VerboseLog

	var compiled []CompiledFunction
	for _, def := range loadResult.Definitions {
		hash, err := def.Hash()
		if err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing %s: %v", def.Name, err))
		}

		entry := CompiledFunction{ID: def.ID, Name: def.Name, Hash: hash}

		var program string
		if cache != nil {
			if hit, err := cache.Get(context.Background(), hash, assemble.Version); err == nil {
				program = hit.Program
				entry.Cached = true
				formatter.VerboseLog("Cache hit for %s (%s)", def.Name, shortHash(hash))
			} else if !errors.Is(err, store.ErrNotFound) {
				return outputCommandError(formatter, ErrCodeCache, fmt.Sprintf("reading artifact cache: %v", err))
			}
		}

		if program == "" {
			program, err = assemble.Compile(actx, def)
			if err != nil {
				return outputAssembleError(formatter, def.Name, err)
			}
			if cache != nil {
				if err := cache.Put(context.Background(), store.Artifact{
					DefinitionHash:  hash,
					CompilerVersion: assemble.Version,
					DefinitionID:    def.ID,
					Program:         program,
				}); err != nil {
					return outputCommandError(formatter, ErrCodeCache, fmt.Sprintf("writing artifact cache: %v", err))
				}
			}
		}

		entry.Bytes = len(program)

		if opts.Output != "" {
			file := filepath.Join(opts.Output, scriptFileName(def.Name))
			if err := os.WriteFile(file, []byte(program), 0644); err != nil {
				return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing %s: %v", file, err))
			}
			entry.File = file
		} else if opts.Format == "json" {
			entry.Program = program
		}

		compiled = append(compiled, entry)
	}

	return outputCompileSuccess(formatter, compiled)
}

func outputCompileSuccess(formatter *OutputFormatter, compiled []CompiledFunction) error {
	if formatter.Format == "json" {
		return formatter.Success(compiled)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d function(s)\n\n", len(compiled))
	for _, c := range compiled {
		source := "generated"
		if c.Cached {
			source = "cached"
		}
		fmt.Fprintf(formatter.Writer, "  %s: %d bytes, %s (%s)\n", c.Name, c.Bytes, source, shortHash(c.Hash))
		if c.File != "" {
			fmt.Fprintf(formatter.Writer, "    wrote %s\n", c.File)
		}
	}
	return nil
}

// outputAssembleError reports a generation failure with its pipeline stage.
func outputAssembleError(formatter *OutputFormatter, name string, err error) error {
	code := ErrCodeGeneric
	var cerr *assemble.CompileError
	if errors.As(err, &cerr) {
		switch cerr.Stage {
		case "body":
			code = ErrCodeBody
		case "filters":
			code = ErrCodeFilters
		case "inputs":
			code = ErrCodeInputs
		case "mapping":
			code = ErrCodeMapping
		}
	}
	_ = formatter.Error(code, fmt.Sprintf("compiling %s: %v", name, err), nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: compiling %s: %v", code, name, err))
}

// outputCommandError outputs a single command-level error (exit code 2).
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputLoadErrors outputs all definition loading errors.
func outputLoadErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseLoadError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		_ = formatter.Error(cliErrors[0].Code, cliErrors[0].Message, cliErrors)
		return NewExitError(ExitCommandError, fmt.Sprintf("loading failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Loading failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		code, message := parseLoadError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("loading failed with %d error(s)", len(errs)))
}

// parseLoadError extracts error code and message from an error.
func parseLoadError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// scriptFileName derives an output file name from a definition name.
func scriptFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, name)
	mapped = strings.Trim(mapped, "-")
	if mapped == "" {
		mapped = "function"
	}
	return mapped + ".js"
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
