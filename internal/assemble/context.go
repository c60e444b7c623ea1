package assemble

import (
	"fmt"

	"github.com/driftline/sitefn/internal/fndef"
)

// Target tags which lifecycle-hook surface convention the body compiler
// should produce.
type Target string

const (
	// TargetSite is the browser-script surface (onLoad/onEvent factory).
	TargetSite Target = "site"
	// TargetServer is the trusted-evaluator surface. The evaluator itself
	// is an external collaborator; the tag exists so one BodyCompiler can
	// serve both pipelines.
	TargetServer Target = "server"
)

// CompiledBody is the body compiler's output: an opaque factory expression
// whose invocation yields an object potentially exposing onLoad/onEvent,
// plus which hooks the body exposes. The assembler splices Factory in
// verbatim; it never parses the body.
type CompiledBody struct {
	Factory    string
	HasOnLoad  bool
	HasOnEvent bool
}

// BodyCompiler is the external body-to-script transpiler, injected as a
// strategy so the rest of the pipeline stays testable without it.
type BodyCompiler interface {
	Compile(body string, target Target) (CompiledBody, error)
}

// BodyCompilerFunc adapts a function to the BodyCompiler interface.
type BodyCompilerFunc func(body string, target Target) (CompiledBody, error)

func (f BodyCompilerFunc) Compile(body string, target Target) (CompiledBody, error) {
	return f(body, target)
}

// Context carries everything a compilation pass needs: the target tag, the
// body compiler, the tenant's test-account exclusion conditions, and a
// diagnostic sink. It is passed explicitly through every call; there is no
// module-level dispatch state.
type Context struct {
	Target Target
	Body   BodyCompiler
	// TestAccountConditions are the per-tenant conditions folded into any
	// filter with FilterTestAccounts set.
	TestAccountConditions []fndef.Condition
	// Diag receives compilation progress diagnostics. May be nil.
	Diag func(format string, args ...any)
}

// NewContext returns a site-target context with the default script body
// compiler and no diagnostics.
func NewContext() *Context {
	return &Context{Target: TargetSite, Body: ScriptBody{}}
}

func (c *Context) diagf(format string, args ...any) {
	if c.Diag != nil {
		c.Diag(format, args...)
	}
}

func (c *Context) bodyCompiler() (BodyCompiler, error) {
	if c.Body == nil {
		return nil, fmt.Errorf("context has no body compiler")
	}
	return c.Body, nil
}
