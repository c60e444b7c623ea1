package assemble

import (
	"fmt"
	"strings"
)

// BodyError is a body-compilation failure with its diagnostic message.
type BodyError struct {
	Message string
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("body compilation failed: %s", e.Message)
}

// ScriptBody is the built-in body compiler: it treats the body as a plain
// script that may define onLoad and/or onEvent functions at its top level,
// and wraps it in a factory returning those hooks. It stands in for the
// external transpiler in development and tests; production deployments
// inject the real transpiler through the BodyCompiler interface.
type ScriptBody struct{}

func (ScriptBody) Compile(body string, target Target) (CompiledBody, error) {
	if strings.TrimSpace(body) == "" {
		return CompiledBody{}, &BodyError{Message: "function body is empty"}
	}

	var b strings.Builder
	b.WriteString("function () {\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("return {\n")
	b.WriteString("  onLoad: typeof onLoad === \"function\" ? onLoad : undefined,\n")
	b.WriteString("  onEvent: typeof onEvent === \"function\" ? onEvent : undefined\n")
	b.WriteString("};\n")
	b.WriteString("}")

	return CompiledBody{
		Factory:    b.String(),
		HasOnLoad:  strings.Contains(body, "onLoad"),
		HasOnEvent: strings.Contains(body, "onEvent"),
	}, nil
}
