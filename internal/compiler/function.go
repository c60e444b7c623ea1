package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"

	"github.com/driftline/sitefn/internal/fndef"
)

// CompileFunction parses a CUE value into a FunctionDefinition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the function struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`function: banner: { ... }`)
//	def, err := CompileFunction(v.LookupPath(cue.ParsePath("function.banner")))
func CompileFunction(v cue.Value) (*fndef.FunctionDefinition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &fndef.FunctionDefinition{}

	// Default the display name to the struct label (the path selector).
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Name = name
	}

	// An authored id is kept; a missing one gets a fresh UUIDv7. The id is
	// identity only, it never participates in the content hash.
	idVal := v.LookupPath(cue.ParsePath("id"))
	if idVal.Exists() {
		id, err := idVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.ID = id
	} else {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("assigning definition id: %w", err)
		}
		def.ID = id.String()
	}

	// Parse body (required)
	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return nil, &CompileError{
			Field:   "body",
			Message: "body is required",
			Pos:     v.Pos(),
		}
	}
	body, err := bodyVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	def.Body = body

	def.InputsSchema, err = parseInputsSchema(v)
	if err != nil {
		return nil, err
	}

	def.Inputs, err = parseInputs(v.LookupPath(cue.ParsePath("inputs")), "inputs")
	if err != nil {
		return nil, err
	}

	filtersVal := v.LookupPath(cue.ParsePath("filters"))
	if filtersVal.Exists() {
		def.Filters, err = parseFilterSet(filtersVal)
		if err != nil {
			return nil, err
		}
	}

	def.Mappings, err = parseMappings(v)
	if err != nil {
		return nil, err
	}

	return def, nil
}

// parseInputs extracts the input value map. Each input is a struct carrying
// a required value and an optional order; the declaration index becomes the
// rank so emission order is a stable sort over the authored source.
func parseInputs(v cue.Value, field string) (map[string]fndef.InputValue, error) {
	if !v.Exists() {
		return nil, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	inputs := make(map[string]fndef.InputValue)
	rank := 0
	for iter.Next() {
		key := iter.Label()
		entry := iter.Value()

		valueVal := entry.LookupPath(cue.ParsePath("value"))
		if !valueVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.%s", field, key),
				Message: "input must be a struct with a value field",
				Pos:     entry.Pos(),
			}
		}
		value, err := decodeAny(valueVal)
		if err != nil {
			return nil, err
		}

		iv := fndef.InputValue{Value: value, Rank: rank}
		orderVal := entry.LookupPath(cue.ParsePath("order"))
		if orderVal.Exists() {
			order, err := orderVal.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			iv.Order = int(order)
		}

		inputs[key] = iv
		rank++
	}
	return inputs, nil
}

// parseInputsSchema extracts the typed input slot declarations.
func parseInputsSchema(v cue.Value) ([]fndef.InputSpec, error) {
	schemaVal := v.LookupPath(cue.ParsePath("inputs_schema"))
	if !schemaVal.Exists() {
		return nil, nil
	}

	iter, err := schemaVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []fndef.InputSpec
	for iter.Next() {
		specVal := iter.Value()

		key, err := specVal.LookupPath(cue.ParsePath("key")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		typStr, err := specVal.LookupPath(cue.ParsePath("type")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		typ := fndef.InputType(typStr)
		if !fndef.ValidInputTypes[typ] {
			return nil, &CompileError{
				Field:   fmt.Sprintf("inputs_schema.%s", key),
				Message: fmt.Sprintf("unknown input type %q", typStr),
				Pos:     specVal.Pos(),
			}
		}

		spec := fndef.InputSpec{Key: key, Type: typ}

		if req := specVal.LookupPath(cue.ParsePath("required")); req.Exists() {
			spec.Required, err = req.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}
		if sec := specVal.LookupPath(cue.ParsePath("secret")); sec.Exists() {
			spec.Secret, err = sec.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}
		if def := specVal.LookupPath(cue.ParsePath("default")); def.Exists() {
			spec.Default, err = decodeAny(def)
			if err != nil {
				return nil, err
			}
		}
		if choices := specVal.LookupPath(cue.ParsePath("choices")); choices.Exists() {
			decoded, err := decodeAny(choices)
			if err != nil {
				return nil, err
			}
			list, ok := decoded.([]any)
			if !ok {
				return nil, &CompileError{
					Field:   fmt.Sprintf("inputs_schema.%s.choices", key),
					Message: "choices must be a list",
					Pos:     choices.Pos(),
				}
			}
			spec.Choices = list
		}
		if typ == fndef.InputTypeChoice && len(spec.Choices) == 0 {
			return nil, &CompileError{
				Field:   fmt.Sprintf("inputs_schema.%s", key),
				Message: "choice inputs require a non-empty choices list",
				Pos:     specVal.Pos(),
			}
		}

		specs = append(specs, spec)
	}
	return specs, nil
}

// parseFilterSet extracts the top-level filter: the tree plus the
// test-account exclusion flag.
func parseFilterSet(v cue.Value) (fndef.FilterSet, error) {
	var fs fndef.FilterSet

	ftaVal := v.LookupPath(cue.ParsePath("filter_test_accounts"))
	if ftaVal.Exists() {
		fta, err := ftaVal.Bool()
		if err != nil {
			return fs, formatCUEError(err)
		}
		fs.FilterTestAccounts = fta
	}

	treeVal := v.LookupPath(cue.ParsePath("tree"))
	if treeVal.Exists() {
		tree, err := parseFilterNode(treeVal)
		if err != nil {
			return fs, err
		}
		fs.Tree = tree
	}

	return fs, nil
}

// parseFilterNode parses one filter subtree. A struct with a key field is a
// condition leaf; otherwise it is a combinator with a type and values list.
func parseFilterNode(v cue.Value) (fndef.FilterNode, error) {
	var node fndef.FilterNode

	if v.LookupPath(cue.ParsePath("key")).Exists() {
		cond, err := parseCondition(v)
		if err != nil {
			return node, err
		}
		node.Cond = &cond
		return node, nil
	}

	node.Op = fndef.BoolAnd
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if typeVal.Exists() {
		typ, err := typeVal.String()
		if err != nil {
			return node, formatCUEError(err)
		}
		op := fndef.BoolOp(typ)
		if op != fndef.BoolAnd && op != fndef.BoolOr {
			return node, &CompileError{
				Field:   "filters",
				Message: fmt.Sprintf("unknown combinator %q", typ),
				Pos:     typeVal.Pos(),
			}
		}
		node.Op = op
	}

	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if valuesVal.Exists() {
		iter, err := valuesVal.List()
		if err != nil {
			return node, formatCUEError(err)
		}
		for iter.Next() {
			child, err := parseFilterNode(iter.Value())
			if err != nil {
				return node, err
			}
			node.Children = append(node.Children, child)
		}
	}

	return node, nil
}

// parseCondition parses one comparison leaf. Operators and property types
// are validated here so malformed trees fail at load time with a source
// position instead of deep inside the filter compiler.
func parseCondition(v cue.Value) (fndef.Condition, error) {
	var cond fndef.Condition

	key, err := v.LookupPath(cue.ParsePath("key")).String()
	if err != nil {
		return cond, formatCUEError(err)
	}
	cond.Key = key

	opVal := v.LookupPath(cue.ParsePath("operator"))
	if !opVal.Exists() {
		return cond, &CompileError{
			Field:   fmt.Sprintf("filters.%s", key),
			Message: "condition operator is required",
			Pos:     v.Pos(),
		}
	}
	opStr, err := opVal.String()
	if err != nil {
		return cond, formatCUEError(err)
	}
	cond.Operator = fndef.Operator(opStr)
	if !fndef.ValidOperators[cond.Operator] {
		return cond, &CompileError{
			Field:   fmt.Sprintf("filters.%s", key),
			Message: fmt.Sprintf("unknown operator %q", opStr),
			Pos:     opVal.Pos(),
		}
	}

	cond.PropertyType = fndef.PropertyEvent
	ptVal := v.LookupPath(cue.ParsePath("property_type"))
	if ptVal.Exists() {
		ptStr, err := ptVal.String()
		if err != nil {
			return cond, formatCUEError(err)
		}
		cond.PropertyType = fndef.PropertyType(ptStr)
		if !fndef.ValidPropertyTypes[cond.PropertyType] {
			return cond, &CompileError{
				Field:   fmt.Sprintf("filters.%s", key),
				Message: fmt.Sprintf("unknown property type %q", ptStr),
				Pos:     ptVal.Pos(),
			}
		}
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if valueVal.Exists() {
		cond.Value, err = decodeAny(valueVal)
		if err != nil {
			return cond, err
		}
	}

	return cond, nil
}

// parseMappings extracts the mapping list.
func parseMappings(v cue.Value) ([]fndef.Mapping, error) {
	mappingsVal := v.LookupPath(cue.ParsePath("mappings"))
	if !mappingsVal.Exists() {
		return nil, nil
	}

	iter, err := mappingsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var mappings []fndef.Mapping
	for iter.Next() {
		mVal := iter.Value()
		var m fndef.Mapping

		if nameVal := mVal.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
			m.Name, err = nameVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}
		if disVal := mVal.LookupPath(cue.ParsePath("disabled")); disVal.Exists() {
			m.Disabled, err = disVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}

		m.Inputs, err = parseInputs(mVal.LookupPath(cue.ParsePath("inputs")), fmt.Sprintf("mappings.%s.inputs", m.Name))
		if err != nil {
			return nil, err
		}

		if fVal := mVal.LookupPath(cue.ParsePath("filters")); fVal.Exists() {
			m.Filters, err = parseFilterNode(fVal)
			if err != nil {
				return nil, err
			}
		}

		mappings = append(mappings, m)
	}
	return mappings, nil
}

// decodeAny converts a concrete CUE value to its Go representation.
func decodeAny(v cue.Value) (any, error) {
	var out any
	if err := v.Decode(&out); err != nil {
		return nil, formatCUEError(err)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
