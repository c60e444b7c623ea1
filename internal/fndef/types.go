package fndef

import "sort"

// InputType enumerates the declared types an input slot may carry.
type InputType string

const (
	InputTypeString     InputType = "string"
	InputTypeBoolean    InputType = "boolean"
	InputTypeDictionary InputType = "dictionary"
	InputTypeChoice     InputType = "choice"
	InputTypeJSON       InputType = "json"
)

// ValidInputTypes defines the allowed input types.
var ValidInputTypes = map[InputType]bool{
	InputTypeString:     true,
	InputTypeBoolean:    true,
	InputTypeDictionary: true,
	InputTypeChoice:     true,
	InputTypeJSON:       true,
}

// InputSpec declares one typed input slot of a function definition.
// Secret marks a slot whose value must never appear in a browser artifact;
// the site assembler rejects definitions that bind a value to one.
type InputSpec struct {
	Key      string    `json:"key"`
	Type     InputType `json:"type"`
	Required bool      `json:"required,omitempty"`
	Secret   bool      `json:"secret,omitempty"`
	Default  any       `json:"default,omitempty"`
	Choices  []any     `json:"choices,omitempty"` // only for type=choice
}

// InputValue carries the author-supplied value for one input key.
//
// Order is the author-assigned resolution rank. Rank is the declaration
// index assigned by the loader; it breaks Order ties so that emission
// order is a stable sort over the authored source. Later inputs may read
// earlier computed inputs through the "inputs" global, so this ordering
// is semantic, not cosmetic.
type InputValue struct {
	Value any `json:"value"`
	Order int `json:"order"`
	Rank  int `json:"rank"`
}

// BoolOp is a filter-tree combinator.
type BoolOp string

const (
	BoolAnd BoolOp = "AND"
	BoolOr  BoolOp = "OR"
)

// Operator enumerates the fixed condition operator set.
type Operator string

const (
	OpExact        Operator = "exact"
	OpIsNot        Operator = "is_not"
	OpIContains    Operator = "icontains"
	OpNotIContains Operator = "not_icontains"
	OpRegex        Operator = "regex"
	OpNotRegex     Operator = "not_regex"
	OpGt           Operator = "gt"
	OpGte          Operator = "gte"
	OpLt           Operator = "lt"
	OpLte          Operator = "lte"
	OpIsSet        Operator = "is_set"
	OpIsNotSet     Operator = "is_not_set"
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
)

// ValidOperators defines the allowed condition operators.
var ValidOperators = map[Operator]bool{
	OpExact: true, OpIsNot: true,
	OpIContains: true, OpNotIContains: true,
	OpRegex: true, OpNotRegex: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIsSet: true, OpIsNotSet: true,
	OpIn: true, OpNotIn: true,
}

// PropertyType selects which runtime global a condition reads.
type PropertyType string

const (
	// PropertyMeta reads event-record fields (event, distinct_id, timestamp).
	PropertyMeta PropertyType = "meta"
	// PropertyEvent reads event.properties.
	PropertyEvent PropertyType = "event"
	// PropertyPerson reads person.properties.
	PropertyPerson PropertyType = "person"
	// PropertyGroup reads groups.<group>.properties; the condition key is
	// "<group>.<property>".
	PropertyGroup PropertyType = "group"
)

// ValidPropertyTypes defines the allowed condition property types.
var ValidPropertyTypes = map[PropertyType]bool{
	PropertyMeta:   true,
	PropertyEvent:  true,
	PropertyPerson: true,
	PropertyGroup:  true,
}

// Condition is a single comparison leaf of a filter tree.
type Condition struct {
	Key          string       `json:"key"`
	PropertyType PropertyType `json:"property_type"`
	Operator     Operator     `json:"operator"`
	Value        any          `json:"value,omitempty"`
}

// FilterNode is either a combinator (Op set, Children possibly empty) or a
// condition leaf (Cond set). The zero value is an empty AND node, which
// compiles to the constant true.
type FilterNode struct {
	Op       BoolOp       `json:"type,omitempty"`
	Children []FilterNode `json:"values,omitempty"`
	Cond     *Condition   `json:"condition,omitempty"`
}

// IsLeaf reports whether the node is a condition leaf.
func (n FilterNode) IsLeaf() bool { return n.Cond != nil }

// Empty reports whether the subtree contains no conditions at all.
func (n FilterNode) Empty() bool {
	if n.Cond != nil {
		return false
	}
	for _, c := range n.Children {
		if !c.Empty() {
			return false
		}
	}
	return true
}

// FilterSet is the top-level filter of a definition or mapping: a tree plus
// the per-tenant test-account exclusion flag.
type FilterSet struct {
	Tree               FilterNode `json:"tree"`
	FilterTestAccounts bool       `json:"filter_test_accounts,omitempty"`
}

// Mapping is a sub-rule reusing the function body with its own filter and
// input overrides. Disabled mappings are compiled out entirely.
type Mapping struct {
	Name     string                `json:"name,omitempty"`
	Inputs   map[string]InputValue `json:"inputs,omitempty"`
	Filters  FilterNode            `json:"filters,omitempty"`
	Disabled bool                  `json:"disabled,omitempty"`
}

// FunctionDefinition is the declarative record compiled by this subsystem.
// It is immutable once compiled; edits produce a new definition which is
// recompiled from scratch.
type FunctionDefinition struct {
	ID           string                `json:"id"`
	Name         string                `json:"name,omitempty"`
	Body         string                `json:"body"`
	Filters      FilterSet             `json:"filters"`
	InputsSchema []InputSpec           `json:"inputs_schema,omitempty"`
	Inputs       map[string]InputValue `json:"inputs,omitempty"`
	Mappings     []Mapping             `json:"mappings,omitempty"`
}

// OrderedInputKeys returns the keys of inputs sorted by ascending Order,
// with declaration Rank breaking ties and the key itself as a final
// tiebreaker for programmatically built maps that never set Rank.
func OrderedInputKeys(inputs map[string]InputValue) []string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := inputs[keys[i]], inputs[keys[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return keys[i] < keys[j]
	})
	return keys
}

// EnabledMappings returns the definition's mappings with disabled entries
// removed, preserving declaration order.
func (d *FunctionDefinition) EnabledMappings() []Mapping {
	out := make([]Mapping, 0, len(d.Mappings))
	for _, m := range d.Mappings {
		if !m.Disabled {
			out = append(out, m)
		}
	}
	return out
}
