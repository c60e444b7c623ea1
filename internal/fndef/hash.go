package fndef

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for content-addressed identity. The version suffix enables
// future algorithm migration without colliding with old hashes.
const DomainDefinition = "sitefn/definition/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content hash of a definition. Because compilation is
// byte-deterministic, this hash is a valid cache key for the compiled
// program text: equal hash implies equal output.
//
// The ID is intentionally EXCLUDED: the hash identifies "what the function
// does", so a re-created definition with identical content hits the same
// cache entry.
func (d *FunctionDefinition) Hash() (string, error) {
	canonical, err := MarshalCanonical(d.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("definition hash: %w", err)
	}
	return hashWithDomain(DomainDefinition, canonical), nil
}

// MustHash is like Hash but panics on error. Use only in tests or when the
// definition is known to be canonically representable.
func (d *FunctionDefinition) MustHash() string {
	h, err := d.Hash()
	if err != nil {
		panic(err)
	}
	return h
}

// canonicalMap lowers the definition into plain maps/slices for canonical
// marshaling. Structure changes here are hash-breaking; bump
// DomainDefinition when making one.
func (d *FunctionDefinition) canonicalMap() map[string]any {
	m := map[string]any{
		"body":    d.Body,
		"filters": filterSetMap(d.Filters),
		"inputs":  inputsMap(d.Inputs),
	}
	if d.Name != "" {
		m["name"] = d.Name
	}
	if len(d.InputsSchema) > 0 {
		schema := make([]any, len(d.InputsSchema))
		for i, s := range d.InputsSchema {
			schema[i] = inputSpecMap(s)
		}
		m["inputs_schema"] = schema
	}
	if len(d.Mappings) > 0 {
		mappings := make([]any, len(d.Mappings))
		for i, mp := range d.Mappings {
			mappings[i] = mappingMap(mp)
		}
		m["mappings"] = mappings
	}
	return m
}

func inputSpecMap(s InputSpec) map[string]any {
	m := map[string]any{
		"key":      s.Key,
		"type":     string(s.Type),
		"required": s.Required,
		"secret":   s.Secret,
	}
	if s.Default != nil {
		m["default"] = s.Default
	}
	if len(s.Choices) > 0 {
		m["choices"] = append([]any(nil), s.Choices...)
	}
	return m
}

func inputsMap(inputs map[string]InputValue) map[string]any {
	m := make(map[string]any, len(inputs))
	for k, iv := range inputs {
		m[k] = map[string]any{
			"value": iv.Value,
			"order": iv.Order,
			"rank":  iv.Rank,
		}
	}
	return m
}

func filterSetMap(f FilterSet) map[string]any {
	return map[string]any{
		"tree":                 filterNodeMap(f.Tree),
		"filter_test_accounts": f.FilterTestAccounts,
	}
}

func filterNodeMap(n FilterNode) map[string]any {
	if n.Cond != nil {
		m := map[string]any{
			"key":           n.Cond.Key,
			"property_type": string(n.Cond.PropertyType),
			"operator":      string(n.Cond.Operator),
		}
		if n.Cond.Value != nil {
			m["value"] = n.Cond.Value
		}
		return m
	}
	children := make([]any, len(n.Children))
	for i, c := range n.Children {
		children[i] = filterNodeMap(c)
	}
	op := n.Op
	if op == "" {
		op = BoolAnd
	}
	return map[string]any{
		"type":   string(op),
		"values": children,
	}
}

func mappingMap(m Mapping) map[string]any {
	out := map[string]any{
		"disabled": m.Disabled,
		"filters":  filterNodeMap(m.Filters),
		"inputs":   inputsMap(m.Inputs),
	}
	if m.Name != "" {
		out["name"] = m.Name
	}
	return out
}
