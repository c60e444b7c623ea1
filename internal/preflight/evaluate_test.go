package preflight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/sitefn/internal/fndef"
)

var sampleGlobals = []byte(`{
	"event": {
		"event": "$pageview",
		"distinct_id": "u-7",
		"properties": {
			"url": "https://example.test/Docs/intro",
			"duration": 42,
			"plan": "pro",
			"beta": true,
			"referrer": null
		}
	},
	"person": {
		"properties": {
			"email": "dev@internal.test",
			"name": "Ada"
		}
	},
	"groups": {
		"account": {
			"properties": {
				"tier": "enterprise"
			}
		}
	}
}`)

func leaf(c fndef.Condition) fndef.FilterSet {
	return fndef.FilterSet{Tree: fndef.FilterNode{Cond: &c}}
}

func TestEvaluateOperators(t *testing.T) {
	tests := []struct {
		name string
		cond fndef.Condition
		want bool
	}{
		{"exact match", fndef.Condition{Key: "event", PropertyType: fndef.PropertyMeta, Operator: fndef.OpExact, Value: "$pageview"}, true},
		{"exact mismatch", fndef.Condition{Key: "event", PropertyType: fndef.PropertyMeta, Operator: fndef.OpExact, Value: "$click"}, false},
		{"exact type-sensitive", fndef.Condition{Key: "duration", PropertyType: fndef.PropertyEvent, Operator: fndef.OpExact, Value: "42"}, false},
		{"exact number", fndef.Condition{Key: "duration", PropertyType: fndef.PropertyEvent, Operator: fndef.OpExact, Value: 42}, true},
		{"exact bool", fndef.Condition{Key: "beta", PropertyType: fndef.PropertyEvent, Operator: fndef.OpExact, Value: true}, true},
		{"is_not", fndef.Condition{Key: "plan", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIsNot, Value: "free"}, true},
		{"icontains case-insensitive", fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIContains, Value: "/docs/"}, true},
		{"icontains miss", fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIContains, Value: "/pricing"}, false},
		{"not_icontains", fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpNotIContains, Value: "/pricing"}, true},
		{"regex", fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpRegex, Value: `/[Dd]ocs/`}, true},
		{"not_regex", fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpNotRegex, Value: `^ftp:`}, true},
		{"gt", fndef.Condition{Key: "duration", PropertyType: fndef.PropertyEvent, Operator: fndef.OpGt, Value: 40}, true},
		{"gte boundary", fndef.Condition{Key: "duration", PropertyType: fndef.PropertyEvent, Operator: fndef.OpGte, Value: 42}, true},
		{"lt miss", fndef.Condition{Key: "duration", PropertyType: fndef.PropertyEvent, Operator: fndef.OpLt, Value: 42}, false},
		{"lte", fndef.Condition{Key: "duration", PropertyType: fndef.PropertyEvent, Operator: fndef.OpLte, Value: 42}, true},
		{"ordered text", fndef.Condition{Key: "plan", PropertyType: fndef.PropertyEvent, Operator: fndef.OpGt, Value: "basic"}, true},
		{"is_set", fndef.Condition{Key: "plan", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIsSet}, true},
		{"is_set on null", fndef.Condition{Key: "referrer", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIsSet}, false},
		{"is_not_set on missing", fndef.Condition{Key: "utm_source", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIsNotSet}, true},
		{"in", fndef.Condition{Key: "plan", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIn, Value: []any{"free", "pro"}}, true},
		{"not_in", fndef.Condition{Key: "plan", PropertyType: fndef.PropertyEvent, Operator: fndef.OpNotIn, Value: []any{"free", "trial"}}, true},
		{"person property", fndef.Condition{Key: "name", PropertyType: fndef.PropertyPerson, Operator: fndef.OpExact, Value: "Ada"}, true},
		{"group property", fndef.Condition{Key: "account.tier", PropertyType: fndef.PropertyGroup, Operator: fndef.OpExact, Value: "enterprise"}, true},
		{"missing key exact", fndef.Condition{Key: "utm_source", PropertyType: fndef.PropertyEvent, Operator: fndef.OpExact, Value: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Evaluate(leaf(tt.cond), nil, sampleGlobals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Matched)
		})
	}
}

func TestEvaluateCombinators(t *testing.T) {
	pageview := fndef.Condition{Key: "event", PropertyType: fndef.PropertyMeta, Operator: fndef.OpExact, Value: "$pageview"}
	click := fndef.Condition{Key: "event", PropertyType: fndef.PropertyMeta, Operator: fndef.OpExact, Value: "$click"}
	docs := fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIContains, Value: "/docs"}

	tests := []struct {
		name string
		tree fndef.FilterNode
		want bool
	}{
		{
			"AND all match",
			fndef.FilterNode{Op: fndef.BoolAnd, Children: []fndef.FilterNode{{Cond: &pageview}, {Cond: &docs}}},
			true,
		},
		{
			"AND one fails",
			fndef.FilterNode{Op: fndef.BoolAnd, Children: []fndef.FilterNode{{Cond: &pageview}, {Cond: &click}}},
			false,
		},
		{
			"OR one matches",
			fndef.FilterNode{Op: fndef.BoolOr, Children: []fndef.FilterNode{{Cond: &click}, {Cond: &docs}}},
			true,
		},
		{
			"nested OR under AND",
			fndef.FilterNode{Op: fndef.BoolAnd, Children: []fndef.FilterNode{
				{Cond: &pageview},
				{Op: fndef.BoolOr, Children: []fndef.FilterNode{{Cond: &click}, {Cond: &docs}}},
			}},
			true,
		},
		{"empty tree matches", fndef.FilterNode{}, true},
		{"empty children pruned", fndef.FilterNode{Op: fndef.BoolOr, Children: []fndef.FilterNode{{}, {}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Evaluate(fndef.FilterSet{Tree: tt.tree}, nil, sampleGlobals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Matched)
		})
	}
}

func TestEvaluateShortCircuitTrace(t *testing.T) {
	click := fndef.Condition{Key: "event", PropertyType: fndef.PropertyMeta, Operator: fndef.OpExact, Value: "$click"}
	docs := fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIContains, Value: "/docs"}

	res, err := Evaluate(fndef.FilterSet{Tree: fndef.FilterNode{
		Op:       fndef.BoolAnd,
		Children: []fndef.FilterNode{{Cond: &click}, {Cond: &docs}},
	}}, nil, sampleGlobals)
	require.NoError(t, err)

	assert.False(t, res.Matched)
	// AND short-circuits: the second condition is never evaluated.
	require.Len(t, res.Trace, 1)
	assert.Equal(t, click, res.Trace[0].Condition)
	assert.False(t, res.Trace[0].Matched)
}

func TestEvaluateTestAccountExclusion(t *testing.T) {
	pageview := fndef.Condition{Key: "event", PropertyType: fndef.PropertyMeta, Operator: fndef.OpExact, Value: "$pageview"}
	noInternal := fndef.Condition{Key: "email", PropertyType: fndef.PropertyPerson, Operator: fndef.OpNotIContains, Value: "@internal.test"}

	fs := fndef.FilterSet{Tree: fndef.FilterNode{Cond: &pageview}, FilterTestAccounts: true}

	res, err := Evaluate(fs, []fndef.Condition{noInternal}, sampleGlobals)
	require.NoError(t, err)
	assert.False(t, res.Matched, "internal test account must be excluded")

	// Same filter without the flag ignores the tenant conditions.
	fs.FilterTestAccounts = false
	res, err = Evaluate(fs, []fndef.Condition{noInternal}, sampleGlobals)
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		cond fndef.Condition
	}{
		{"unknown operator", fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: "fuzzy", Value: "x"}},
		{"unknown property type", fndef.Condition{Key: "url", PropertyType: "cookie", Operator: fndef.OpExact, Value: "x"}},
		{"bad group key", fndef.Condition{Key: "account", PropertyType: fndef.PropertyGroup, Operator: fndef.OpExact, Value: "x"}},
		{"invalid regex", fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpRegex, Value: "("}},
		{"in without array", fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIn, Value: "x"}},
		{"icontains without string", fndef.Condition{Key: "url", PropertyType: fndef.PropertyEvent, Operator: fndef.OpIContains, Value: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(leaf(tt.cond), nil, sampleGlobals)
			require.Error(t, err)
			var eerr *EvalError
			assert.ErrorAs(t, err, &eerr)
		})
	}
}

func TestEvaluateMetaKeyWithDots(t *testing.T) {
	globals := []byte(`{"event": {"app.version": "2.1.0"}}`)
	cond := fndef.Condition{Key: "app.version", PropertyType: fndef.PropertyMeta, Operator: fndef.OpExact, Value: "2.1.0"}

	res, err := Evaluate(leaf(cond), nil, globals)
	require.NoError(t, err)
	assert.True(t, res.Matched)
}
