package parser_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/parser"
)

func ptr[T any](v T) *T { return &v }

func TestParse_NotJSON(t *testing.T) {
	_, err := parser.Parse("not json")
	var target *domain.MalformedResponseError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "not json", target.Raw)
}

func TestDecode_RejectsTrailingProse(t *testing.T) {
	_, err := parser.Decode(`{"entity":"product"} here you go`)
	var target *domain.MalformedResponseError
	require.ErrorAs(t, err, &target)
}

func TestDecode_ToleratesWhitespaceAndFence(t *testing.T) {
	for _, raw := range []string{
		"  {\"a\":1}\n\n",
		"```json\n{\"a\":1}\n```",
		"```\n{\"a\":1}\n```",
	} {
		v, err := parser.Decode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, map[string]any{"a": 1.0}, v)
	}
}

func TestNormalize(t *testing.T) {
	in := map[string]any{"entity": "  Product ", "action": "UPDATE", "data": map[string]any{"name": "KEEP"}}
	out := parser.Normalize(in)

	assert.Equal(t, map[string]any{"entity": "product", "action": "update", "data": map[string]any{"name": "KEEP"}}, out)
	assert.Equal(t, "  Product ", in["entity"], "input must not be modified")

	assert.Equal(t, []any{1.0}, parser.Normalize([]any{1.0}))
	assert.Equal(t, map[string]any{"entity": 3.0}, parser.Normalize(map[string]any{"entity": 3.0}))
}

func TestParse_Widget(t *testing.T) {
	task, err := parser.Parse(`{"entity":"Product","action":"Update","data":{"price":100},"queries":{"name":"Widget"}}`)
	require.NoError(t, err)

	want := domain.UpdateProduct{
		Query: domain.ProductQuery{Name: ptr("Widget")},
		Data:  domain.Fields{"price": 100.0},
	}
	if diff := cmp.Diff(want, task); diff != "" {
		t.Errorf("task mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Defaults(t *testing.T) {
	task, err := parser.Parse(`{"entity":"product","action":"add","data":null}`)
	require.NoError(t, err)
	assert.Equal(t, domain.AddProduct{Data: domain.Fields{}}, task)

	task, err = parser.Parse(`{"entity":"product","action":"get"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.GetProduct{}, task)
}

func TestParse_AllFields(t *testing.T) {
	task, err := parser.Parse(`{
		"entity": "product",
		"action": "get",
		"queries": {
			"id": "6f1c5a4e-8e7b-4f3e-9d0b-0c2a0a6c9b11",
			"name": "shirt",
			"price": 9.5,
			"stock": 3,
			"description": "cotton",
			"customFields": {"color": "blue"}
		},
		"error": "partial"
	}`)
	require.NoError(t, err)

	want := domain.GetProduct{
		Query: domain.ProductQuery{
			ID:           ptr("6f1c5a4e-8e7b-4f3e-9d0b-0c2a0a6c9b11"),
			Name:         ptr("shirt"),
			Price:        ptr(9.5),
			Stock:        ptr(int64(3)),
			Description:  ptr("cotton"),
			CustomFields: map[string]any{"color": "blue"},
		},
		Diagnostic: "partial",
	}
	if diff := cmp.Diff(want, task); diff != "" {
		t.Errorf("task mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		fields []string
	}{
		{"array", `[1,2]`, []string{"$"}},
		{"string", `"hello"`, []string{"$"}},
		{"missing entity and action", `{}`, []string{"entity", "action"}},
		{"unsupported entity", `{"entity":"order","action":"add"}`, []string{"entity"}},
		{"unknown action", `{"entity":"product","action":"archive"}`, []string{"action"}},
		{"data not object", `{"entity":"product","action":"add","data":[1]}`, []string{"data"}},
		{"data id", `{"entity":"product","action":"add","data":{"id":"x"}}`, []string{"data.id"}},
		{"data stock fraction", `{"entity":"product","action":"add","data":{"stock":1.5}}`, []string{"data.stock"}},
		{"query types", `{"entity":"product","action":"get","queries":{"price":"cheap","stock":2.5,"id":"nope"}}`,
			[]string{"queries.id", "queries.price", "queries.stock"}},
		{"unknown query key", `{"entity":"product","action":"get","queries":{"colour":"red"}}`, []string{"queries.colour"}},
		{"update without filter", `{"entity":"product","action":"update","data":{"price":1}}`, []string{"queries"}},
		{"delete with empty filter", `{"entity":"product","action":"delete","queries":{}}`, []string{"queries"}},
		{"error not string", `{"entity":"product","action":"get","error":5}`, []string{"error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.raw)
			var target *domain.SchemaValidationError
			require.ErrorAs(t, err, &target)

			var got []string
			for _, v := range target.Violations {
				got = append(got, v.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestParse_IsPure(t *testing.T) {
	inputs := []string{
		`{"entity":"product","action":"update","data":{"price":100},"queries":{"name":"Widget"}}`,
		`{"entity":"order","action":"add"}`,
		"not json",
	}
	for _, raw := range inputs {
		t1, err1 := parser.Parse(raw)
		t2, err2 := parser.Parse(raw)
		assert.Equal(t, t1, t2, raw)
		if err1 == nil {
			assert.NoError(t, err2)
			continue
		}
		assert.Equal(t, domain.FailureKindOf(err1), domain.FailureKindOf(err2), raw)
		assert.Equal(t, err1.Error(), err2.Error(), raw)
	}
}
