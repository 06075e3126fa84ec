package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestNewTask_Variants(t *testing.T) {
	q := domain.ProductQuery{Name: ptr("widget")}
	tests := []struct {
		action string
		want   domain.Task
	}{
		{"add", domain.AddProduct{Data: domain.Fields{"name": "Widget"}}},
		{"update", domain.UpdateProduct{Query: q, Data: domain.Fields{"name": "Widget"}}},
		{"get", domain.GetProduct{Query: q}},
		{"delete", domain.DeleteProduct{Query: q}},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			task, err := domain.NewTask(domain.Envelope{
				Entity:  "product",
				Action:  tt.action,
				Data:    domain.Fields{"name": "Widget"},
				Queries: q,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, task)
			assert.Equal(t, domain.EntityProduct, task.Entity())
			assert.Equal(t, domain.Action(tt.action), task.Action())
		})
	}
}

func TestNewTask_UnsupportedEntity(t *testing.T) {
	for _, action := range domain.Actions {
		_, err := domain.NewTask(domain.Envelope{Entity: "order", Action: string(action)})
		var target *domain.UnsupportedEntityError
		require.ErrorAs(t, err, &target, "action %s", action)
		assert.Equal(t, "order", target.Entity)
	}
}

func TestNewTask_UnsupportedAction(t *testing.T) {
	_, err := domain.NewTask(domain.Envelope{Entity: "product", Action: "archive"})
	var target *domain.UnsupportedActionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "archive", target.Action)
}

func TestNewTask_CopiesMaps(t *testing.T) {
	data := domain.Fields{"price": 100}
	env := domain.Envelope{Entity: "product", Action: "add", Data: data}
	task, err := domain.NewTask(env)
	require.NoError(t, err)

	data["price"] = 1
	assert.Equal(t, 100, task.(domain.AddProduct).Data["price"])
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := domain.Envelope{
		Entity:  "product",
		Action:  "update",
		Data:    domain.Fields{"price": 100.0},
		Queries: domain.ProductQuery{Name: ptr("Widget")},
		Error:   "note",
	}
	task, err := domain.NewTask(env)
	require.NoError(t, err)
	assert.Equal(t, env, task.Envelope())
}

func TestOverlay(t *testing.T) {
	before := domain.Record{"id": "p1", "name": "Widget", "price": 80.0, "color": "red"}
	after := domain.Overlay(before, domain.Fields{"price": 100.0, "color": nil})

	assert.Equal(t, domain.Record{"id": "p1", "name": "Widget", "price": 100.0, "color": nil}, after)
	assert.Equal(t, 80.0, before["price"], "before must not be modified")
}

func TestBlankProduct(t *testing.T) {
	blank := domain.BlankProduct()
	for _, f := range domain.BaseProductFields {
		v, ok := blank[f]
		assert.True(t, ok, f)
		assert.Nil(t, v, f)
	}
}

func TestProductQuery_Matches(t *testing.T) {
	rec := domain.Record{
		"id": "p1", "name": "Blue Shirt", "price": 80.0, "stock": int64(5),
		"description": "cotton", "color": "Navy Blue",
	}
	tests := []struct {
		name string
		q    domain.ProductQuery
		want bool
	}{
		{"empty", domain.ProductQuery{}, true},
		{"partial name", domain.ProductQuery{Name: ptr("shirt")}, true},
		{"name mismatch", domain.ProductQuery{Name: ptr("pants")}, false},
		{"exact id", domain.ProductQuery{ID: ptr("p1")}, true},
		{"partial id", domain.ProductQuery{ID: ptr("p")}, false},
		{"price", domain.ProductQuery{Price: ptr(80.0)}, true},
		{"price mismatch", domain.ProductQuery{Price: ptr(81.0)}, false},
		{"stock", domain.ProductQuery{Stock: ptr(int64(5))}, true},
		{"custom field", domain.ProductQuery{CustomFields: map[string]any{"color": "blue"}}, true},
		{"missing custom field", domain.ProductQuery{CustomFields: map[string]any{"size": "m"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Matches(rec))
		})
	}
}

func TestProductQuery_IsEmpty(t *testing.T) {
	assert.True(t, domain.ProductQuery{}.IsEmpty())
	assert.True(t, domain.ProductQuery{CustomFields: map[string]any{}}.IsEmpty())
	assert.False(t, domain.ProductQuery{Stock: ptr(int64(0))}.IsEmpty())
}

func TestSplitFields(t *testing.T) {
	base, custom := domain.SplitFields(domain.Fields{
		"id":           "ignored",
		"name":         "Shirt",
		"price":        10.0,
		"color":        "red",
		"customFields": map[string]any{"size": "M"},
	})
	assert.Equal(t, domain.Fields{"name": "Shirt", "price": 10.0}, base)
	assert.Equal(t, map[string]any{"color": "red", "size": "M"}, custom)
}

func TestApply(t *testing.T) {
	before := domain.Record{"id": "p1", "name": "Shirt", "color": "red"}
	after := domain.Apply(before, domain.Fields{
		"id":           "p2",
		"price":        12.0,
		"customFields": map[string]any{"color": "blue"},
	})
	assert.Equal(t, domain.Record{"id": "p1", "name": "Shirt", "price": 12.0, "color": "blue"}, after)
	assert.Equal(t, "red", before["color"])
}
