package domain

import (
	"fmt"
	"maps"
	"strings"
)

// Entity identifies the kind of record a task targets.
type Entity string

// Action is the operation a task performs on its entity.
type Action string

const (
	EntityProduct Entity = "product"

	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionGet    Action = "get"
	ActionDelete Action = "delete"
)

// SupportedEntities lists the entities the pipeline can carry end-to-end.
var SupportedEntities = []Entity{EntityProduct}

// Actions lists every action in prompt order.
var Actions = []Action{ActionAdd, ActionUpdate, ActionGet, ActionDelete}

// ParseAction returns the Action named by s, or false if s is not one.
func ParseAction(s string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// ParseEntity returns the supported Entity named by s, or false.
func ParseEntity(s string) (Entity, bool) {
	for _, e := range SupportedEntities {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

// Fields is an open attribute → value payload.
type Fields map[string]any

// Record is the flat view of a stored product: base columns plus custom
// fields side by side.
type Record map[string]any

// ID returns the record identifier, or "" when it has none.
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	id, _ := r["id"].(string)
	return id
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Base product columns. Everything else in a Record is a custom field.
const (
	FieldID           = "id"
	FieldName         = "name"
	FieldPrice        = "price"
	FieldStock        = "stock"
	FieldDescription  = "description"
	FieldCustomFields = "customFields"
)

// BaseProductFields lists the product columns in declaration order.
var BaseProductFields = []string{FieldID, FieldName, FieldPrice, FieldStock, FieldDescription}

// IsBaseProductField reports whether name is a product column.
func IsBaseProductField(name string) bool {
	for _, f := range BaseProductFields {
		if f == name {
			return true
		}
	}
	return false
}

// BlankProduct returns the template an add preview is synthesized on.
func BlankProduct() Record {
	r := make(Record, len(BaseProductFields))
	for _, f := range BaseProductFields {
		r[f] = nil
	}
	return r
}

// Overlay returns a copy of before where every key in data replaces the
// corresponding key. Keys absent from data are kept as they are.
func Overlay(before Record, data Fields) Record {
	after := make(Record, len(before)+len(data))
	maps.Copy(after, before)
	maps.Copy(after, data)
	return after
}

// Apply projects a write payload onto before the way the stores persist it:
// a nested customFields object is flattened and id is left unchanged.
func Apply(before Record, data Fields) Record {
	base, custom := SplitFields(data)
	after := Overlay(before, base)
	maps.Copy(after, custom)
	return after
}

// ProductQuery is the typed filter over product attributes. Text attributes
// match partially and case-insensitively; id and numbers match exactly.
type ProductQuery struct {
	ID           *string        `json:"id,omitempty"`
	Name         *string        `json:"name,omitempty"`
	Price        *float64       `json:"price,omitempty"`
	Stock        *int64         `json:"stock,omitempty"`
	Description  *string        `json:"description,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
}

// IsEmpty reports whether the query constrains nothing.
func (q ProductQuery) IsEmpty() bool {
	return q.ID == nil && q.Name == nil && q.Price == nil && q.Stock == nil &&
		q.Description == nil && len(q.CustomFields) == 0
}

// Matches evaluates the query against a record in memory.
func (q ProductQuery) Matches(r Record) bool {
	if q.ID != nil && r.ID() != *q.ID {
		return false
	}
	if q.Name != nil && !containsFold(r[FieldName], *q.Name) {
		return false
	}
	if q.Description != nil && !containsFold(r[FieldDescription], *q.Description) {
		return false
	}
	if q.Price != nil {
		v, ok := AsFloat(r[FieldPrice])
		if !ok || v != *q.Price {
			return false
		}
	}
	if q.Stock != nil {
		v, ok := AsFloat(r[FieldStock])
		if !ok || v != float64(*q.Stock) {
			return false
		}
	}
	for k, want := range q.CustomFields {
		if !containsFold(r[k], fmt.Sprint(want)) {
			return false
		}
	}
	return true
}

func (q ProductQuery) clone() ProductQuery {
	out := q
	if q.CustomFields != nil {
		out.CustomFields = maps.Clone(q.CustomFields)
	}
	return out
}

func containsFold(v any, sub string) bool {
	if v == nil {
		return false
	}
	return strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(sub))
}

// AsFloat converts the numeric kinds that show up in decoded JSON and
// scanned rows.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Task is a validated command. The set of implementations is closed: only
// the variants in this package satisfy it.
type Task interface {
	Entity() Entity
	Action() Action
	Envelope() Envelope
	isTask()
}

// AddProduct creates a product from Data.
type AddProduct struct {
	Data       Fields
	Diagnostic string
}

// UpdateProduct overlays Data onto every product matching Query.
type UpdateProduct struct {
	Query      ProductQuery
	Data       Fields
	Diagnostic string
}

// GetProduct reads the products matching Query.
type GetProduct struct {
	Query      ProductQuery
	Diagnostic string
}

// DeleteProduct removes the products matching Query.
type DeleteProduct struct {
	Query      ProductQuery
	Diagnostic string
}

func (AddProduct) Entity() Entity    { return EntityProduct }
func (UpdateProduct) Entity() Entity { return EntityProduct }
func (GetProduct) Entity() Entity    { return EntityProduct }
func (DeleteProduct) Entity() Entity { return EntityProduct }

func (AddProduct) Action() Action    { return ActionAdd }
func (UpdateProduct) Action() Action { return ActionUpdate }
func (GetProduct) Action() Action    { return ActionGet }
func (DeleteProduct) Action() Action { return ActionDelete }

func (AddProduct) isTask()    {}
func (UpdateProduct) isTask() {}
func (GetProduct) isTask()    {}
func (DeleteProduct) isTask() {}

func (t AddProduct) Envelope() Envelope {
	return Envelope{Entity: string(EntityProduct), Action: string(ActionAdd), Data: cloneFields(t.Data), Error: t.Diagnostic}
}

func (t UpdateProduct) Envelope() Envelope {
	return Envelope{Entity: string(EntityProduct), Action: string(ActionUpdate), Data: cloneFields(t.Data), Queries: t.Query.clone(), Error: t.Diagnostic}
}

func (t GetProduct) Envelope() Envelope {
	return Envelope{Entity: string(EntityProduct), Action: string(ActionGet), Data: Fields{}, Queries: t.Query.clone(), Error: t.Diagnostic}
}

func (t DeleteProduct) Envelope() Envelope {
	return Envelope{Entity: string(EntityProduct), Action: string(ActionDelete), Data: Fields{}, Queries: t.Query.clone(), Error: t.Diagnostic}
}

// Envelope is the wire and persisted shape of a Task.
type Envelope struct {
	Entity  string       `json:"entity"`
	Action  string       `json:"action"`
	Data    Fields       `json:"data"`
	Queries ProductQuery `json:"queries"`
	Error   string       `json:"error,omitempty"`
}

// NewTask turns an envelope into its Task variant. Any entity other than
// product yields UnsupportedEntityError; an unknown action yields
// UnsupportedActionError.
func NewTask(env Envelope) (Task, error) {
	entity, ok := ParseEntity(env.Entity)
	if !ok {
		return nil, &UnsupportedEntityError{Entity: env.Entity}
	}
	action, ok := ParseAction(env.Action)
	if !ok {
		return nil, &UnsupportedActionError{Entity: string(entity), Action: env.Action}
	}

	data := cloneFields(env.Data)
	query := env.Queries.clone()
	switch action {
	case ActionAdd:
		return AddProduct{Data: data, Diagnostic: env.Error}, nil
	case ActionUpdate:
		return UpdateProduct{Query: query, Data: data, Diagnostic: env.Error}, nil
	case ActionGet:
		return GetProduct{Query: query, Diagnostic: env.Error}, nil
	default:
		return DeleteProduct{Query: query, Diagnostic: env.Error}, nil
	}
}

func cloneFields(f Fields) Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// SplitFields separates a write payload into base columns and custom
// attributes. A nested customFields object is merged into the custom
// attributes; id is never written.
func SplitFields(fields Fields) (base Fields, custom map[string]any) {
	base = Fields{}
	custom = map[string]any{}
	for k, v := range fields {
		switch {
		case k == FieldID:
		case k == FieldCustomFields:
			if nested, ok := v.(map[string]any); ok {
				maps.Copy(custom, nested)
			}
		case IsBaseProductField(k):
			base[k] = v
		default:
			custom[k] = v
		}
	}
	return base, custom
}
