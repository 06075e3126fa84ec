package parser

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// Validate checks a normalized value against the task schema and builds the
// Task. Every violated field is reported in one SchemaValidationError.
// Top-level keys outside the task shape are ignored.
func Validate(v any) (domain.Task, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &domain.SchemaValidationError{Violations: []domain.Violation{
			{Field: "$", Message: fmt.Sprintf("must be an object, got %s", typeName(v))},
		}}
	}

	var vs violations
	env := domain.Envelope{Data: domain.Fields{}}

	env.Entity = vs.requiredString(obj, "entity")
	if env.Entity != "" {
		if _, ok := domain.ParseEntity(env.Entity); !ok {
			vs.add("entity", fmt.Sprintf("unsupported entity %q, must be one of %v", env.Entity, domain.SupportedEntities))
		}
	}

	env.Action = vs.requiredString(obj, "action")
	action, actionOK := domain.ParseAction(env.Action)
	if env.Action != "" && !actionOK {
		vs.add("action", fmt.Sprintf("unsupported action %q, must be one of %v", env.Action, domain.Actions))
	}

	if raw, present := obj["data"]; present && raw != nil {
		if data, ok := raw.(map[string]any); ok {
			vs.data(data)
			env.Data = domain.Fields(data)
		} else {
			vs.add("data", "must be an object")
		}
	}

	if raw, present := obj["queries"]; present && raw != nil {
		if q, ok := raw.(map[string]any); ok {
			env.Queries = vs.query(q)
		} else {
			vs.add("queries", "must be an object")
		}
	}

	if raw, present := obj["error"]; present && raw != nil {
		if s, ok := raw.(string); ok {
			env.Error = s
		} else {
			vs.add("error", "must be a string")
		}
	}

	if actionOK && (action == domain.ActionUpdate || action == domain.ActionDelete) && env.Queries.IsEmpty() {
		vs.add("queries", fmt.Sprintf("must select at least one attribute for %s", action))
	}

	if len(vs) > 0 {
		return nil, &domain.SchemaValidationError{Violations: vs}
	}
	return domain.NewTask(env)
}

type violations []domain.Violation

func (vs *violations) add(field, msg string) {
	*vs = append(*vs, domain.Violation{Field: field, Message: msg})
}

func (vs *violations) requiredString(obj map[string]any, key string) string {
	raw, present := obj[key]
	if !present || raw == nil {
		vs.add(key, "is required")
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		vs.add(key, "must be a string")
		return ""
	}
	if s == "" {
		vs.add(key, "must not be empty")
	}
	return s
}

func (vs *violations) data(data map[string]any) {
	for _, k := range sortedKeys(data) {
		field := "data." + k
		val := data[k]
		switch k {
		case domain.FieldID:
			vs.add(field, "record identity cannot be written")
		case domain.FieldName:
			if _, ok := val.(string); !ok {
				vs.add(field, "must be a string")
			}
		case domain.FieldDescription:
			if _, ok := val.(string); !ok && val != nil {
				vs.add(field, "must be a string or null")
			}
		case domain.FieldPrice:
			if _, ok := val.(float64); !ok && val != nil {
				vs.add(field, "must be a number or null")
			}
		case domain.FieldStock:
			if !isInteger(val) && val != nil {
				vs.add(field, "must be an integer or null")
			}
		case domain.FieldCustomFields:
			if _, ok := val.(map[string]any); !ok && val != nil {
				vs.add(field, "must be an object")
			}
		}
	}
}

func (vs *violations) query(q map[string]any) domain.ProductQuery {
	var out domain.ProductQuery
	for _, k := range sortedKeys(q) {
		field := "queries." + k
		val := q[k]
		if val == nil {
			continue
		}
		switch k {
		case domain.FieldID:
			s, ok := val.(string)
			if !ok {
				vs.add(field, "must be a string")
				continue
			}
			if _, err := uuid.Parse(s); err != nil {
				vs.add(field, "must be a UUID")
				continue
			}
			out.ID = &s
		case domain.FieldName, domain.FieldDescription:
			s, ok := val.(string)
			if !ok {
				vs.add(field, "must be a string")
				continue
			}
			if k == domain.FieldName {
				out.Name = &s
			} else {
				out.Description = &s
			}
		case domain.FieldPrice:
			f, ok := val.(float64)
			if !ok {
				vs.add(field, "must be a number")
				continue
			}
			out.Price = &f
		case domain.FieldStock:
			if !isInteger(val) {
				vs.add(field, "must be an integer")
				continue
			}
			n := int64(val.(float64))
			out.Stock = &n
		case domain.FieldCustomFields:
			m, ok := val.(map[string]any)
			if !ok {
				vs.add(field, "must be an object")
				continue
			}
			if len(m) > 0 {
				out.CustomFields = m
			}
		default:
			vs.add(field, "unknown filter attribute")
		}
	}
	return out
}

func isInteger(v any) bool {
	f, ok := v.(float64)
	return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
