package domain

import (
	"fmt"
	"maps"
	"math"
)

// ProductRow is a Record split into the columns SQL stores keep.
type ProductRow struct {
	ID          string
	Name        *string
	Price       *float64
	Stock       *int64
	Description *string
	Custom      map[string]any
}

// RowFromRecord converts a flat record into columns. Keys that are not
// base columns become custom fields.
func RowFromRecord(r Record) (ProductRow, error) {
	row := ProductRow{ID: r.ID(), Custom: map[string]any{}}
	for k, v := range r {
		switch k {
		case FieldID:
		case FieldName, FieldDescription:
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return ProductRow{}, fmt.Errorf("%s: want string, got %T", k, v)
			}
			if k == FieldName {
				row.Name = &s
			} else {
				row.Description = &s
			}
		case FieldPrice:
			if v == nil {
				continue
			}
			f, ok := AsFloat(v)
			if !ok {
				return ProductRow{}, fmt.Errorf("price: want number, got %T", v)
			}
			row.Price = &f
		case FieldStock:
			if v == nil {
				continue
			}
			f, ok := AsFloat(v)
			if !ok || f != math.Trunc(f) {
				return ProductRow{}, fmt.Errorf("stock: want integer, got %v", v)
			}
			n := int64(f)
			row.Stock = &n
		default:
			row.Custom[k] = v
		}
	}
	return row, nil
}

// Record flattens the row back into a Record. Null columns are present
// with a nil value.
func (p ProductRow) Record() Record {
	r := BlankProduct()
	maps.Copy(r, p.Custom)
	r[FieldID] = p.ID
	if p.Name != nil {
		r[FieldName] = *p.Name
	}
	if p.Price != nil {
		r[FieldPrice] = *p.Price
	}
	if p.Stock != nil {
		r[FieldStock] = *p.Stock
	}
	if p.Description != nil {
		r[FieldDescription] = *p.Description
	}
	return r
}
