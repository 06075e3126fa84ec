package sqlite

import (
	"slices"
	"strings"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause renders q as a predicate over products scoped to owner. Text
// is compared through fold so non-ASCII letters match case-insensitively.
func whereClause(owner string, q domain.ProductQuery) (string, []any) {
	conds := []string{"owner_id = ?"}
	args := []any{owner}

	like := func(expr, v string) {
		conds = append(conds, `fold(`+expr+`) LIKE '%' || ? || '%' ESCAPE '\'`)
		args = append(args, likeEscaper.Replace(strings.ToLower(v)))
	}
	if q.ID != nil {
		conds = append(conds, "id = ?")
		args = append(args, *q.ID)
	}
	if q.Name != nil {
		like("name", *q.Name)
	}
	if q.Description != nil {
		like("description", *q.Description)
	}
	if q.Price != nil {
		conds = append(conds, "price = ?")
		args = append(args, *q.Price)
	}
	if q.Stock != nil {
		conds = append(conds, "stock = ?")
		args = append(args, *q.Stock)
	}
	keys := make([]string, 0, len(q.CustomFields))
	for k := range q.CustomFields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		conds = append(conds, `fold(CAST(json_extract(custom_fields, ?) AS TEXT)) LIKE '%' || ? || '%' ESCAPE '\'`)
		args = append(args, jsonPath(k), likeEscaper.Replace(strings.ToLower(stringify(q.CustomFields[k]))))
	}
	return strings.Join(conds, " AND "), args
}

// jsonPath quotes key as a single JSON path member.
func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}
