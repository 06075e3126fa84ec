package postgres

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// whereClause renders q as a parameterized predicate scoped to owner.
// Text attributes match as case-insensitive substrings; id and numbers
// match exactly.
func whereClause(owner string, q domain.ProductQuery) (string, []any) {
	args := []any{owner}
	conds := []string{"owner_id = $1"}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.ID != nil {
		conds = append(conds, "id::text = "+next(*q.ID)+"::text")
	}
	if q.Name != nil {
		conds = append(conds, fmt.Sprintf(`name ILIKE '%%' || %s::text || '%%' ESCAPE '\'`, next(escapeLike(*q.Name))))
	}
	if q.Price != nil {
		conds = append(conds, "price = "+next(*q.Price))
	}
	if q.Stock != nil {
		conds = append(conds, "stock = "+next(*q.Stock))
	}
	if q.Description != nil {
		conds = append(conds, fmt.Sprintf(`description ILIKE '%%' || %s::text || '%%' ESCAPE '\'`, next(escapeLike(*q.Description))))
	}

	keys := make([]string, 0, len(q.CustomFields))
	for k := range q.CustomFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := next(k)
		val := next(escapeLike(fmt.Sprint(q.CustomFields[k])))
		conds = append(conds, fmt.Sprintf(`custom_fields ->> %s::text ILIKE '%%' || %s::text || '%%' ESCAPE '\'`, key, val))
	}

	return strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
