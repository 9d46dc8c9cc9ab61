package predicate

import (
	"fmt"
	"strings"
)

// Columns maps fields to SQL column expressions for one table. Fields
// missing from the map render as FALSE.
type Columns map[Field]string

// ToSQL renders p as a WHERE clause. Placeholders start at $(offset+1);
// the returned args line up with them.
func ToSQL(p Predicate, cols Columns, offset int) (string, []any) {
	r := sqlRenderer{cols: cols, offset: offset}
	clause := r.render(p)
	return clause, r.args
}

type sqlRenderer struct {
	cols   Columns
	offset int
	args   []any
}

func (r *sqlRenderer) bind(v any) string {
	r.args = append(r.args, v)
	return fmt.Sprintf("$%d", r.offset+len(r.args))
}

func (r *sqlRenderer) render(p Predicate) string {
	switch p.Op {
	case OpAnd, OpOr:
		if len(p.Children) == 0 {
			if p.Op == OpAnd {
				return "TRUE"
			}
			return "FALSE"
		}
		sep := " AND "
		if p.Op == OpOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(p.Children))
		for _, c := range p.Children {
			parts = append(parts, r.render(c))
		}
		return "(" + strings.Join(parts, sep) + ")"
	}

	col, ok := r.cols[p.Field]
	if !ok || p.Value == "" {
		return "FALSE"
	}
	switch p.Op {
	case OpContains:
		return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, col, r.bind("%"+EscapeLike(p.Value)+"%"))
	case OpEquals:
		return fmt.Sprintf("lower(%s) = lower(%s)", col, r.bind(p.Value))
	case OpDigitsContains:
		if len(p.Value) < MinDigits {
			return "FALSE"
		}
		return fmt.Sprintf(`regexp_replace(%s, '\D', '', 'g') LIKE %s`, col, r.bind("%"+p.Value+"%"))
	case OpDigitsSuffix:
		if len(p.Value) < MinDigits {
			return "FALSE"
		}
		return fmt.Sprintf(`regexp_replace(%s, '\D', '', 'g') LIKE %s`, col, r.bind("%"+p.Value))
	default:
		return "FALSE"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE metacharacters using backslash.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
