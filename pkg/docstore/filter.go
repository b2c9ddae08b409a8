package docstore

import (
	"reflect"
	"regexp"

	"gorm.io/gorm/clause"

	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
)

// Operator is a comparison supported by List filters.
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpArrayContains  Operator = "array-contains"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not-in"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Filter narrows a List call. Field is a column name.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Where is shorthand for building a Filter.
func Where(field string, op Operator, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

func (f Filter) expression() (clause.Expression, error) {
	if !validIdentifier(f.Field) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid filter field").
			WithDetails(map[string]any{"field": f.Field})
	}
	column := clause.Column{Name: f.Field}

	switch f.Op {
	case OpEqual:
		if f.Value == nil {
			return clause.Expr{SQL: "? IS NULL", Vars: []any{column}}, nil
		}
		return clause.Expr{SQL: "? = ?", Vars: []any{column, f.Value}}, nil
	case OpNotEqual:
		if f.Value == nil {
			return clause.Expr{SQL: "? IS NOT NULL", Vars: []any{column}}, nil
		}
		return clause.Expr{SQL: "? <> ?", Vars: []any{column, f.Value}}, nil
	case OpGreater:
		return clause.Expr{SQL: "? > ?", Vars: []any{column, f.Value}}, nil
	case OpGreaterOrEqual:
		return clause.Expr{SQL: "? >= ?", Vars: []any{column, f.Value}}, nil
	case OpLess:
		return clause.Expr{SQL: "? < ?", Vars: []any{column, f.Value}}, nil
	case OpLessOrEqual:
		return clause.Expr{SQL: "? <= ?", Vars: []any{column, f.Value}}, nil
	case OpArrayContains:
		return clause.Expr{SQL: "? = ANY(?)", Vars: []any{f.Value, column}}, nil
	case OpIn, OpNotIn:
		if !isList(f.Value) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "in filters require a list value").
				WithDetails(map[string]any{"field": f.Field, "op": string(f.Op)})
		}
		if f.Op == OpIn {
			return clause.Expr{SQL: "? IN ?", Vars: []any{column, f.Value}}, nil
		}
		return clause.Expr{SQL: "? NOT IN ?", Vars: []any{column, f.Value}}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported filter operator").
			WithDetails(map[string]any{"field": f.Field, "op": string(f.Op)})
	}
}

func isList(value any) bool {
	if value == nil {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}
