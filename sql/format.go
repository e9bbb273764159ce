package sql

import (
	"strings"

	"github.com/nickyhof/SchemaDB/core"
)

// QuoteIdentifier returns name unchanged when it can be written bare, and
// double-quoted otherwise.
func QuoteIdentifier(name string) string {
	if name == "" {
		return `""`
	}
	bare := !isDigit(name[0])
	for i := 0; i < len(name) && bare; i++ {
		bare = isWordChar(name[i]) || isDigit(name[i])
	}
	if bare && lookupIdentifier(name) == Identifier {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}

func (name TableName) String() string {
	if name.Schema == "" {
		return QuoteIdentifier(name.Name)
	}
	return QuoteIdentifier(name.Schema) + "." + QuoteIdentifier(name.Name)
}

func (op Operator) String() string {
	switch op {
	case EqualsOperator:
		return "="
	case NotEqualsOperator:
		return "!="
	case LessThanOperator:
		return "<"
	case GreaterThanOperator:
		return ">"
	case LessThanOrEqualOperator:
		return "<="
	case GreaterThanOrEqualOperator:
		return ">="
	case LikeOperator:
		return "LIKE"
	case IsNullOperator:
		return "IS NULL"
	case IsNotNullOperator:
		return "IS NOT NULL"
	default:
		return "?"
	}
}

func (condition Condition) String() string {
	if condition.Operator == IsNullOperator || condition.Operator == IsNotNullOperator {
		return QuoteIdentifier(condition.Column) + " " + condition.Operator.String()
	}
	return QuoteIdentifier(condition.Column) + " " + condition.Operator.String() + " " + condition.Value.SQL()
}

func (s SelectStatement) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(s.Columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(quoteList(s.Columns))
	}
	b.WriteString(" FROM ")
	b.WriteString(s.Table.String())
	if s.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where.String())
	}
	return b.String()
}

// String renders the constraint in the form tables store and exporters emit.
func (constraint Constraint) String() string {
	var b strings.Builder
	if constraint.Name != "" && constraint.Kind != IndexConstraint {
		b.WriteString("CONSTRAINT ")
		b.WriteString(QuoteIdentifier(constraint.Name))
		b.WriteString(" ")
	}
	switch constraint.Kind {
	case PrimaryKeyConstraint:
		b.WriteString("PRIMARY KEY (")
	case ForeignKeyConstraint:
		b.WriteString("FOREIGN KEY (")
	case UniqueConstraint:
		b.WriteString("UNIQUE (")
	case IndexConstraint:
		b.WriteString("INDEX ")
		b.WriteString(QuoteIdentifier(constraint.Name))
		b.WriteString(" (")
	}
	b.WriteString(quoteList(constraint.Columns))
	b.WriteString(")")
	if constraint.Kind == ForeignKeyConstraint {
		b.WriteString(" REFERENCES ")
		b.WriteString(constraint.RefTable.String())
		b.WriteString(" (")
		b.WriteString(quoteList(constraint.RefColumns))
		b.WriteString(")")
		if constraint.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(constraint.OnDelete)
		}
		if constraint.OnUpdate != "" {
			b.WriteString(" ON UPDATE ")
			b.WriteString(constraint.OnUpdate)
		}
	}
	return b.String()
}

// RefKey is the table a foreign key points at. An unqualified reference
// resolves in the owning table's schema.
func (constraint Constraint) RefKey(owner core.TableKey) core.TableKey {
	if constraint.RefTable.Schema == "" {
		return core.NewTableKey(owner.Schema, constraint.RefTable.Name)
	}
	return constraint.RefTable.Key()
}

// Relationships lists one relationship per column pair of a foreign key
// constraint declared on owner; other kinds yield none.
func (constraint Constraint) Relationships(owner core.TableKey) []core.Relationship {
	if constraint.Kind != ForeignKeyConstraint {
		return nil
	}
	target := constraint.RefKey(owner)
	relationships := make([]core.Relationship, 0, len(constraint.Columns))
	for i, column := range constraint.Columns {
		relationships = append(relationships, core.Relationship{
			Name:       constraint.Name,
			FromSchema: owner.Schema,
			FromTable:  owner.Name,
			FromColumn: column,
			ToSchema:   target.Schema,
			ToTable:    target.Name,
			ToColumn:   constraint.RefColumns[i],
			OnDelete:   constraint.OnDelete,
			OnUpdate:   constraint.OnUpdate,
		})
	}
	return relationships
}

// Index returns the index a UNIQUE or INDEX constraint implies.
func (constraint Constraint) Index(owner core.TableKey) (core.Index, bool) {
	if constraint.Kind != UniqueConstraint && constraint.Kind != IndexConstraint {
		return core.Index{}, false
	}
	name := constraint.Name
	if name == "" {
		name = owner.Name + "_" + strings.Join(constraint.Columns, "_") + "_key"
	}
	return core.Index{
		Name:    name,
		Schema:  owner.Schema,
		Table:   owner.Name,
		Columns: append([]string(nil), constraint.Columns...),
		Unique:  constraint.Kind == UniqueConstraint,
	}, true
}
