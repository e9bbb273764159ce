package core

import "fmt"

// Relationship is a foreign key association between two tables. It is never
// stored on the model; it is derived from the tables' constraint strings.
type Relationship struct {
	Name       string `json:"name,omitempty"`
	FromSchema string `json:"fromSchema"`
	FromTable  string `json:"fromTable"`
	FromColumn string `json:"fromColumn"`
	ToSchema   string `json:"toSchema"`
	ToTable    string `json:"toTable"`
	ToColumn   string `json:"toColumn"`
	OnDelete   string `json:"onDelete,omitempty"`
	OnUpdate   string `json:"onUpdate,omitempty"`
}

func (rel Relationship) From() TableKey {
	return NewTableKey(rel.FromSchema, rel.FromTable)
}

func (rel Relationship) To() TableKey {
	return NewTableKey(rel.ToSchema, rel.ToTable)
}

// String identifies the relationship, e.g. "orders.user_id -> users.id".
func (rel Relationship) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", displayName(rel.From()), rel.FromColumn, displayName(rel.To()), rel.ToColumn)
}

func displayName(key TableKey) string {
	if key.Schema == DefaultSchema {
		return key.Name
	}
	return key.String()
}
