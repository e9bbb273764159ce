package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTableExists   = errors.New("table already exists")
	ErrTableNotFound = errors.New("table not found")
	ErrViewExists    = errors.New("view already exists")
	ErrViewNotFound  = errors.New("view not found")
)

// Model is the Schema Model: every table, index, view and row one simulated
// database owns. Tables keep declaration order.
type Model struct {
	Tables []*Table `json:"tables"`
	Views  []*View  `json:"views,omitempty"`
}

func NewModel() *Model {
	return &Model{}
}

func (model *Model) tableIndex(key TableKey) int {
	for i, table := range model.Tables {
		if strings.EqualFold(table.Schema, key.Schema) && strings.EqualFold(table.Name, key.Name) {
			return i
		}
	}
	return -1
}

func (model *Model) viewIndex(key TableKey) int {
	for i, view := range model.Views {
		if strings.EqualFold(view.Schema, key.Schema) && strings.EqualFold(view.Name, key.Name) {
			return i
		}
	}
	return -1
}

// Table looks a table up by identity; schema "" means the default schema.
func (model *Model) Table(schema, name string) (*Table, bool) {
	i := model.tableIndex(NewTableKey(schema, name))
	if i < 0 {
		return nil, false
	}
	return model.Tables[i], true
}

func (model *Model) View(schema, name string) (*View, bool) {
	i := model.viewIndex(NewTableKey(schema, name))
	if i < 0 {
		return nil, false
	}
	return model.Views[i], true
}

func (model *Model) CreateTable(table *Table) error {
	table.Normalize()
	key := table.Key()
	if model.tableIndex(key) >= 0 || model.viewIndex(key) >= 0 {
		return fmt.Errorf("%w: %s", ErrTableExists, key)
	}
	model.Tables = append(model.Tables, table)
	return nil
}

func (model *Model) DropTable(schema, name string) error {
	key := NewTableKey(schema, name)
	i := model.tableIndex(key)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTableNotFound, key)
	}
	model.Tables = append(model.Tables[:i], model.Tables[i+1:]...)
	return nil
}

// ReplaceTable swaps in a new version of an existing table, keeping its
// declaration position.
func (model *Model) ReplaceTable(table *Table) error {
	i := model.tableIndex(table.Key())
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table.Key())
	}
	model.Tables[i] = table
	return nil
}

func (model *Model) CreateView(view *View) error {
	if view.Schema == "" {
		view.Schema = DefaultSchema
	}
	key := view.Key()
	if model.viewIndex(key) >= 0 || model.tableIndex(key) >= 0 {
		return fmt.Errorf("%w: %s", ErrViewExists, key)
	}
	model.Views = append(model.Views, view)
	return nil
}

func (model *Model) DropView(schema, name string) error {
	key := NewTableKey(schema, name)
	i := model.viewIndex(key)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrViewNotFound, key)
	}
	model.Views = append(model.Views[:i], model.Views[i+1:]...)
	return nil
}

// Indexes returns every explicit index descriptor in table order.
func (model *Model) Indexes() []Index {
	var indexes []Index
	for _, table := range model.Tables {
		indexes = append(indexes, table.Indexes...)
	}
	return indexes
}

func (model *Model) Clone() *Model {
	clone := &Model{}
	if model.Tables != nil {
		clone.Tables = make([]*Table, len(model.Tables))
		for i, table := range model.Tables {
			clone.Tables[i] = table.Clone()
		}
	}
	if model.Views != nil {
		clone.Views = make([]*View, len(model.Views))
		for i, view := range model.Views {
			v := *view
			clone.Views[i] = &v
		}
	}
	return clone
}
