package core

import "time"

// View is a named, stored SELECT. Views are read-only: they can be queried
// but never targeted by INSERT, UPDATE or DELETE.
type View struct {
	Schema    string    `json:"schema"`
	Name      string    `json:"name"`
	Query     string    `json:"query"` // The SELECT statement defining the view
	CreatedAt time.Time `json:"created_at"`
}

func (view *View) Key() TableKey {
	return NewTableKey(view.Schema, view.Name)
}
