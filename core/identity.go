package core

import "fmt"

// Identity identifies the author of a snapshot or of an authenticated
// server connection.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (identity Identity) String() string {
	return fmt.Sprintf("%s <%s>", identity.Name, identity.Email)
}
