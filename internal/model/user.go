package model

// User represents a person registered in the directory.
type User struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	FirstName string  `json:"firstName"`
	Email     string  `json:"email"`
	Password  string  `json:"-"` // argon2id hash, never serialized
	Language  *string `json:"language"`
}

// NewUser holds the columns written when a user is created.
// Password must already be hashed.
type NewUser struct {
	Name      string
	FirstName string
	Email     string
	Password  string
	Language  *string
}

// UserPatch is a sparse update of a user. Only set fields are written.
type UserPatch struct {
	Name      Optional[string] `json:"name"`
	FirstName Optional[string] `json:"firstName"`
	Email     Optional[string] `json:"email"`
	Password  Optional[string] `json:"password"`
	Language  Optional[string] `json:"language"`
}

// IsEmpty reports whether the patch would change nothing.
func (p UserPatch) IsEmpty() bool {
	return !p.Name.IsSet() &&
		!p.FirstName.IsSet() &&
		!p.Email.IsSet() &&
		!p.Password.IsSet() &&
		!p.Language.IsSet()
}
