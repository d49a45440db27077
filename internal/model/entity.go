package model

// Entity represents an organization users can be attached to.
type Entity struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Siret       *string `json:"siret"`
	KeyLicence  *string `json:"keyLicence"`
	Website     *string `json:"website"`
}

// NewEntity holds the columns written when an entity is created.
// Nil pointers are stored as NULL.
type NewEntity struct {
	Name        string
	Description *string
	Siret       *string
	KeyLicence  *string
	Website     *string
}

// EntityPatch is a sparse update of an entity. Only set fields are written.
type EntityPatch struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
	Siret       Optional[string] `json:"siret"`
	KeyLicence  Optional[string] `json:"keyLicence"`
	Website     Optional[string] `json:"website"`
}

// IsEmpty reports whether the patch would change nothing.
func (p EntityPatch) IsEmpty() bool {
	return !p.Name.IsSet() &&
		!p.Description.IsSet() &&
		!p.Siret.IsSet() &&
		!p.KeyLicence.IsSet() &&
		!p.Website.IsSet()
}
