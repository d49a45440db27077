package model

// Association links one user to one entity.
// A (UserID, EntityID) pair appears at most once.
type Association struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"user_id"`
	EntityID int64 `json:"entity_id"`
}

// AssociationPatch is a sparse update of an association.
type AssociationPatch struct {
	UserID   Optional[int64] `json:"user_id"`
	EntityID Optional[int64] `json:"entity_id"`
}

// IsEmpty reports whether the patch would change nothing.
func (p AssociationPatch) IsEmpty() bool {
	return !p.UserID.IsSet() && !p.EntityID.IsSet()
}

// HasPair reports whether both halves of the pair are supplied.
func (p AssociationPatch) HasPair() bool {
	_, userOK := p.UserID.Value()
	_, entityOK := p.EntityID.Value()
	return userOK && entityOK
}
