// Package memstore provides an in-memory directory store for service and
// handler tests. It mirrors the Postgres constraints: unique email, unique
// (user_id, entity_id) pair, foreign keys with cascading deletes.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/orgdir/orgdir/internal/model"
	"github.com/orgdir/orgdir/internal/repository"
)

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]model.User
	entities map[int64]model.Entity
	assocs   map[int64]model.Association

	// Err, when set, is returned by every call.
	Err error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[int64]model.User),
		entities: make(map[int64]model.Entity),
		assocs:   make(map[int64]model.Association),
	}
}

// Ping reports Err, standing in for a database health check.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Err
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateUser implements service.UserStore.
func (s *Store) CreateUser(_ context.Context, in model.NewUser) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.emailTaken(in.Email, 0) {
		return nil, repository.ErrEmailExists
	}
	u := model.User{
		ID:        s.id(),
		Name:      in.Name,
		FirstName: in.FirstName,
		Email:     in.Email,
		Password:  in.Password,
		Language:  in.Language,
	}
	s.users[u.ID] = u
	return &u, nil
}

// ListUsers implements service.UserStore.
func (s *Store) ListUsers(_ context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*model.User
	for _, id := range sortedKeys(s.users) {
		u := s.users[id]
		out = append(out, &u)
	}
	return out, nil
}

// GetUserByID implements service.UserStore.
func (s *Store) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

// User returns the stored row including the password hash.
func (s *Store) User(id int64) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// UpdateUser implements service.UserStore.
func (s *Store) UpdateUser(_ context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if patch.IsEmpty() {
		return nil, repository.ErrNothingToUpdate
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if email, ok := patch.Email.Value(); ok && s.emailTaken(email, id) {
		return nil, repository.ErrEmailExists
	}
	applyString(&u.Name, patch.Name)
	applyString(&u.FirstName, patch.FirstName)
	applyString(&u.Email, patch.Email)
	applyString(&u.Password, patch.Password)
	if patch.Language.IsSet() {
		u.Language = patch.Language.Ptr()
	}
	s.users[id] = u
	return &u, nil
}

// DeleteUser implements service.UserStore.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)
	for aid, a := range s.assocs {
		if a.UserID == id {
			delete(s.assocs, aid)
		}
	}
	return nil
}

// UserExists implements service.UserStore.
func (s *Store) UserExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.users[id]
	return ok, nil
}

// EmailExists implements service.UserStore.
func (s *Store) EmailExists(_ context.Context, email string, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.emailTaken(email, excludeID), nil
}

func (s *Store) emailTaken(email string, excludeID int64) bool {
	for id, u := range s.users {
		if id != excludeID && u.Email == email {
			return true
		}
	}
	return false
}

// CreateEntity implements service.EntityStore.
func (s *Store) CreateEntity(_ context.Context, in model.NewEntity) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	e := model.Entity{
		ID:          s.id(),
		Name:        in.Name,
		Description: in.Description,
		Siret:       in.Siret,
		KeyLicence:  in.KeyLicence,
		Website:     in.Website,
	}
	s.entities[e.ID] = e
	return &e, nil
}

// ListEntities implements service.EntityStore.
func (s *Store) ListEntities(_ context.Context) ([]*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*model.Entity
	for _, id := range sortedKeys(s.entities) {
		e := s.entities[id]
		out = append(out, &e)
	}
	return out, nil
}

// GetEntityByID implements service.EntityStore.
func (s *Store) GetEntityByID(_ context.Context, id int64) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	e, ok := s.entities[id]
	if !ok {
		return nil, repository.ErrEntityNotFound
	}
	return &e, nil
}

// UpdateEntity implements service.EntityStore.
func (s *Store) UpdateEntity(_ context.Context, id int64, patch model.EntityPatch) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if patch.IsEmpty() {
		return nil, repository.ErrNothingToUpdate
	}
	e, ok := s.entities[id]
	if !ok {
		return nil, repository.ErrEntityNotFound
	}
	applyString(&e.Name, patch.Name)
	applyPtr(&e.Description, patch.Description)
	applyPtr(&e.Siret, patch.Siret)
	applyPtr(&e.KeyLicence, patch.KeyLicence)
	applyPtr(&e.Website, patch.Website)
	s.entities[id] = e
	return &e, nil
}

// DeleteEntity implements service.EntityStore.
func (s *Store) DeleteEntity(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.entities[id]; !ok {
		return repository.ErrEntityNotFound
	}
	delete(s.entities, id)
	for aid, a := range s.assocs {
		if a.EntityID == id {
			delete(s.assocs, aid)
		}
	}
	return nil
}

// EntityExists implements service.EntityStore.
func (s *Store) EntityExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.entities[id]
	return ok, nil
}

// CreateAssociation implements service.AssociationStore.
func (s *Store) CreateAssociation(_ context.Context, userID, entityID int64) (*model.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if err := s.checkRefs(userID, entityID); err != nil {
		return nil, err
	}
	if s.pairTaken(userID, entityID, 0) {
		return nil, repository.ErrAssociationExists
	}
	a := model.Association{ID: s.id(), UserID: userID, EntityID: entityID}
	s.assocs[a.ID] = a
	return &a, nil
}

// ListAssociations implements service.AssociationStore.
func (s *Store) ListAssociations(_ context.Context) ([]*model.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*model.Association
	for _, id := range sortedKeys(s.assocs) {
		a := s.assocs[id]
		out = append(out, &a)
	}
	return out, nil
}

// GetAssociationByID implements service.AssociationStore.
func (s *Store) GetAssociationByID(_ context.Context, id int64) (*model.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	a, ok := s.assocs[id]
	if !ok {
		return nil, repository.ErrAssociationNotFound
	}
	return &a, nil
}

// UpdateAssociation implements service.AssociationStore.
func (s *Store) UpdateAssociation(_ context.Context, id int64, patch model.AssociationPatch) (*model.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if patch.IsEmpty() {
		return nil, repository.ErrNothingToUpdate
	}
	a, ok := s.assocs[id]
	if !ok {
		return nil, repository.ErrAssociationNotFound
	}
	if v, ok := patch.UserID.Value(); ok {
		a.UserID = v
	}
	if v, ok := patch.EntityID.Value(); ok {
		a.EntityID = v
	}
	if err := s.checkRefs(a.UserID, a.EntityID); err != nil {
		return nil, err
	}
	if s.pairTaken(a.UserID, a.EntityID, id) {
		return nil, repository.ErrAssociationExists
	}
	s.assocs[id] = a
	return &a, nil
}

// DeleteAssociation implements service.AssociationStore.
func (s *Store) DeleteAssociation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.assocs[id]; !ok {
		return repository.ErrAssociationNotFound
	}
	delete(s.assocs, id)
	return nil
}

// AssociationExists implements service.AssociationStore.
func (s *Store) AssociationExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.assocs[id]
	return ok, nil
}

// AssociationPairExists implements service.AssociationStore.
func (s *Store) AssociationPairExists(_ context.Context, userID, entityID, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.pairTaken(userID, entityID, excludeID), nil
}

func (s *Store) pairTaken(userID, entityID, excludeID int64) bool {
	for id, a := range s.assocs {
		if id != excludeID && a.UserID == userID && a.EntityID == entityID {
			return true
		}
	}
	return false
}

func (s *Store) checkRefs(userID, entityID int64) error {
	_, userOK := s.users[userID]
	_, entityOK := s.entities[entityID]
	if !userOK || !entityOK {
		return repository.ErrReferenceNotFound
	}
	return nil
}

func applyString(dst *string, v model.Optional[string]) {
	if val, ok := v.Value(); ok {
		*dst = val
	}
}

func applyPtr(dst **string, v model.Optional[string]) {
	if v.IsSet() {
		*dst = v.Ptr()
	}
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ErrUnavailable is a convenience failure for simulating a broken store.
var ErrUnavailable = errors.New("memstore: unavailable")
