package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgdir/orgdir/internal/model"
)

// Common errors for association repository operations.
var (
	ErrAssociationNotFound = errors.New("association not found")
	ErrAssociationExists   = errors.New("association already exists")
)

const associationTable = "userEntity"

var associationColumns = []string{"id", "user_id", "entity_id"}

// CreateAssociation links a user to an entity and returns the stored row.
func (r *Repository) CreateAssociation(ctx context.Context, userID, entityID int64) (*model.Association, error) {
	query := `
		INSERT INTO "userEntity" (user_id, entity_id)
		VALUES ($1, $2)
		RETURNING id, user_id, entity_id
	`

	var assoc *model.Association
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		assoc, err = scanAssociation(conn.QueryRow(ctx, query, userID, entityID))
		return err
	})

	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, ErrAssociationExists
		case isForeignKeyViolation(err):
			return nil, ErrReferenceNotFound
		}
		return nil, fmt.Errorf("failed to create association: %w", err)
	}

	return assoc, nil
}

// ListAssociations retrieves every association ordered by ID.
func (r *Repository) ListAssociations(ctx context.Context) ([]*model.Association, error) {
	query := `SELECT id, user_id, entity_id FROM "userEntity" ORDER BY id`

	var assocs []*model.Association
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			assoc, err := scanAssociation(rows)
			if err != nil {
				return fmt.Errorf("failed to scan association: %w", err)
			}
			assocs = append(assocs, assoc)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list associations: %w", err)
	}

	return assocs, nil
}

// GetAssociationByID retrieves an association by its ID.
func (r *Repository) GetAssociationByID(ctx context.Context, id int64) (*model.Association, error) {
	query := `SELECT id, user_id, entity_id FROM "userEntity" WHERE id = $1`

	var assoc *model.Association
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		assoc, err = scanAssociation(conn.QueryRow(ctx, query, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssociationNotFound
		}
		return nil, fmt.Errorf("failed to get association by ID: %w", err)
	}

	return assoc, nil
}

// UpdateAssociation moves either half of the pair and returns the refreshed row.
func (r *Repository) UpdateAssociation(ctx context.Context, id int64, patch model.AssociationPatch) (*model.Association, error) {
	var sets []assignment
	sets = appendOptional(sets, "user_id", patch.UserID)
	sets = appendOptional(sets, "entity_id", patch.EntityID)

	if len(sets) == 0 {
		return nil, ErrNothingToUpdate
	}

	query, args := buildUpdate(associationTable, id, sets, associationColumns)

	var assoc *model.Association
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		assoc, err = scanAssociation(conn.QueryRow(ctx, query, args...))
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrAssociationNotFound
		case isUniqueViolation(err):
			return nil, ErrAssociationExists
		case isForeignKeyViolation(err):
			return nil, ErrReferenceNotFound
		}
		return nil, fmt.Errorf("failed to update association: %w", err)
	}

	return assoc, nil
}

// DeleteAssociation removes an association.
func (r *Repository) DeleteAssociation(ctx context.Context, id int64) error {
	query := `DELETE FROM "userEntity" WHERE id = $1`

	var affected int64
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, query, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to delete association: %w", err)
	}

	if affected == 0 {
		return ErrAssociationNotFound
	}

	return nil
}

// AssociationExists checks if an association with the given ID exists.
func (r *Repository) AssociationExists(ctx context.Context, id int64) (bool, error) {
	exists, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM "userEntity" WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check association existence: %w", err)
	}

	return exists, nil
}

// AssociationPairExists checks if another association already links userID to entityID.
// A non-zero excludeID leaves that association out of the check.
func (r *Repository) AssociationPairExists(ctx context.Context, userID, entityID, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM "userEntity"
			WHERE user_id = $1 AND entity_id = $2 AND id <> $3
		)
	`

	exists, err := r.exists(ctx, query, userID, entityID, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check association pair: %w", err)
	}

	return exists, nil
}

// scanAssociation scans a single row into an Association model.
func scanAssociation(row pgx.Row) (*model.Association, error) {
	var assoc model.Association
	if err := row.Scan(&assoc.ID, &assoc.UserID, &assoc.EntityID); err != nil {
		return nil, err
	}
	return &assoc, nil
}
