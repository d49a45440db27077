package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgdir/orgdir/internal/model"
)

// ErrEntityNotFound is returned when no entity matches the given ID.
var ErrEntityNotFound = errors.New("entity not found")

const entityTable = "entity"

var entityColumns = []string{"id", "name", "description", "siret", "keyLicence", "website"}

// CreateEntity inserts a new entity and returns the stored row.
func (r *Repository) CreateEntity(ctx context.Context, in model.NewEntity) (*model.Entity, error) {
	query := `
		INSERT INTO entity (name, description, siret, "keyLicence", website)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + quoteColumns(entityColumns)

	var entity *model.Entity
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		entity, err = scanEntity(conn.QueryRow(ctx, query,
			in.Name,
			in.Description,
			in.Siret,
			in.KeyLicence,
			in.Website,
		))
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}

	return entity, nil
}

// ListEntities retrieves every entity ordered by ID.
func (r *Repository) ListEntities(ctx context.Context) ([]*model.Entity, error) {
	query := `SELECT ` + quoteColumns(entityColumns) + ` FROM entity ORDER BY id`

	var entities []*model.Entity
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			entity, err := scanEntity(rows)
			if err != nil {
				return fmt.Errorf("failed to scan entity: %w", err)
			}
			entities = append(entities, entity)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	return entities, nil
}

// GetEntityByID retrieves an entity by its ID.
func (r *Repository) GetEntityByID(ctx context.Context, id int64) (*model.Entity, error) {
	query := `SELECT ` + quoteColumns(entityColumns) + ` FROM entity WHERE id = $1`

	var entity *model.Entity
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		entity, err = scanEntity(conn.QueryRow(ctx, query, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get entity by ID: %w", err)
	}

	return entity, nil
}

// UpdateEntity writes the set fields of patch and returns the refreshed row.
func (r *Repository) UpdateEntity(ctx context.Context, id int64, patch model.EntityPatch) (*model.Entity, error) {
	var sets []assignment
	sets = appendOptional(sets, "name", patch.Name)
	sets = appendOptional(sets, "description", patch.Description)
	sets = appendOptional(sets, "siret", patch.Siret)
	sets = appendOptional(sets, "keyLicence", patch.KeyLicence)
	sets = appendOptional(sets, "website", patch.Website)

	if len(sets) == 0 {
		return nil, ErrNothingToUpdate
	}

	query, args := buildUpdate(entityTable, id, sets, entityColumns)

	var entity *model.Entity
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		entity, err = scanEntity(conn.QueryRow(ctx, query, args...))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}

	return entity, nil
}

// DeleteEntity removes an entity. Associations referencing it are removed by the store.
func (r *Repository) DeleteEntity(ctx context.Context, id int64) error {
	query := `DELETE FROM entity WHERE id = $1`

	var affected int64
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, query, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}

	if affected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

// EntityExists checks if an entity with the given ID exists.
func (r *Repository) EntityExists(ctx context.Context, id int64) (bool, error) {
	exists, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM entity WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check entity existence: %w", err)
	}

	return exists, nil
}

// scanEntity scans a single row into an Entity model.
func scanEntity(row pgx.Row) (*model.Entity, error) {
	var entity model.Entity
	err := row.Scan(
		&entity.ID,
		&entity.Name,
		&entity.Description,
		&entity.Siret,
		&entity.KeyLicence,
		&entity.Website,
	)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}
