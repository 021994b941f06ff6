package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	json "github.com/goccy/go-json"
)

// InstanceRepository handles workflow instance rows.
type InstanceRepository struct {
	db *sql.DB
}

func NewInstanceRepository(db *sql.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	row := r.db.QueryRowContext(ctx, `SELECT document FROM workflow_instances WHERE id = $1`, id)

	instance, err := scanDocument[models.WorkflowInstance](row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("GetByID", "instance", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewRecordError("GetByID", "instance", id, err)
	}

	return instance, nil
}

func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	err := upsertInstance(ctx, r.db, instance)
	if err != nil {
		return persistence.NewRecordError("Save", "instance", instance.ID, err)
	}

	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertInstance(ctx context.Context, db execer, instance *models.WorkflowInstance) error {
	instance.UpdatedAt = time.Now().UTC()

	document, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO workflow_instances (id, definition_id, entity_type, entity_id, status, document, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`,
		instance.ID,
		instance.DefinitionID,
		instance.EntityType,
		instance.EntityID,
		string(instance.Status),
		document,
		instance.StartedAt,
		instance.UpdatedAt,
	)

	return err
}

func (r *InstanceRepository) ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT document
		FROM workflow_instances
		WHERE status = $1
		ORDER BY started_at, id
	`, string(status))
	if err != nil {
		return nil, persistence.NewRecordError("ListByStatus", "instance", "", err)
	}

	instances, err := scanDocuments[models.WorkflowInstance](rows)
	if err != nil {
		return nil, persistence.NewRecordError("ListByStatus", "instance", "", err)
	}

	return instances, nil
}

func (r *InstanceRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]*models.WorkflowInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT document
		FROM workflow_instances
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY started_at, id
	`, entityType, entityID)
	if err != nil {
		return nil, persistence.NewRecordError("FindByEntity", "instance", "", err)
	}

	instances, err := scanDocuments[models.WorkflowInstance](rows)
	if err != nil {
		return nil, persistence.NewRecordError("FindByEntity", "instance", "", err)
	}

	return instances, nil
}
