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

// DefinitionRepository handles workflow definition rows.
type DefinitionRepository struct {
	db *sql.DB
}

func NewDefinitionRepository(db *sql.DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

func (r *DefinitionRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT document
		FROM workflow_definitions
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, persistence.NewRecordError("GetAll", "definition", "", err)
	}

	definitions, err := scanDocuments[models.WorkflowDefinition](rows)
	if err != nil {
		return nil, persistence.NewRecordError("GetAll", "definition", "", err)
	}

	return definitions, nil
}

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	row := r.db.QueryRowContext(ctx, `SELECT document FROM workflow_definitions WHERE id = $1`, id)

	definition, err := scanDocument[models.WorkflowDefinition](row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("GetByID", "definition", id, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewRecordError("GetByID", "definition", id, err)
	}

	return definition, nil
}

func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	now := time.Now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	document, err := json.Marshal(definition)
	if err != nil {
		return persistence.NewRecordError("Save", "definition", definition.ID, fmt.Errorf("failed to marshal definition: %w", err))
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_definitions (id, name, status, version, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`,
		definition.ID,
		definition.Name,
		string(definition.Status),
		definition.Version,
		document,
		definition.CreatedAt,
		definition.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "definition", definition.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) ListByStatus(ctx context.Context, status models.DefinitionStatus) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT document
		FROM workflow_definitions
		WHERE status = $1
		ORDER BY created_at, id
	`, string(status))
	if err != nil {
		return nil, persistence.NewRecordError("ListByStatus", "definition", "", err)
	}

	definitions, err := scanDocuments[models.WorkflowDefinition](rows)
	if err != nil {
		return nil, persistence.NewRecordError("ListByStatus", "definition", "", err)
	}

	return definitions, nil
}
