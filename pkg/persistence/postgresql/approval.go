package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	json "github.com/goccy/go-json"
	"github.com/lib/pq"
)

// ApprovalRepository handles approval rows.
type ApprovalRepository struct {
	db *sql.DB
}

func NewApprovalRepository(db *sql.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

const upsertApproval = `
	INSERT INTO workflow_approvals (id, instance_id, step_order, approver_id, approver_role, decision, document, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		decision = EXCLUDED.decision,
		document = EXCLUDED.document
`

func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	row := r.db.QueryRowContext(ctx, `SELECT document FROM workflow_approvals WHERE id = $1`, id)

	approval, err := scanDocument[models.Approval](row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("GetByID", "approval", id, persistence.ErrApprovalNotFound)
		}

		return nil, persistence.NewRecordError("GetByID", "approval", id, err)
	}

	return approval, nil
}

func (r *ApprovalRepository) Save(ctx context.Context, approval *models.Approval) error {
	return r.SaveAll(ctx, []*models.Approval{approval})
}

// SaveAll upserts the approvals in one transaction.
func (r *ApprovalRepository) SaveAll(ctx context.Context, approvals []*models.Approval) error {
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		return upsertApprovals(ctx, tx, approvals)
	})
	if err != nil {
		return persistence.NewRecordError("SaveAll", "approval", "", err)
	}

	return nil
}

func upsertApprovals(ctx context.Context, db execer, approvals []*models.Approval) error {
	for _, approval := range approvals {
		document, err := json.Marshal(approval)
		if err != nil {
			return fmt.Errorf("failed to marshal approval %s: %w", approval.ID, err)
		}

		_, err = db.ExecContext(ctx, upsertApproval,
			approval.ID,
			approval.InstanceID,
			approval.StepOrder,
			approval.ApproverID,
			approval.ApproverRole,
			string(approval.Decision),
			document,
			approval.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save approval %s: %w", approval.ID, err)
		}
	}

	return nil
}

func (r *ApprovalRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.Approval, error) {
	return r.query(ctx, "ListByInstance", `
		SELECT document
		FROM workflow_approvals
		WHERE instance_id = $1
		ORDER BY step_order, created_at, id
	`, instanceID)
}

func (r *ApprovalRepository) FindPendingByApprover(ctx context.Context, userID string) ([]*models.Approval, error) {
	return r.query(ctx, "FindPendingByApprover", `
		SELECT document
		FROM workflow_approvals
		WHERE approver_id = $1 AND decision = 'pending'
		ORDER BY step_order, created_at, id
	`, userID)
}

func (r *ApprovalRepository) FindPendingByRole(ctx context.Context, roles []string) ([]*models.Approval, error) {
	if len(roles) == 0 {
		return []*models.Approval{}, nil
	}

	return r.query(ctx, "FindPendingByRole", `
		SELECT document
		FROM workflow_approvals
		WHERE approver_id = '' AND approver_role = ANY($1) AND decision = 'pending'
		ORDER BY step_order, created_at, id
	`, pq.Array(roles))
}

func (r *ApprovalRepository) query(ctx context.Context, op, query string, args ...any) ([]*models.Approval, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewRecordError(op, "approval", "", err)
	}

	approvals, err := scanDocuments[models.Approval](rows)
	if err != nil {
		return nil, persistence.NewRecordError(op, "approval", "", err)
	}

	return approvals, nil
}
