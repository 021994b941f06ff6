package engine

import "github.com/Stefan/orka-ppm-sub007/pkg/models"

// required returns how many required approvals must approve for the step to be satisfied.
func required(step *models.Step, total int) int {
	switch step.ApprovalType {
	case models.ApprovalTypeAll:
		return total
	case models.ApprovalTypeMajority:
		return total/2 + 1
	case models.ApprovalTypeQuorum:
		if step.QuorumCount != nil {
			return min(*step.QuorumCount, total)
		}

		return total
	default:
		return min(1, total)
	}
}

// stepOutcome evaluates the approvals of one step. A step fails as soon as the remaining
// undecided and approved slots can no longer reach the required count.
func stepOutcome(step *models.Step, approvals []*models.Approval) models.StepOutcome {
	var total, approved, rejected int

	for _, approval := range approvals {
		if approval.StepOrder != step.Order || !approval.IsRequired {
			continue
		}

		total++

		switch approval.Decision {
		case models.DecisionApproved:
			approved++
		case models.DecisionRejected:
			rejected++
		case models.DecisionPending:
		}
	}

	need := required(step, total)

	switch {
	case approved >= need:
		return models.StepOutcomeSatisfied
	case total-rejected < need:
		return models.StepOutcomeFailed
	default:
		return models.StepOutcomePending
	}
}
