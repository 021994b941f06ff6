package recovery

const (
	// MaxStoreAttempts bounds retries for database and integration failures.
	MaxStoreAttempts = 3
	// MaxWorkflowAttempts bounds retries for escalation and delegation failures.
	MaxWorkflowAttempts = 2
	// ManualInterventionAttempts is the attempt count after which high severity failures
	// need a human.
	ManualInterventionAttempts = 2
)

// SelectAction picks the recovery action for a failure. attempts is the number of earlier
// failures of the same category on the same instance. Rules are applied top to bottom.
func SelectAction(category Category, severity Severity, attempts int) Action {
	if severity == SeverityCritical {
		return ActionNotifyAdmin
	}

	if severity == SeverityHigh && attempts >= ManualInterventionAttempts {
		return ActionManualIntervention
	}

	switch category {
	case CategoryValidation:
		return ActionRollback
	case CategoryDatabase:
		if attempts < MaxStoreAttempts {
			return ActionRetry
		}

		return ActionNotifyAdmin
	case CategoryIntegration:
		if attempts < MaxStoreAttempts {
			return ActionRetry
		}

		return ActionManualIntervention
	case CategoryTimeout:
		return ActionEscalate
	case CategoryPermission:
		return ActionNotifyAdmin
	case CategoryEscalation, CategoryDelegation:
		if attempts < MaxWorkflowAttempts {
			return ActionRetry
		}

		return ActionNotifyAdmin
	case CategoryStateTransition:
		return ActionRollback
	case CategoryNotification:
		return ActionIgnore
	default:
		return ActionNotifyAdmin
	}
}
