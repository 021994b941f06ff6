// Package recovery classifies engine failures and drives category-specific remediation.
package recovery

type Category string

const (
	CategoryValidation      Category = "validation"
	CategoryDatabase        Category = "database"
	CategoryPermission      Category = "permission"
	CategoryTimeout         Category = "timeout"
	CategoryEscalation      Category = "escalation"
	CategoryDelegation      Category = "delegation"
	CategoryStateTransition Category = "state_transition"
	CategoryNotification    Category = "notification"
	CategoryIntegration     Category = "integration"
	CategorySystem          Category = "system"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Action string

const (
	ActionRetry              Action = "retry"
	ActionRollback           Action = "rollback"
	ActionEscalate           Action = "escalate"
	ActionNotifyAdmin        Action = "notify_admin"
	ActionManualIntervention Action = "manual_intervention"
	ActionIgnore             Action = "ignore"
)

// InstanceScoped reports whether the action changes the affected instance.
func (a Action) InstanceScoped() bool {
	return a == ActionRollback || a == ActionEscalate || a == ActionManualIntervention
}

// DefaultSeverity is the severity assumed when a failure does not carry one.
func DefaultSeverity(category Category) Severity {
	switch category {
	case CategoryValidation, CategoryNotification:
		return SeverityLow
	case CategoryPermission:
		return SeverityHigh
	case CategoryDatabase, CategoryIntegration, CategoryTimeout, CategoryEscalation,
		CategoryDelegation, CategoryStateTransition:
		return SeverityMedium
	default:
		return SeverityCritical
	}
}
