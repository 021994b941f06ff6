package triggers

import (
	"math"
	"slices"
	"strings"
)

// varianceEpsilon keeps the variance finite when the old value is zero.
const varianceEpsilon = 1e-9

// BudgetVariance returns the signed change and its size relative to the old value, in percent.
func BudgetVariance(oldValue, newValue float64) (float64, float64) {
	amount := newValue - oldValue
	base := math.Max(math.Abs(oldValue), varianceEpsilon)

	return amount, math.Abs(amount) / base * 100
}

// ShouldFireBudget fires when the variance reaches the threshold.
func ShouldFireBudget(oldValue, newValue, thresholdPercent float64) bool {
	_, percent := BudgetVariance(oldValue, newValue)

	return percent >= thresholdPercent
}

// ShouldFireMilestone fires for every update of an approval-gated milestone type.
func ShouldFireMilestone(milestoneType string, gatedTypes []string) bool {
	return slices.ContainsFunc(gatedTypes, func(gated string) bool {
		return strings.EqualFold(gated, milestoneType)
	})
}

// ShouldFireResource fires when the allocation strictly exceeds the threshold.
func ShouldFireResource(allocationPercent, thresholdPercent float64) bool {
	return allocationPercent > thresholdPercent
}

// ShouldFireRisk fires for the configured risk levels.
func ShouldFireRisk(riskLevel string, levels []string) bool {
	return slices.ContainsFunc(levels, func(level string) bool {
		return strings.EqualFold(level, riskLevel)
	})
}
