package rulestore

import (
	"fmt"
	"time"

	"logsentry/condition"
	"logsentry/core"
)

// Validate checks a rule's schema and its condition's syntax. It does not
// evaluate the condition against any record — that is the job of
// condition.Compile's caller at scan time.
func Validate(r *core.Rule) error {
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", core.ErrSchema)
	}
	if r.Detection.Condition == "" {
		return fmt.Errorf("%w: detection.condition is required", core.ErrSchema)
	}
	if r.Detection.Severity == "" {
		r.Detection.Severity = core.SeverityMedium
	}
	if !r.Detection.Severity.Valid() {
		return fmt.Errorf("%w: invalid severity %q", core.ErrSchema, r.Detection.Severity)
	}
	if r.Status == "" {
		r.Status = core.StatusActive
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", core.ErrSchema, r.Status)
	}
	if _, err := condition.Compile(r.Detection.Condition); err != nil {
		return fmt.Errorf("%w: condition: %v", core.ErrSchema, err)
	}
	if agg := r.Detection.Aggregation; agg != nil && agg.Enabled {
		if agg.Window == "" {
			return fmt.Errorf("%w: aggregation.window is required", core.ErrSchema)
		}
		if _, err := time.ParseDuration(agg.Window); err != nil {
			return fmt.Errorf("%w: invalid aggregation.window %q: %v", core.ErrSchema, agg.Window, err)
		}
		if _, _, err := core.ParseThreshold(agg.Threshold); err != nil {
			return fmt.Errorf("%w: invalid aggregation.threshold %q: %v", core.ErrSchema, agg.Threshold, err)
		}
	}
	return nil
}
