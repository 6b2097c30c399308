// Package testharness implements the Rule Test Harness (C7): validate a
// condition's syntax, then evaluate it against a sample log file so an
// analyst can iterate on a rule before saving it (spec.md §4.7).
package testharness

import (
	"time"

	"logsentry/condition"
	"logsentry/core"
	"logsentry/ingest"
)

// sampleSize bounds how many non-matching records are returned alongside
// the matches, enough to spot-check a near-miss without returning the
// whole file back to the caller.
const sampleSize = 20

// Run validates conditionExpr and, if it parses, evaluates it against
// every record loaded from logPath under format.
func Run(conditionExpr, logPath string, format core.LogType) *core.TestRuleResult {
	start := time.Now()

	validation := condition.Validate(conditionExpr)
	if !validation.Valid {
		return &core.TestRuleResult{
			SyntaxValid:     false,
			SyntaxError:     validation.Message,
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}
	}

	cond, err := condition.Compile(conditionExpr)
	if err != nil {
		return &core.TestRuleResult{
			SyntaxValid:     false,
			SyntaxError:     err.Error(),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}
	}

	records, err := ingest.Load(logPath, format)
	if err != nil {
		return &core.TestRuleResult{
			SyntaxValid:     true,
			SyntaxError:     err.Error(),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}
	}

	result := &core.TestRuleResult{
		SyntaxValid: true,
		TotalCount:  len(records),
	}
	for _, rec := range records {
		if cond.Eval(rec) {
			result.MatchedCount++
			if len(result.MatchedEvents) < core.MaxEvidence {
				result.MatchedEvents = append(result.MatchedEvents, rec)
			}
		} else if len(result.SampleNonMatched) < sampleSize {
			result.SampleNonMatched = append(result.SampleNonMatched, rec)
		}
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result
}
