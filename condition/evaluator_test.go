package condition

import (
	"testing"

	"logsentry/core"
)

func rec(pairs ...interface{}) core.Record {
	r := make(core.Record)
	for i := 0; i+1 < len(pairs); i += 2 {
		r[pairs[i].(string)] = pairs[i+1]
	}
	return r
}

func evalOK(t *testing.T, expr string, r core.Record, want bool) {
	t.Helper()
	c, err := Compile(expr)
	if err != nil {
		t.Fatalf("Compile(%q): %v", expr, err)
	}
	got := c.Eval(r)
	if got != want {
		t.Errorf("Compile(%q).Eval(%v) = %v, want %v", expr, r, got, want)
	}
}

func TestAbsenceIsFalseExceptIsNull(t *testing.T) {
	empty := rec()

	cases := []string{
		"a = 'x'",
		"a != 'x'",
		"a <> 'x'",
		"a < 1",
		"a > 1",
		"a IN ('x', 'y')",
		"a NOT IN ('x', 'y')",
		"a CONTAINS 'x'",
		"a NOT CONTAINS 'x'",
		"a STARTSWITH 'x'",
		"a NOT STARTSWITH 'x'",
		"a ENDSWITH 'x'",
		"a NOT ENDSWITH 'x'",
		"a MATCH 'x*'",
		"a LIKE 'x%'",
	}
	for _, expr := range cases {
		evalOK(t, expr, empty, false)
	}

	evalOK(t, "a IS NULL", empty, true)
	evalOK(t, "a IS NOT NULL", empty, false)
}

func TestNullVsAbsent(t *testing.T) {
	withNull := rec("a", nil)

	evalOK(t, "a IS NULL", withNull, true)
	evalOK(t, "a IS NOT NULL", withNull, false)
	evalOK(t, "a = 'x'", withNull, false)
}

func TestComparisonOperators(t *testing.T) {
	r := rec("status", "FAILURE", "count", float64(5))

	evalOK(t, "status = 'FAILURE'", r, true)
	evalOK(t, "status != 'FAILURE'", r, false)
	evalOK(t, "status <> 'SUCCESS'", r, true)
	evalOK(t, "count > 3", r, true)
	evalOK(t, "count >= 5", r, true)
	evalOK(t, "count < 5", r, false)
	evalOK(t, "count <= 5", r, true)
	evalOK(t, "count > 10", r, false)
}

func TestInAndNotIn(t *testing.T) {
	r := rec("userIdentity", map[string]interface{}{"type": "Root"})

	evalOK(t, "userIdentity.type IN ('Root', 'IAMUser')", r, true)
	evalOK(t, "userIdentity.type NOT IN ('Root', 'IAMUser')", r, false)
	evalOK(t, "userIdentity.type IN ('IAMUser')", r, false)
}

func TestStringOperators(t *testing.T) {
	r := rec("eventName", "DeleteBucket")

	evalOK(t, "eventName CONTAINS 'Bucket'", r, true)
	evalOK(t, "eventName NOT CONTAINS 'Bucket'", r, false)
	evalOK(t, "eventName STARTSWITH 'Delete'", r, true)
	evalOK(t, "eventName NOT STARTSWITH 'Delete'", r, false)
	evalOK(t, "eventName ENDSWITH 'Bucket'", r, true)
	evalOK(t, "eventName NOT ENDSWITH 'Bucket'", r, false)
}

func TestMatchAndLike(t *testing.T) {
	r := rec("eventName", "DeleteBucket")

	evalOK(t, "eventName MATCH 'Delete*'", r, true)
	evalOK(t, "eventName MATCH '*Object'", r, false)
	evalOK(t, "eventName LIKE 'Delete%'", r, true)
	evalOK(t, "eventName LIKE '_eleteBucket'", r, true)
}

func TestLogicalPrecedenceAndParens(t *testing.T) {
	r := rec("a", "1", "b", "2", "c", "3")

	// AND binds tighter than OR.
	evalOK(t, "a = '1' OR b = '9' AND c = '9'", r, true)
	evalOK(t, "(a = '1' OR b = '9') AND c = '9'", r, false)
	evalOK(t, "NOT a = '9'", r, true)
	evalOK(t, "NOT (a = '1' AND b = '2')", r, false)
}

func TestNestedPathAndArrayIndex(t *testing.T) {
	r := rec("requestParameters", map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"name": "first"},
			map[string]interface{}{"name": "second"},
		},
	})

	evalOK(t, "requestParameters.items[1].name = 'second'", r, true)
	evalOK(t, "requestParameters.items[5].name = 'second'", r, false)
}

func TestCompileRejectsMalformedConditions(t *testing.T) {
	bad := []string{
		"",
		"a = ",
		"a = 'unterminated",
		"(a = '1'",
		"a WHERE '1'",
		"a IN ()",
	}
	for _, expr := range bad {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q) succeeded, want error", expr)
		}
	}
}

func TestValidateReportsOffset(t *testing.T) {
	result := Validate("eventName EQUALS 'DeleteBucket'")
	if result.Valid {
		t.Fatalf("expected invalid condition, got valid")
	}
	if result.Offset == 0 {
		t.Errorf("expected a non-zero offset into the condition")
	}
}

func TestValidateAcceptsWellFormedCondition(t *testing.T) {
	result := Validate("eventName = 'DeleteBucket' AND userIdentity.type = 'Root'")
	if !result.Valid {
		t.Fatalf("expected valid condition, got: %s", result.Message)
	}
}
