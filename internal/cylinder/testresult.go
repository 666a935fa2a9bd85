package cylinder

import (
	"strings"

	"cylinder-backend/internal/models"
)

// NormalizeTestResult maps the free-form result typed by inspectors onto
// Pass, Fail or Conditional. Unknown values pass through trimmed; empty
// input returns nil.
func NormalizeTestResult(raw string) *models.TestResult {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	var r models.TestResult
	switch strings.ToUpper(v) {
	case "FINE", "OK", "PASS", "PASSED":
		r = models.TestResultPass
	case "FAIL", "FAILED", "NOT OK", "NOT_OK":
		r = models.TestResultFail
	case "CONDITIONAL", "COND":
		r = models.TestResultConditional
	default:
		r = models.TestResult(v)
	}
	return &r
}
