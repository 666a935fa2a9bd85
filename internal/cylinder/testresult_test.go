package cylinder

import (
	"testing"

	"cylinder-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTestResult(t *testing.T) {
	cases := map[string]models.TestResult{
		"FINE":        models.TestResultPass,
		"ok":          models.TestResultPass,
		" Passed ":    models.TestResultPass,
		"pass":        models.TestResultPass,
		"fail":        models.TestResultFail,
		"Failed":      models.TestResultFail,
		"not ok":      models.TestResultFail,
		"NOT_OK":      models.TestResultFail,
		"cond":        models.TestResultConditional,
		"Conditional": models.TestResultConditional,
		"  Retest  ":  "Retest",
	}
	for in, want := range cases {
		got := NormalizeTestResult(in)
		if assert.NotNil(t, got, in) {
			assert.Equal(t, want, *got, in)
		}
	}

	assert.Nil(t, NormalizeTestResult(""))
	assert.Nil(t, NormalizeTestResult("   "))
}
