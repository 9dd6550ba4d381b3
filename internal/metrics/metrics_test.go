package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordConfirmation(t *testing.T) {
	before := testutil.ToFloat64(paymentConfirmations.WithLabelValues("webhook", "completed", "true"))
	RecordConfirmation("webhook", "completed", true)
	RecordConfirmation("webhook", "completed", false)

	assert.Equal(t, before+1, testutil.ToFloat64(paymentConfirmations.WithLabelValues("webhook", "completed", "true")))
}

func TestRecordViolation(t *testing.T) {
	beforeV := testutil.ToFloat64(violations.WithLabelValues("devtools"))
	beforeB := testutil.ToFloat64(bansIssued.WithLabelValues("devtools"))

	RecordViolation("devtools", false)
	RecordViolation("devtools", true)

	assert.Equal(t, beforeV+2, testutil.ToFloat64(violations.WithLabelValues("devtools")))
	assert.Equal(t, beforeB+1, testutil.ToFloat64(bansIssued.WithLabelValues("devtools")))
}
