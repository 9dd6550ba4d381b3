package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type violationRequest struct {
	ViolationType string `json:"violationType" validate:"required,violation_type"`
	Description   string `json:"description" validate:"max=500"`
}

func TestValidate_ViolationType(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(violationRequest{ViolationType: "devtools"}))

	err := v.Validate(violationRequest{ViolationType: "screenshot"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Unknown violation type", verr.Errors["violationType"])

	err = v.Validate(violationRequest{})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "This field is required", verr.Errors["violationType"])
}

func TestValidate_PaymentStatus(t *testing.T) {
	type req struct {
		Status string `json:"status" validate:"payment_status"`
	}
	v := New()
	assert.NoError(t, v.Validate(req{Status: "completed"}))
	assert.NoError(t, v.Validate(req{}))
	assert.Error(t, v.Validate(req{Status: "paid"}))
}

func TestValidate_UUID(t *testing.T) {
	type req struct {
		MovieID string `json:"movieId" validate:"omitempty,uuid"`
	}
	v := New()
	assert.NoError(t, v.Validate(req{}))
	assert.NoError(t, v.Validate(req{MovieID: "0b6f1f9e-3c1a-4f5e-9d2a-7b8c9d0e1f2a"}))

	err := v.Validate(req{MovieID: "movie-1"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Must be a valid UUID", verr.Errors["movieId"])
}
