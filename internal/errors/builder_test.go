package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderChain(t *testing.T) {
	err := NewError("charge failed").
		WithMessagef("tenant %s cycle %s", "tenant-1", "2026-08-01").
		WithHint("The payment could not be completed").
		WithReportableDetails(map[string]any{
			"tenant_id": "tenant-1",
		}).
		Mark(ErrPaymentDeclined)

	assert.True(t, IsPaymentDeclined(err))
	assert.Contains(t, err.Error(), "tenant tenant-1 cycle 2026-08-01")
	assert.Contains(t, err.Error(), "charge failed")
	assert.Equal(t, http.StatusPaymentRequired, HTTPStatusFromErr(err))
}

func TestWithErrorPreservesCause(t *testing.T) {
	cause := NewError("row not found").Mark(ErrNotFound)

	wrapped := WithError(cause).
		WithHint("Subscription does not exist").
		Mark(ErrDatabase)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, Is(wrapped, ErrDatabase))
}

func TestNewErrorResponse(t *testing.T) {
	err := NewError("mandate missing").
		WithHint("Sign a mandate before billing").
		WithReportableDetails(map[string]any{
			"tenant_id": "tenant-1",
		}).
		Mark(ErrPreconditionFailed)

	resp := NewErrorResponse(err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Sign a mandate before billing", resp.Error.Display)
	assert.Equal(t, "tenant-1", resp.Error.Details["tenant_id"])
}

func TestNewErrorResponseWithoutHint(t *testing.T) {
	resp := NewErrorResponse(NewError("boom").Mark(ErrSystem))
	assert.Equal(t, "An unexpected error occurred", resp.Error.Display)
	assert.Empty(t, resp.Error.Details)
}
