package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	require.Equal(t, "Resource not found", ErrNotFound.Error())
	require.Equal(t, "Internal server error: disk full", ErrInternalServer.WithInternal(stdErrors.New("disk full")).Error())

	var nilErr *AppError
	require.Equal(t, "<nil>", nilErr.Error())
}

func TestCopiesLeaveSentinelUntouched(t *testing.T) {
	cause := stdErrors.New("upstream 500")
	with := ErrGenerationFailed.WithInternal(cause).WithDetails(map[string]any{"kind": "analytics"})

	require.Nil(t, ErrGenerationFailed.Internal)
	require.Nil(t, ErrGenerationFailed.Details)
	require.Equal(t, "analytics", with.Details["kind"])
	require.Equal(t, http.StatusBadGateway, with.StatusCode)
	require.ErrorIs(t, with, cause)
	require.ErrorIs(t, with, ErrGenerationFailed)
	require.NotErrorIs(t, with, ErrNotFound)
}

func TestWithDetailsMerges(t *testing.T) {
	first := ErrBadRequest.WithDetails(map[string]any{"a": 1})
	second := first.WithDetails(map[string]any{"b": 2})

	require.Equal(t, map[string]any{"a": 1}, first.Details)
	require.Equal(t, map[string]any{"a": 1, "b": 2}, second.Details)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))
	require.Same(t, ErrNotFound, FromError(ErrNotFound))
	require.Same(t, ErrRateLimit, FromError(fmt.Errorf("middleware: %w", ErrRateLimit)))

	raw := FromError(stdErrors.New("raw"))
	require.Equal(t, ErrInternalServer.Code, raw.Code)
	require.NotNil(t, raw.Internal)

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	timeout := FromError(fmt.Errorf("generate: %w", ctx.Err()))
	require.Equal(t, http.StatusGatewayTimeout, timeout.StatusCode)
}

func TestFormattedConstructors(t *testing.T) {
	notFound := NewNotFound("realtime stream %q not found", "billing")
	require.Equal(t, ErrNotFound.Code, notFound.Code)
	require.Equal(t, `realtime stream "billing" not found`, notFound.Message)
	require.ErrorIs(t, notFound, ErrNotFound)

	bad := NewBadRequest("invalid JSON payload")
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}
