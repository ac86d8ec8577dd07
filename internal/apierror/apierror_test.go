package apierror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsSetHTTPStatus(t *testing.T) {
	cases := []struct {
		build      func() *Error
		wantKind   Kind
		wantStatus int
	}{
		{func() *Error { return BadRequest("bad %s", "input") }, KindBadRequest, 400},
		{func() *Error { return Unauthorized("nope") }, KindUnauthorized, 401},
		{func() *Error { return Forbidden("nope") }, KindForbidden, 403},
		{func() *Error { return NotFound("missing %s", "x") }, KindNotFound, 404},
		{func() *Error { return Conflict("dup") }, KindConflict, 409},
		{func() *Error { return PayloadTooLarge("too big") }, KindPayloadTooLarge, 413},
		{func() *Error { return Internal("boom") }, KindInternal, 500},
	}
	for _, tc := range cases {
		err := tc.build()
		assert.Equal(t, tc.wantKind, err.Kind)
		assert.Equal(t, tc.wantStatus, err.HTTPStatus)
	}
}

func TestIs(t *testing.T) {
	err := NotFound("tenant %q not found", "t1")
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindForbidden))
	assert.False(t, Is(errors.New("plain"), KindNotFound))
}

func TestWrapPreservesExistingError(t *testing.T) {
	inner := BadRequest("bad input")
	require.Same(t, inner, Wrap(inner, "wrapped"))

	wrapped := Wrap(errors.New("io failure"), "could not read %s", "file")
	require.Equal(t, KindInternal, wrapped.Kind)
	assert.Contains(t, wrapped.Error(), "io failure")
	assert.ErrorIs(t, wrapped, wrapped.Unwrap())
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "unused"))
}

func TestWithChecksAndDetails(t *testing.T) {
	err := Forbidden("blocked").WithChecks([]string{"kill_switch_ok"}).WithDetails(map[string]int{"n": 1})
	assert.Equal(t, []string{"kill_switch_ok"}, err.Checks)
	assert.Equal(t, map[string]int{"n": 1}, err.Details)
}
