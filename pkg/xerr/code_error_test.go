package xerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("retrieve: %w", Upstream("embedding service unavailable", cause))

	assert.True(t, errors.Is(err, ErrUpstream))
	assert.False(t, errors.Is(err, ErrInput))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindUpstreamUnavailable, KindOf(err))
	assert.True(t, IsKind(err, KindUpstreamUnavailable))
}

func TestIsKindWalksNestedCodeErrors(t *testing.T) {
	inner := Upstream("llm unavailable", errors.New("503"))
	outer := Wrap(KindToolExecution, "tool failed", inner)

	assert.Equal(t, KindToolExecution, KindOf(outer))
	assert.True(t, IsKind(outer, KindUpstreamUnavailable))
	assert.False(t, IsKind(outer, KindLoopExceeded))
	assert.False(t, IsKind(errors.New("plain"), KindInput))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestCodesFollowKind(t *testing.T) {
	assert.Equal(t, BadRequest, Input("query is empty").Code)
	assert.Equal(t, NotFound, NewKind(KindNotFound, "no such property").Code)
	assert.Equal(t, ServiceUnavailable, Upstream("x", nil).Code)
	assert.Equal(t, InternalServerError, NewKind(KindLoopExceeded, "x").Code)
}

func TestErrorHidesCauseOnlyWhenAbsent(t *testing.T) {
	assert.Equal(t, "Code: 400, Message: bad", Input("bad").Error())
	assert.Contains(t, Upstream("down", errors.New("boom")).Error(), "boom")
}

func TestPlainCodeErrorsCompareByCodeAndMessage(t *testing.T) {
	assert.True(t, errors.Is(New(BadRequest, "Invalid parameters"), ErrParam))
	assert.False(t, errors.Is(New(BadRequest, "other"), ErrParam))
}
