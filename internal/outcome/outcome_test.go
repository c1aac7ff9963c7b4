package outcome

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcome_ExactlyOneVariant(t *testing.T) {
	ok := Success("hello")
	v, isOK := ok.Value()
	assert.True(t, isOK)
	assert.Equal(t, "hello", v)
	assert.Equal(t, TagSuccess, ok.Tag())
	assert.Empty(t, ok.Reason())
	assert.NoError(t, ok.Err())

	empty := Empty[string]("no speech")
	_, isOK = empty.Value()
	assert.False(t, isOK)
	assert.Equal(t, TagEmpty, empty.Tag())
	assert.Equal(t, "no speech", empty.Reason())
	assert.NoError(t, empty.Err())

	boom := errors.New("boom")
	failed := Fail[[]byte](boom)
	_, isOK = failed.Value()
	assert.False(t, isOK)
	assert.Equal(t, TagError, failed.Tag())
	assert.Empty(t, failed.Reason())
	assert.ErrorIs(t, failed.Err(), boom)
}

func TestFail_NilErrorStillCarriesCause(t *testing.T) {
	o := Fail[int](nil)
	assert.Equal(t, TagError, o.Tag())
	assert.Error(t, o.Err())
}
