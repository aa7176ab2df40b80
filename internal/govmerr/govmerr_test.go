package govmerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(Integrity, "go1.22.3", ErrChecksumMismatch)
	assert.True(t, Is(err, Integrity))
	assert.False(t, Is(err, Transport))
}

func TestKindOf(t *testing.T) {
	err := Newf(Input, "1.2.3", "%w", ErrVersionNotFound)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, Input, kind)

	_, ok = KindOf(errors.New("plain error"))
	assert.False(t, ok)
}

func TestUnwrapReachesSentinel(t *testing.T) {
	err := New(Input, "1.2.3", ErrVersionNotFound)
	assert.True(t, errors.Is(err, ErrVersionNotFound))
}

func TestErrorMessageIncludesSubject(t *testing.T) {
	err := New(IO, "/tmp/foo", errors.New("disk full"))
	assert.Contains(t, err.Error(), "/tmp/foo")
	assert.Contains(t, err.Error(), "disk full")
}
