package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCloser struct {
	closed bool
	err    error
}

func (f *fakeCloser) Close() error {
	f.closed = true
	return f.err
}

func TestRegisterUnregister(t *testing.T) {
	f := &fakeCloser{}
	id := Register(f)
	Unregister(id)

	CloseAll()
	assert.False(t, f.closed, "unregistered closer should not be closed by CloseAll")
}

func TestCloseAllDrainsRegisteredClosers(t *testing.T) {
	a := &fakeCloser{}
	b := &fakeCloser{}
	Register(a)
	Register(b)

	CloseAll()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestCloseAllContinuesAfterError(t *testing.T) {
	a := &fakeCloser{err: errors.New("boom")}
	b := &fakeCloser{}
	Register(a)
	Register(b)

	CloseAll()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
