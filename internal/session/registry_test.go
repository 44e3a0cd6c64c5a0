package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateGetRemove(t *testing.T) {
	r, err := NewRegistry(10, Deps{Assessor: new(MockAssessor)})
	require.NoError(t, err)

	s := r.Create()
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	assert.True(t, r.Remove(s.ID))
	assert.False(t, r.Remove(s.ID))

	_, err = r.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	r, err := NewRegistry(2, Deps{Assessor: new(MockAssessor)})
	require.NoError(t, err)

	a := r.Create()
	b := r.Create()

	// touch a so b becomes the oldest
	_, err = r.Get(a.ID)
	require.NoError(t, err)

	r.Create()

	assert.Equal(t, 2, r.Len())
	_, err = r.Get(a.ID)
	assert.NoError(t, err)
	_, err = r.Get(b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	r, err := NewRegistry(10, Deps{Assessor: new(MockAssessor)})
	require.NoError(t, err)

	a := r.Create()
	b := r.Create()

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.store, b.store)
}

func TestRegistry_SessionsArePerProcess(t *testing.T) {
	deps := Deps{Assessor: new(MockAssessor), Lock: new(MockLock)}
	first, err := NewRegistry(10, deps)
	require.NoError(t, err)
	second, err := NewRegistry(10, deps)
	require.NoError(t, err)

	s := first.Create()

	_, err = second.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound, "a registry never sees another registry's sessions")
}

func TestNewRegistry_Errors(t *testing.T) {
	_, err := NewRegistry(10, Deps{})
	assert.Error(t, err)

	_, err = NewRegistry(0, Deps{Assessor: new(MockAssessor)})
	assert.Error(t, err)
}
