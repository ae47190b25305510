package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/lens/dashboard"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(maxSessions int, ttl time.Duration) (*Store, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	st := NewStore(maxSessions, ttl)
	st.now = c.now
	return st, c
}

func TestStoreAddGetDelete(t *testing.T) {
	st, _ := newTestStore(4, time.Hour)
	sizes := []int{}
	st.changed = func(n int) { sizes = append(sizes, n) }

	s := dashboard.NewSession(dashboard.VariantRetail)
	id := st.Add(s)

	got, err := st.Get(id)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, st.Delete(id))
	_, err = st.Get(id)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, st.Delete(id), ErrUnknownSession)
	assert.Equal(t, []int{1, 0}, sizes)

	_, err = st.Get("../etc/passwd")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestStoreExpiry(t *testing.T) {
	st, c := newTestStore(4, 30*time.Minute)

	idle := st.Add(dashboard.NewSession(dashboard.VariantRetail))
	busy := st.Add(dashboard.NewSession(dashboard.VariantGeneral))

	c.t = c.t.Add(20 * time.Minute)
	_, err := st.Get(busy)
	require.NoError(t, err)

	c.t = c.t.Add(20 * time.Minute)
	_, err = st.Get(idle)
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = st.Get(busy)
	assert.NoError(t, err)

	c.t = c.t.Add(time.Hour)
	assert.Equal(t, 1, st.Prune())
	assert.Zero(t, st.Len())
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	st, c := newTestStore(2, 0)

	first := st.Add(dashboard.NewSession(dashboard.VariantRetail))
	c.t = c.t.Add(time.Second)
	second := st.Add(dashboard.NewSession(dashboard.VariantRetail))
	c.t = c.t.Add(time.Second)
	_, err := st.Get(first)
	require.NoError(t, err)

	c.t = c.t.Add(time.Second)
	third := st.Add(dashboard.NewSession(dashboard.VariantRetail))

	assert.Equal(t, 2, st.Len())
	_, err = st.Get(second)
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = st.Get(first)
	assert.NoError(t, err)
	_, err = st.Get(third)
	assert.NoError(t, err)
}
