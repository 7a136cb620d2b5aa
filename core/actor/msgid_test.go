package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageID_Flip(t *testing.T) {
	var g idGen
	for _, p := range []Priority{PriorityNormal, PriorityHigh} {
		req := g.next(p)
		require.True(t, req.IsRequest())
		require.False(t, req.IsResponse())
		require.False(t, req.IsAsync())
		require.Equal(t, p, req.Priority())

		res := req.Response()
		require.True(t, res.IsResponse())
		require.False(t, res.IsRequest())
		require.Equal(t, req.Seq(), res.Seq())
		require.Equal(t, p, res.Priority())
		require.Equal(t, req, res.Request())
		require.Equal(t, res, res.Response())
	}
}

func TestMessageID_Async(t *testing.T) {
	id := AsyncID(PriorityNormal)
	assert.True(t, id.IsAsync())
	assert.False(t, id.IsRequest())
	assert.False(t, id.IsUrgent())

	id = AsyncID(PriorityHigh)
	assert.True(t, id.IsAsync())
	assert.True(t, id.IsUrgent())
	assert.Equal(t, uint64(0), id.Seq())
}

func TestMessageID_Priority(t *testing.T) {
	var g idGen
	id := g.next(PriorityNormal)
	hi := id.WithHighPriority()
	require.True(t, hi.IsUrgent())
	require.Equal(t, id.Seq(), hi.Seq())
	require.Equal(t, id, hi.WithNormalPriority())
	require.Equal(t, id.Response().key(), hi.Response().key())
	require.Equal(t, hi, id.WithPriority(PriorityHigh))
}

func TestIDGen_Monotonic(t *testing.T) {
	var g idGen
	last := uint64(0)
	for range 100 {
		id := g.next(PriorityNormal)
		require.Greater(t, id.Seq(), last)
		last = id.Seq()
	}
}

func TestIDGen_Exhausted(t *testing.T) {
	var g idGen
	g.last.Store(maxSeq)
	require.Panics(t, func() { g.next(PriorityNormal) })
}

func TestMessageID_String(t *testing.T) {
	var g idGen
	id := g.next(PriorityHigh)
	assert.Equal(t, "request#1(high)", id.String())
	assert.Equal(t, "response#1(high)", id.Response().String())
	assert.Equal(t, "async#0(normal)", AsyncID(PriorityNormal).String())
}
