package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-ai/relay/pkg/types"
)

func TestPendingThenResponse(t *testing.T) {
	c := New(0)

	c.PutPending("req-1", "sess-1")

	entry, ok := c.Get("req-1")
	require.True(t, ok)
	assert.True(t, entry.Pending)
	assert.Equal(t, "sess-1", entry.SessionID)
	assert.Nil(t, entry.Response)

	c.PutResponse("req-1", &types.TurnResponse{SessionID: "sess-1", Reply: "done", Completed: true})

	entry, ok = c.Get("req-1")
	require.True(t, ok)
	assert.False(t, entry.Pending)
	require.NotNil(t, entry.Response)
	assert.Equal(t, "done", entry.Response.Reply)
}

func TestEmptyKeyIgnored(t *testing.T) {
	c := New(0)

	c.PutPending("", "sess-1")
	c.PutResponse("", &types.TurnResponse{SessionID: "sess-1"})

	_, ok := c.Get("")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New(60 * time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.PutResponse("req-1", &types.TurnResponse{SessionID: "sess-1"})

	now = now.Add(59 * time.Second)
	_, ok := c.Get("req-1")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("req-1")
	assert.False(t, ok)
}

func TestSweepOnWrite(t *testing.T) {
	c := New(60 * time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.PutPending("req-old", "sess-1")
	now = now.Add(2 * time.Minute)
	c.PutPending("req-new", "sess-2")

	c.mu.Lock()
	_, oldExists := c.entries["req-old"]
	c.mu.Unlock()
	assert.False(t, oldExists)
}
