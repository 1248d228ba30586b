package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectIsIdempotent(t *testing.T) {
	n := NewNotifier()
	c := &Connection{}

	n.Connect(c, "order-42")
	n.Connect(c, "order-42")

	assert.Len(t, n.Members("order-42"), 1)
	assert.True(t, n.Contains(c, "order-42"))
}

func TestMembersSnapshot(t *testing.T) {
	n := NewNotifier()

	assert.Nil(t, n.Members("order-42"))

	a, b := &Connection{}, &Connection{}
	n.Connect(a, "order-42")
	n.Connect(b, "order-42")

	members := n.Members("order-42")
	assert.Len(t, members, 2)
	assert.NotContains(t, n.Members("order-7"), a)
}

func TestRemoveDropsEmptyRoom(t *testing.T) {
	n := NewNotifier()
	a, b := &Connection{}, &Connection{}

	n.Connect(a, "order-42")
	n.Connect(b, "order-42")

	n.Remove(a, "order-42")
	assert.False(t, n.Contains(a, "order-42"))
	assert.True(t, n.Contains(b, "order-42"))

	n.Remove(b, "order-42")
	assert.Nil(t, n.Members("order-42"))

	// removing from a room that no longer exists is fine
	n.Remove(b, "order-42")
	n.Remove(b, "never-existed")
}
