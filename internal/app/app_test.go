package app

import (
	"sync"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *stubConn) TrySend(core.Frame) error { return nil }

func (c *stubConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func member(sid, uid string, room domain.RoomID) core.MemberSession {
	user := &domain.User{ID: domain.UserID(uid), Username: uid}
	return core.NewMemberSession(core.SessionID(sid), domain.NewMember(user, room), &stubConn{})
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	conn := &stubConn{}
	canceled := false
	r.BindSignal("s1", conn, func() { canceled = true })

	_, _, ok := r.RoomOf("s1")
	assert.False(t, ok)
	_, ok = r.GetSession("s1")
	assert.False(t, ok)

	ms := member("s1", "alice", "lobby")
	require.True(t, r.BindSession("s1", "lobby", ms))
	assert.False(t, r.BindSession("missing", "lobby", ms))

	room, got, ok := r.RoomOf("s1")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("lobby"), room)
	assert.Equal(t, ms, got)

	r.RemoveRoom("s1")
	_, _, ok = r.RoomOf("s1")
	assert.False(t, ok)
	c, ok := r.Conn("s1")
	require.True(t, ok)
	assert.Equal(t, conn, c)

	assert.True(t, r.Cancel("s1"))
	assert.True(t, canceled)
	assert.True(t, conn.closed)

	r.Unbind("s1")
	assert.Zero(t, r.Count())
	assert.False(t, r.Cancel("s1"))
}

func TestRoomManager_DiscardsEmptyRoom(t *testing.T) {
	m := NewRoomManager()
	room := m.Join("r", member("s1", "alice", "r"))
	m.Join("r", member("s2", "bob", "r"))
	room.SetTyping("alice", true, nil)
	_, err := room.MarkRead("bob", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, []core.RoomInfo{{ID: "r", MemberCount: 2}}, m.List())

	_, ok := m.Leave("r", "s1")
	assert.True(t, ok)
	assert.Equal(t, 1, m.Count())
	assert.Empty(t, room.TypingUsers())

	last, ok := m.Leave("r", "s2")
	assert.True(t, ok)
	assert.Zero(t, last.MemberCount())
	assert.Zero(t, m.Count())
	_, ok = m.Get("r")
	assert.False(t, ok)

	fresh := m.Join("r", member("s3", "bob", "r"))
	assert.NotSame(t, room, fresh)
	assert.Empty(t, fresh.Watermarks())
	assert.Empty(t, fresh.TypingUsers())
}

func TestRoomManager_LeaveUnknown(t *testing.T) {
	m := NewRoomManager()
	_, ok := m.Leave("nope", "s1")
	assert.False(t, ok)

	m.Join("r", member("s1", "alice", "r"))
	_, ok = m.Leave("r", "other")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Count())
}

func TestRoomManager_ListSorted(t *testing.T) {
	m := NewRoomManager()
	m.Join("b", member("s1", "alice", "b"))
	m.Join("a", member("s2", "bob", "a"))
	m.Join("a", member("s3", "carol", "a"))

	assert.Equal(t, []core.RoomInfo{{ID: "a", MemberCount: 2}, {ID: "b", MemberCount: 1}}, m.List())
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor("")
	require.NoError(t, err)
	assert.Equal(t, KickMember, p.OnBackPressure(nil, nil))

	p, err = PolicyFor("drop")
	require.NoError(t, err)
	assert.Equal(t, DropFrame, p.OnBackPressure(nil, nil))

	_, err = PolicyFor("ignore")
	assert.Error(t, err)
}
