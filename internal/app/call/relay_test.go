package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_OfferAnswerEnd(t *testing.T) {
	r := NewRelay()
	a := Party{User: "alice", SID: "sa"}
	b := Party{User: "bob", SID: "sb"}

	assert.Equal(t, idle, r.stateOf("alice", "bob"))
	require.NoError(t, r.Offer(a, b))
	assert.Equal(t, offering, r.stateOf("alice", "bob"))
	assert.Equal(t, offering, r.stateOf("bob", "alice"))

	require.NoError(t, r.Answer("bob", "sb2", "alice"))
	assert.Equal(t, active, r.stateOf("alice", "bob"))

	peer, ok := r.Peer("alice", "bob")
	require.True(t, ok)
	assert.Equal(t, Party{User: "bob", SID: "sb2"}, peer)
	assert.Equal(t, 1, r.Count())

	assert.True(t, r.End("bob", "alice"))
	assert.Equal(t, idle, r.stateOf("alice", "bob"))
	assert.False(t, r.busy("alice"))
	assert.False(t, r.busy("bob"))
	assert.False(t, r.End("bob", "alice"))
}

func TestRelay_AnswerRequiresPairing(t *testing.T) {
	r := NewRelay()
	assert.ErrorIs(t, r.Answer("bob", "sb", "alice"), ErrNoPairing)
	assert.Equal(t, 0, r.Count())
}

func TestRelay_BusyTargetKeepsExistingPairing(t *testing.T) {
	r := NewRelay()
	require.NoError(t, r.Offer(Party{User: "bob", SID: "sb"}, Party{User: "carol", SID: "sc"}))
	require.NoError(t, r.Answer("carol", "sc", "bob"))

	err := r.Offer(Party{User: "alice", SID: "sa"}, Party{User: "bob", SID: "sb"})
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, r.busy("alice"))
	assert.Equal(t, idle, r.stateOf("alice", "bob"))
	assert.Equal(t, active, r.stateOf("bob", "carol"))
}

func TestRelay_PairedCallerCannotOfferSomeoneElse(t *testing.T) {
	r := NewRelay()
	require.NoError(t, r.Offer(Party{User: "alice"}, Party{User: "bob"}))

	assert.ErrorIs(t, r.Offer(Party{User: "alice"}, Party{User: "carol"}), ErrBusy)
	assert.Equal(t, offering, r.stateOf("alice", "bob"))
	assert.False(t, r.busy("carol"))
}

func TestRelay_RenegotiationKeepsState(t *testing.T) {
	r := NewRelay()
	require.NoError(t, r.Offer(Party{User: "alice", SID: "sa"}, Party{User: "bob", SID: "sb"}))
	require.NoError(t, r.Answer("bob", "sb", "alice"))

	require.NoError(t, r.Offer(Party{User: "bob", SID: "sb"}, Party{User: "alice", SID: "sa"}))
	assert.Equal(t, active, r.stateOf("alice", "bob"))
	assert.Equal(t, 1, r.Count())
}

func TestRelay_SelfCallIsBusy(t *testing.T) {
	r := NewRelay()
	assert.ErrorIs(t, r.Offer(Party{User: "alice"}, Party{User: "alice"}), ErrBusy)
}

func TestRelay_DropOnlyForCarryingConnection(t *testing.T) {
	r := NewRelay()
	require.NoError(t, r.Offer(Party{User: "alice", SID: "sa"}, Party{User: "bob", SID: "sb"}))

	_, ok := r.Drop("alice", "other-tab")
	assert.False(t, ok)
	assert.True(t, r.busy("alice"))

	peer, ok := r.Drop("alice", "sa")
	require.True(t, ok)
	assert.Equal(t, Party{User: "bob", SID: "sb"}, peer)
	assert.False(t, r.busy("bob"))
}
