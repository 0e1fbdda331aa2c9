package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSlotsAtomicOnConflict(t *testing.T) {
	other := HashNodeID("10.0.0.2:6379")
	s := New(HashNodeID("10.0.0.1:6379"), "10.0.0.1:6379", true)
	require.NoError(t, s.mutate(func() (bool, error) {
		s.nodes[other] = NewNodeInfo(other, "10.0.0.2:6379", 0)
		s.assigned[5] = true
		s.slots[5] = other
		return true, nil
	}))

	err := s.AddSlots([]int{1, 2, 5})
	assert.Error(t, err)

	owner, assigned := s.SlotOwner(1)
	assert.False(t, assigned)
	assert.Zero(t, owner)
}

func TestAddSlotsThenDelSlots(t *testing.T) {
	s := New(HashNodeID("10.0.0.1:6379"), "10.0.0.1:6379", true)
	require.NoError(t, s.AddSlots([]int{0, 1, 2}))
	owner, ok := s.SlotOwner(1)
	assert.True(t, ok)
	selfID, _ := s.SelfID()
	assert.Equal(t, selfID, owner)

	require.NoError(t, s.DelSlots([]int{1}))
	_, ok = s.SlotOwner(1)
	assert.False(t, ok)
}

func TestEpochMonotonicOnlyOnSuccess(t *testing.T) {
	other := HashNodeID("10.0.0.2:6379")
	s := New(HashNodeID("10.0.0.1:6379"), "10.0.0.1:6379", true)
	before := s.Epoch()

	require.NoError(t, s.AddSlots([]int{10}))
	afterSuccess := s.Epoch()
	assert.Greater(t, afterSuccess, before)

	require.NoError(t, s.mutate(func() (bool, error) {
		s.nodes[other] = NewNodeInfo(other, "10.0.0.2:6379", 0)
		s.assigned[9000] = true
		s.slots[9000] = other
		return true, nil
	}))
	afterSetup := s.Epoch()

	err := s.AddSlots([]int{10, 9000})
	assert.Error(t, err)
	assert.Equal(t, afterSetup, s.Epoch())
}

func TestForgetSelfRefused(t *testing.T) {
	id := HashNodeID("10.0.0.1:6379")
	s := New(id, "10.0.0.1:6379", true)
	err := s.Forget(id)
	require.Error(t, err)
	assert.Equal(t, ErrForgetSelf, err.Error())
}

func TestForgetClearsOwnedSlots(t *testing.T) {
	self := HashNodeID("10.0.0.1:6379")
	peer := HashNodeID("10.0.0.2:6379")
	s := New(self, "10.0.0.1:6379", true)
	_, err := s.Meet("10.0.0.2", 6379, 0)
	require.NoError(t, err)
	require.NoError(t, s.SetSlotNode(100, peer))

	require.NoError(t, s.Forget(peer))
	_, ok := s.SlotOwner(100)
	assert.False(t, ok)
}

func TestSnapshotRangesCoalesce(t *testing.T) {
	s := New(HashNodeID("10.0.0.1:6379"), "10.0.0.1:6379", true)
	require.NoError(t, s.AddSlots([]int{0, 1, 2, 3, 5, 6}))

	ranges := s.Snapshot().Ranges()
	require.Len(t, ranges, 2)
	assert.Equal(t, SlotRange{Start: 0, End: 3, Owner: mustSelf(s)}, ranges[0])
	assert.Equal(t, SlotRange{Start: 5, End: 6, Owner: mustSelf(s)}, ranges[1])
}

func mustSelf(s *State) uint64 {
	id, _ := s.SelfID()
	return id
}
