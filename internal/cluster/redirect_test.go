package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteServesLocallyWhenClusterDisabled(t *testing.T) {
	s := New(HashNodeID("10.0.0.1:6379"), "10.0.0.1:6379", true)
	decision := s.Route([]byte("anykey"), false)
	assert.Equal(t, ServeLocally, decision.Result)
}

func TestRouteMovedToOtherOwner(t *testing.T) {
	self := HashNodeID("10.0.0.1:6379")
	peer := HashNodeID("10.0.0.2:6379")
	s := New(self, "10.0.0.1:6379", true)
	_, err := s.Meet("10.0.0.2", 6379, 0)
	require.NoError(t, err)
	require.NoError(t, s.SetSlotNode(KeySlot([]byte("foo")), peer))

	decision := s.Route([]byte("foo"), true)
	assert.Equal(t, Moved, decision.Result)
	assert.Equal(t, "10.0.0.2:6379", decision.Addr)
}

func TestRouteClusterDownOnUnassignedSlot(t *testing.T) {
	s := New(HashNodeID("10.0.0.1:6379"), "10.0.0.1:6379", true)
	decision := s.Route([]byte("foo"), true)
	assert.Equal(t, ClusterDown, decision.Result)
}

func TestRouteServesLocallyWhenSelfOwnsEvenMidMigration(t *testing.T) {
	self := HashNodeID("10.0.0.1:6379")
	peer := HashNodeID("10.0.0.2:6379")
	s := New(self, "10.0.0.1:6379", true)
	_, err := s.Meet("10.0.0.2", 6379, 0)
	require.NoError(t, err)
	slot := KeySlot([]byte("foo"))
	require.NoError(t, s.AddSlots([]int{slot}))
	require.NoError(t, s.SetSlotMigrating(slot, peer))

	decision := s.Route([]byte("foo"), true)
	assert.Equal(t, ServeLocally, decision.Result)
}

func TestMigratingTargetOnlyWhenSelfOwnsAndMigratingOut(t *testing.T) {
	self := HashNodeID("10.0.0.1:6379")
	peer := HashNodeID("10.0.0.2:6379")
	s := New(self, "10.0.0.1:6379", true)
	_, err := s.Meet("10.0.0.2", 6379, 0)
	require.NoError(t, err)
	slot := KeySlot([]byte("foo"))
	require.NoError(t, s.AddSlots([]int{slot}))

	_, ok := s.MigratingTarget(slot)
	assert.False(t, ok, "no migration in progress yet")

	require.NoError(t, s.SetSlotMigrating(slot, peer))
	addr, ok := s.MigratingTarget(slot)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2:6379", addr)
}

func TestMigratingTargetFalseWhenImportingNotMigrating(t *testing.T) {
	self := HashNodeID("10.0.0.1:6379")
	peer := HashNodeID("10.0.0.2:6379")
	s := New(self, "10.0.0.1:6379", true)
	_, err := s.Meet("10.0.0.2", 6379, 0)
	require.NoError(t, err)
	slot := KeySlot([]byte("foo"))
	require.NoError(t, s.AddSlots([]int{slot}))
	require.NoError(t, s.SetSlotImporting(slot, peer))

	_, ok := s.MigratingTarget(slot)
	assert.False(t, ok)
}

func TestErrorBuilders(t *testing.T) {
	assert.Equal(t, "MOVED 5 127.0.0.1:6379", MovedError(5, "127.0.0.1:6379").Error())
	assert.Equal(t, "ASK 5 127.0.0.1:6379", AskError(5, "127.0.0.1:6379").Error())
	assert.Contains(t, ClusterDownError(5).Error(), "CLUSTERDOWN")
}
