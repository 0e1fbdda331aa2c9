package cluster

import (
	"errors"
	"fmt"
)

// Meet registers a new node, deriving its id from HashNodeID("ip:port")
// and its cluster-bus port from clusterPort (0 means derive from port).
func (s *State) Meet(ip string, port uint16, clusterPort uint32) (uint64, error) {
	addr := fmt.Sprintf("%s:%d", ip, port)
	id := HashNodeID(addr)
	err := s.mutate(func() (bool, error) {
		s.nodes[id] = NewNodeInfo(id, addr, clusterPort)
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	s.log.WithFields(map[string]any{"node_id": id, "addr": addr}).Info("cluster meet")
	return id, nil
}

// ErrForgetSelf is the exact message spec.md §4.2 requires for FORGET
// of the local node id.
const ErrForgetSelf = "I tried hard but I can't forget myself"

// Forget removes a node and clears any slots it owned.
func (s *State) Forget(id uint64) error {
	return s.mutate(func() (bool, error) {
		if s.hasSelf && id == s.selfID {
			return false, errors.New(ErrForgetSelf)
		}
		if _, ok := s.nodes[id]; !ok {
			return false, fmt.Errorf("Unknown node %040x", id)
		}
		delete(s.nodes, id)
		for slot := 0; slot < NumSlots; slot++ {
			if s.assigned[slot] && s.slots[slot] == id {
				s.assigned[slot] = false
				s.slots[slot] = 0
				delete(s.migration, slot)
			}
		}
		return true, nil
	})
}

// AddSlots assigns every slot to self, atomically: if any slot is
// already owned by a different node, none are modified.
func (s *State) AddSlots(slots []int) error {
	return s.mutate(func() (bool, error) {
		if !s.hasSelf {
			return false, fmt.Errorf("node id not set for this node")
		}
		for _, slot := range slots {
			if s.assigned[slot] && s.slots[slot] != s.selfID {
				return false, fmt.Errorf("Slot %d is already busy", slot)
			}
		}
		for _, slot := range slots {
			s.assigned[slot] = true
			s.slots[slot] = s.selfID
		}
		return true, nil
	})
}

// DelSlots clears assignment and migration state for the given slots,
// validate-then-apply: if any slot is owned by a node other than self
// (and self is known), none are modified.
func (s *State) DelSlots(slots []int) error {
	return s.mutate(func() (bool, error) {
		for _, slot := range slots {
			if s.assigned[slot] && s.hasSelf && s.slots[slot] != s.selfID {
				return false, fmt.Errorf("Slot %d is not owned by this node", slot)
			}
		}
		for _, slot := range slots {
			s.assigned[slot] = false
			s.slots[slot] = 0
			delete(s.migration, slot)
		}
		return true, nil
	})
}

// SetSlotImporting records slot as Importing(source).
func (s *State) SetSlotImporting(slot int, source uint64) error {
	return s.mutate(func() (bool, error) {
		s.migration[slot] = Migration{Kind: Importing, Peer: source}
		return true, nil
	})
}

// SetSlotMigrating records slot as Migrating(target).
func (s *State) SetSlotMigrating(slot int, target uint64) error {
	return s.mutate(func() (bool, error) {
		s.migration[slot] = Migration{Kind: Migrating, Peer: target}
		return true, nil
	})
}

// SetSlotNode reassigns slot to target and clears migration state.
// target must be known or equal to self.
func (s *State) SetSlotNode(slot int, target uint64) error {
	return s.mutate(func() (bool, error) {
		if _, ok := s.nodes[target]; !ok && !(s.hasSelf && target == s.selfID) {
			return false, fmt.Errorf("Unknown node %040x", target)
		}
		s.assigned[slot] = true
		s.slots[slot] = target
		delete(s.migration, slot)
		return true, nil
	})
}

// SetSlotStable clears any migration state on slot.
func (s *State) SetSlotStable(slot int) error {
	return s.mutate(func() (bool, error) {
		delete(s.migration, slot)
		return true, nil
	})
}

// BumpEpoch forces the epoch forward by one and returns the new value
// — CLUSTER BUMPEPOCH, supplemented from original_source's epoch model
// (spec.md's Non-goals do not exclude it).
func (s *State) BumpEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

// Reset clears all nodes but self and all slot/migration state —
// CLUSTER RESET, supplemented from original_source.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.nodes {
		if s.hasSelf && id == s.selfID {
			continue
		}
		delete(s.nodes, id)
	}
	for slot := 0; slot < NumSlots; slot++ {
		s.assigned[slot] = false
		s.slots[slot] = 0
	}
	s.migration = make(map[int]Migration)
	s.epoch++
}
