package cluster

import (
	"fmt"

	"github.com/genuineh/aikv/internal/errkind"
)

// Redirect describes the outcome of routing a key against the local
// cluster view — grounded on original_source's check_redirect /
// moved_error / ask_error and the teacher's cluster/redirect.go MOVED
// decision shape.
type Redirect int

const (
	// ServeLocally: the slot is owned by this node (or unassigned and
	// single-node mode), serve the command directly.
	ServeLocally Redirect = iota
	// Moved: the slot is permanently owned by another node.
	Moved
	// Ask: the slot is mid-migration away from this node; the client
	// must retry against Peer after sending ASKING.
	Ask
	// ClusterDown: the slot has no owner at all.
	ClusterDown
)

// RouteDecision is the result of resolving a key against the cluster
// view: which of the four outcomes applies, and (for Moved/Ask) which
// node and address to redirect to.
type RouteDecision struct {
	Result Redirect
	Slot   int
	NodeID uint64
	Addr   string
}

// Route decides how a command touching key should be handled. When
// clusterEnabled is false, routing never redirects — single-node mode.
func (s *State) Route(key []byte, clusterEnabled bool) RouteDecision {
	slot := KeySlot(key)
	if !clusterEnabled {
		return RouteDecision{Result: ServeLocally, Slot: slot}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, assigned := s.slots[slot], s.assigned[slot]
	mig, hasMig := s.migration[slot]

	// Self owns the slot outright: serve locally regardless of any
	// Migrating half-state (a missing key there is a storage-layer
	// concern, not a routing one — see spec.md §9's Open Question on
	// migration-state locality enforcement).
	if s.hasSelf && assigned && owner == s.selfID {
		return RouteDecision{Result: ServeLocally, Slot: slot}
	}

	// Self is mid-import of an unowned-by-self slot: serve locally so
	// the client can populate keys during the migration window.
	if hasMig && mig.Kind == Importing && s.hasSelf {
		return RouteDecision{Result: ServeLocally, Slot: slot}
	}

	if !assigned {
		return RouteDecision{Result: ClusterDown, Slot: slot}
	}

	target := s.nodes[owner]
	return RouteDecision{Result: Moved, Slot: slot, NodeID: owner, Addr: target.Addr}
}

// MigratingTarget reports whether slot is owned by self and currently
// Migrating out, returning the target node's address. The executor
// calls this only after a local key lookup misses, so that keys not
// yet migrated are still served from here (spec.md §4.2's ASK
// contract: ASK is advisory per-key, not per-slot).
func (s *State) MigratingTarget(slot int) (addr string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasSelf || !s.assigned[slot] || s.slots[slot] != s.selfID {
		return "", false
	}
	mig, hasMig := s.migration[slot]
	if !hasMig || mig.Kind != Migrating {
		return "", false
	}
	target, known := s.nodes[mig.Peer]
	if !known {
		return "", false
	}
	return target.Addr, true
}

// MovedError builds the "-MOVED <slot> <ip>:<port>" error per spec.md
// §4.2.
func MovedError(slot int, addr string) *errkind.Error {
	return errkind.WithToken(errkind.Cluster, "MOVED", fmt.Sprintf("%d %s", slot, addr))
}

// AskError builds the "-ASK <slot> <ip>:<port>" error.
func AskError(slot int, addr string) *errkind.Error {
	return errkind.WithToken(errkind.Cluster, "ASK", fmt.Sprintf("%d %s", slot, addr))
}

// ClusterDownError builds the "-CLUSTERDOWN" error for an unassigned
// slot with cluster mode enabled.
func ClusterDownError(slot int) *errkind.Error {
	return errkind.WithToken(errkind.Cluster, "CLUSTERDOWN", fmt.Sprintf("Hash slot %d not served", slot))
}
