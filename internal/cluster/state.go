package cluster

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/sirupsen/logrus"
)

// NodeInfo is the identity and topology of one cluster node, grounded
// on original_source's cluster::commands::NodeInfo and on
// other_examples' faizanhussain2310-GoRedis cluster Node type for the
// master/replica and connectivity flags.
type NodeInfo struct {
	ID          uint64
	Addr        string // host:port, data plane
	ClusterPort uint32 // cluster-bus port, Addr's port + 10000 unless overridden
	IsMaster    bool
	Connected   bool
}

// NewNodeInfo derives the cluster-bus port from addr's port (+10000)
// unless clusterPort is non-zero.
func NewNodeInfo(id uint64, addr string, clusterPort uint32) NodeInfo {
	if clusterPort == 0 {
		clusterPort = derivedClusterPort(addr)
	}
	return NodeInfo{
		ID:          id,
		Addr:        addr,
		ClusterPort: clusterPort,
		IsMaster:    true,
		Connected:   true,
	}
}

// derivedClusterPort parses the port out of a host:port address and
// adds 10000, falling back to 16379 (6379+10000) if addr is malformed.
func derivedClusterPort(addr string) uint32 {
	idx := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			idx = i
			break
		}
	}
	if idx < 0 || idx == len(addr)-1 {
		return 16379
	}
	var port uint32
	for _, c := range addr[idx+1:] {
		if c < '0' || c > '9' {
			return 16379
		}
		port = port*10 + uint32(c-'0')
	}
	if port > 65535 {
		return 16379
	}
	return port + 10000
}

// MigrationKind tags the half-state of a slot undergoing migration.
type MigrationKind int

const (
	Migrating MigrationKind = iota
	Importing
)

// Migration records a slot's transient migration half-state. Absence
// of an entry for a slot means Stable.
type Migration struct {
	Kind MigrationKind
	Peer uint64
}

// State is the authoritative local view of the cluster: node registry,
// slot ownership vector, per-slot migration map, and a monotonic
// configuration epoch. It is shared across all connection sessions
// behind a reader-preferring lock (sync.RWMutex) — grounded on
// original_source's Arc<RwLock<ClusterState>> and on the teacher's
// storage.RedisDb RWMutex discipline.
type State struct {
	mu sync.RWMutex

	selfID  uint64
	hasSelf bool

	nodes     map[uint64]NodeInfo
	slots     [NumSlots]uint64 // 0 means Unassigned; any real node id is non-zero in practice but presence is tracked in assigned
	assigned  [NumSlots]bool
	migration map[int]Migration
	epoch     uint64

	// Bootstrap records whether this node was configured to initialize
	// durable cluster membership (AIKV_BOOTSTRAP). It never drives any
	// consensus action in this core — consensus ("MetaRaft") is an
	// external collaborator — it is surfaced only for diagnostics.
	Bootstrap bool

	log *logrus.Entry
}

// New creates an empty cluster state. If hasSelf is true, the local
// node is registered immediately under selfID with address selfAddr.
func New(selfID uint64, selfAddr string, hasSelf bool) *State {
	s := &State{
		nodes:     make(map[uint64]NodeInfo),
		migration: make(map[int]Migration),
		selfID:    selfID,
		hasSelf:   hasSelf,
		log:       logrus.WithField("component", "cluster"),
	}
	if hasSelf {
		s.nodes[selfID] = NewNodeInfo(selfID, selfAddr, 0)
	}
	return s
}

// HashNodeID derives a stable 64-bit node id from an "ip:port" string,
// used by CLUSTER MEET — grounded on original_source's
// DefaultHasher-over-addr scheme, translated to Go's FNV-1a since the
// exact hash family is unobserved behavior (an Open Question per
// spec.md §9): any stable, deterministic hash satisfies the contract.
func HashNodeID(addrKey string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(addrKey))
	return h.Sum64()
}

// SelfID returns the local node id, or 0 if unset.
func (s *State) SelfID() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID, s.hasSelf
}

// NodeByID returns a copy of the given node's info.
func (s *State) NodeByID(id uint64) (NodeInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// SlotOwner returns the node id owning slot, if assigned.
func (s *State) SlotOwner(slot int) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot < 0 || slot >= NumSlots || !s.assigned[slot] {
		return 0, false
	}
	return s.slots[slot], true
}

// SlotMigration returns the migration half-state of slot, if any.
func (s *State) SlotMigration(slot int) (Migration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.migration[slot]
	return m, ok
}

// Epoch returns the current configuration epoch.
func (s *State) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Snapshot is a read-only, point-in-time view used by CLUSTER
// INFO/NODES/SLOTS and by the admin HTTP surface so both render from
// exactly the same data.
type Snapshot struct {
	SelfID    uint64
	HasSelf   bool
	Nodes     map[uint64]NodeInfo
	Slots     [NumSlots]uint64
	Assigned  [NumSlots]bool
	Migration map[int]Migration
	Epoch     uint64
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := make(map[uint64]NodeInfo, len(s.nodes))
	for k, v := range s.nodes {
		nodes[k] = v
	}
	migration := make(map[int]Migration, len(s.migration))
	for k, v := range s.migration {
		migration[k] = v
	}
	snap := Snapshot{
		SelfID:    s.selfID,
		HasSelf:   s.hasSelf,
		Nodes:     nodes,
		Migration: migration,
		Epoch:     s.epoch,
	}
	snap.Slots = s.slots
	snap.Assigned = s.assigned
	return snap
}

// AssignedCount returns how many of the 16384 slots have an owner.
func (snap Snapshot) AssignedCount() int {
	n := 0
	for _, a := range snap.Assigned {
		if a {
			n++
		}
	}
	return n
}

// IsOK reports the cluster_state field: ok iff every slot is assigned
// and at least one node is known.
func (snap Snapshot) IsOK() bool {
	return snap.AssignedCount() == NumSlots && len(snap.Nodes) > 0
}

// DistinctOwners returns the count of distinct node ids that own at
// least one slot — the cluster_size field.
func (snap Snapshot) DistinctOwners() int {
	seen := make(map[uint64]struct{})
	for i, a := range snap.Assigned {
		if a {
			seen[snap.Slots[i]] = struct{}{}
		}
	}
	return len(seen)
}

// SlotRange is a coalesced maximal run of contiguous slots sharing one
// owner, produced by walking the slot vector once in index order.
type SlotRange struct {
	Start, End int
	Owner      uint64
}

// Ranges coalesces the slot vector into contiguous per-owner ranges.
// Unassigned slots never start or continue a range.
func (snap Snapshot) Ranges() []SlotRange {
	var ranges []SlotRange
	var cur *SlotRange
	for slot := 0; slot < NumSlots; slot++ {
		if !snap.Assigned[slot] {
			cur = nil
			continue
		}
		owner := snap.Slots[slot]
		if cur != nil && cur.Owner == owner && cur.End == slot-1 {
			cur.End = slot
			continue
		}
		ranges = append(ranges, SlotRange{Start: slot, End: slot, Owner: owner})
		cur = &ranges[len(ranges)-1]
	}
	return ranges
}

// mutate runs fn under the write lock and bumps the epoch exactly once
// iff fn returns true — centralizing the "epoch strictly increases on
// every mutation" invariant (spec.md §3/§8) in one place.
func (s *State) mutate(fn func() (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bumped, err := fn()
	if err != nil {
		return err
	}
	if bumped {
		s.epoch++
	}
	return nil
}

func (s *State) String() string {
	snap := s.Snapshot()
	return fmt.Sprintf("cluster(nodes=%d epoch=%d assigned=%d)", len(snap.Nodes), snap.Epoch, snap.AssignedCount())
}
