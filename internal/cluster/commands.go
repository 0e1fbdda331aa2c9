// Package cluster implements the 16384-slot cluster state machine,
// the CLUSTER subcommand surface, and MOVED/ASK redirection — grounded
// line-for-line on original_source/src/cluster/commands.rs for
// semantics, on the teacher's cluster/cluster.go for the Go RWMutex
// idiom, and on other_examples' faizanhussain2310-GoRedis
// cluster_handlers.go for the uppercase-subcommand dispatch shape.
package cluster

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/genuineh/aikv/internal/errkind"
	"github.com/genuineh/aikv/internal/resp"
	"github.com/sirupsen/logrus"
)

// Commands dispatches CLUSTER subcommands against a shared State.
type Commands struct {
	state *State
	log   *logrus.Entry
}

func NewCommands(state *State) *Commands {
	return &Commands{state: state, log: logrus.WithField("component", "cluster.commands")}
}

// Execute dispatches one CLUSTER invocation; args[0] is the
// subcommand, args[1:] its parameters.
func (c *Commands) Execute(args [][]byte) (resp.Value, error) {
	if len(args) == 0 {
		return resp.Value{}, errkind.WrongArgCountErr("CLUSTER")
	}
	sub := strings.ToUpper(string(args[0]))
	rest := args[1:]
	switch sub {
	case "KEYSLOT":
		return c.keyslot(rest)
	case "INFO":
		return c.info(rest)
	case "NODES":
		return c.nodes(rest)
	case "SLOTS":
		return c.slots(rest)
	case "MYID":
		return c.myid(rest)
	case "MEET":
		return c.meet(rest)
	case "FORGET":
		return c.forget(rest)
	case "ADDSLOTS":
		return c.addslots(rest)
	case "DELSLOTS":
		return c.delslots(rest)
	case "SETSLOT":
		return c.setslot(rest)
	case "BUMPEPOCH":
		return c.bumpepoch(rest)
	case "RESET":
		return c.reset(rest)
	case "HELP":
		return c.help(), nil
	default:
		return resp.Value{}, errkind.Newf(errkind.InvalidCommand, "Unknown CLUSTER subcommand '%s'", sub)
	}
}

func (c *Commands) keyslot(args [][]byte) (resp.Value, error) {
	if len(args) != 1 {
		return resp.Value{}, errkind.WrongArgCountErr("CLUSTER KEYSLOT")
	}
	return resp.NewInteger(int64(KeySlot(args[0]))), nil
}

func (c *Commands) info(_ [][]byte) (resp.Value, error) {
	snap := c.state.Snapshot()
	state := "fail"
	if snap.IsOK() {
		state = "ok"
	}
	known := len(snap.Nodes)
	if known < 1 {
		known = 1
	}
	assigned := snap.AssignedCount()
	body := fmt.Sprintf(
		"cluster_state:%s\r\n"+
			"cluster_slots_assigned:%d\r\n"+
			"cluster_slots_ok:%d\r\n"+
			"cluster_slots_pfail:0\r\n"+
			"cluster_slots_fail:0\r\n"+
			"cluster_known_nodes:%d\r\n"+
			"cluster_size:%d\r\n"+
			"cluster_current_epoch:%d\r\n"+
			"cluster_my_epoch:%d\r\n"+
			"cluster_stats_messages_sent:0\r\n"+
			"cluster_stats_messages_received:0\r\n",
		state, assigned, assigned, known, snap.DistinctOwners(), snap.Epoch, snap.Epoch,
	)
	return resp.NewBulkStringFromString(body), nil
}

func (c *Commands) nodes(_ [][]byte) (resp.Value, error) {
	snap := c.state.Snapshot()
	var out strings.Builder

	if len(snap.Nodes) == 0 {
		out.WriteString("0000000000000000000000000000000000000000 127.0.0.1:6379@16379 myself,master - 0 0 0 connected\r\n")
		return resp.NewBulkStringFromString(out.String()), nil
	}

	slotsByOwner := make(map[uint64][]SlotRange)
	for _, r := range snap.Ranges() {
		slotsByOwner[r.Owner] = append(slotsByOwner[r.Owner], r)
	}

	ids := make([]uint64, 0, len(snap.Nodes))
	for id := range snap.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		n := snap.Nodes[id]
		myself := ""
		if snap.HasSelf && id == snap.SelfID {
			myself = "myself,"
		}
		role := "master"
		if !n.IsMaster {
			role = "slave"
		}
		link := "connected"
		if !n.Connected {
			link = "disconnected"
		}
		var slotParts []string
		for _, r := range slotsByOwner[id] {
			if r.Start == r.End {
				slotParts = append(slotParts, strconv.Itoa(r.Start))
			} else {
				slotParts = append(slotParts, fmt.Sprintf("%d-%d", r.Start, r.End))
			}
		}
		slotsStr := ""
		if len(slotParts) > 0 {
			slotsStr = " " + strings.Join(slotParts, " ")
		}
		fmt.Fprintf(&out, "%040x %s@%d %s%s - 0 0 %d %s%s\r\n",
			id, n.Addr, n.ClusterPort, myself, role, snap.Epoch, link, slotsStr)
	}
	return resp.NewBulkStringFromString(out.String()), nil
}

func (c *Commands) slots(_ [][]byte) (resp.Value, error) {
	snap := c.state.Snapshot()
	ranges := snap.Ranges()
	elems := make([]resp.Value, 0, len(ranges))
	for _, r := range ranges {
		ip, port := "127.0.0.1", int64(6379)
		if n, ok := snap.Nodes[r.Owner]; ok {
			if host, p, ok := splitHostPort(n.Addr); ok {
				ip, port = host, p
			}
		}
		nodeEntry := resp.NewArray([]resp.Value{
			resp.NewBulkStringFromString(ip),
			resp.NewInteger(port),
			resp.NewBulkStringFromString(fmt.Sprintf("%040x", r.Owner)),
		})
		elems = append(elems, resp.NewArray([]resp.Value{
			resp.NewInteger(int64(r.Start)),
			resp.NewInteger(int64(r.End)),
			nodeEntry,
		}))
	}
	return resp.NewArray(elems), nil
}

func splitHostPort(addr string) (string, int64, bool) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, false
	}
	port, err := strconv.ParseInt(addr[idx+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return addr[:idx], port, true
}

func (c *Commands) myid(_ [][]byte) (resp.Value, error) {
	id, _ := c.state.SelfID()
	return resp.NewBulkStringFromString(fmt.Sprintf("%040x", id)), nil
}

func (c *Commands) meet(args [][]byte) (resp.Value, error) {
	if len(args) < 2 {
		return resp.Value{}, errkind.WrongArgCountErr("CLUSTER MEET")
	}
	ip := string(args[0])
	port, err := strconv.ParseUint(string(args[1]), 10, 16)
	if err != nil {
		return resp.Value{}, errkind.New(errkind.InvalidArgument, "Invalid port number")
	}
	var clusterPort uint32
	if len(args) > 2 {
		cp, err := strconv.ParseUint(string(args[2]), 10, 16)
		if err != nil {
			return resp.Value{}, errkind.New(errkind.InvalidArgument, "Invalid cluster port number")
		}
		clusterPort = uint32(cp)
	}
	if _, err := c.state.Meet(ip, uint16(port), clusterPort); err != nil {
		return resp.Value{}, errkind.New(errkind.InvalidArgument, err.Error())
	}
	return resp.NewSimpleString("OK"), nil
}

func (c *Commands) forget(args [][]byte) (resp.Value, error) {
	if len(args) != 1 {
		return resp.Value{}, errkind.WrongArgCountErr("CLUSTER FORGET")
	}
	id, err := parseHexID(args[0])
	if err != nil {
		return resp.Value{}, errkind.New(errkind.InvalidArgument, "Invalid node ID")
	}
	if err := c.state.Forget(id); err != nil {
		return resp.Value{}, errkind.New(errkind.InvalidArgument, err.Error())
	}
	return resp.NewSimpleString("OK"), nil
}

func (c *Commands) addslots(args [][]byte) (resp.Value, error) {
	if len(args) == 0 {
		return resp.Value{}, errkind.WrongArgCountErr("CLUSTER ADDSLOTS")
	}
	slots, err := parseSlots(args)
	if err != nil {
		return resp.Value{}, err
	}
	if err := c.state.AddSlots(slots); err != nil {
		return resp.Value{}, errkind.New(errkind.InvalidArgument, err.Error())
	}
	return resp.NewSimpleString("OK"), nil
}

func (c *Commands) delslots(args [][]byte) (resp.Value, error) {
	if len(args) == 0 {
		return resp.Value{}, errkind.WrongArgCountErr("CLUSTER DELSLOTS")
	}
	slots, err := parseSlots(args)
	if err != nil {
		return resp.Value{}, err
	}
	if err := c.state.DelSlots(slots); err != nil {
		return resp.Value{}, errkind.New(errkind.InvalidArgument, err.Error())
	}
	return resp.NewSimpleString("OK"), nil
}

func (c *Commands) setslot(args [][]byte) (resp.Value, error) {
	if len(args) < 2 {
		return resp.Value{}, errkind.WrongArgCountErr("CLUSTER SETSLOT")
	}
	slot, err := strconv.Atoi(string(args[0]))
	if err != nil || slot < 0 || slot >= NumSlots {
		return resp.Value{}, errkind.Newf(errkind.InvalidArgument, "Invalid slot %s (out of range 0-%d)", args[0], NumSlots-1)
	}
	sub := strings.ToUpper(string(args[1]))
	switch sub {
	case "IMPORTING":
		if len(args) < 3 {
			return resp.Value{}, errkind.WrongArgCountErr("CLUSTER SETSLOT IMPORTING")
		}
		src, err := parseHexID(args[2])
		if err != nil {
			return resp.Value{}, errkind.New(errkind.InvalidArgument, "Invalid node ID")
		}
		if err := c.state.SetSlotImporting(slot, src); err != nil {
			return resp.Value{}, errkind.New(errkind.Cluster, err.Error())
		}
	case "MIGRATING":
		if len(args) < 3 {
			return resp.Value{}, errkind.WrongArgCountErr("CLUSTER SETSLOT MIGRATING")
		}
		target, err := parseHexID(args[2])
		if err != nil {
			return resp.Value{}, errkind.New(errkind.InvalidArgument, "Invalid node ID")
		}
		if err := c.state.SetSlotMigrating(slot, target); err != nil {
			return resp.Value{}, errkind.New(errkind.Cluster, err.Error())
		}
	case "NODE":
		if len(args) < 3 {
			return resp.Value{}, errkind.WrongArgCountErr("CLUSTER SETSLOT NODE")
		}
		target, err := parseHexID(args[2])
		if err != nil {
			return resp.Value{}, errkind.New(errkind.InvalidArgument, "Invalid node ID")
		}
		if err := c.state.SetSlotNode(slot, target); err != nil {
			return resp.Value{}, errkind.New(errkind.InvalidArgument, err.Error())
		}
	case "STABLE":
		_ = c.state.SetSlotStable(slot)
	default:
		return resp.Value{}, errkind.Newf(errkind.InvalidArgument, "Unknown SETSLOT subcommand: %s", sub)
	}
	return resp.NewSimpleString("OK"), nil
}

func (c *Commands) bumpepoch(_ [][]byte) (resp.Value, error) {
	before := c.state.Epoch()
	after := c.state.BumpEpoch()
	if after == before {
		return resp.NewSimpleString(fmt.Sprintf("STILL %d", after)), nil
	}
	return resp.NewSimpleString(fmt.Sprintf("BUMPED %d", after)), nil
}

func (c *Commands) reset(_ [][]byte) (resp.Value, error) {
	c.state.Reset()
	return resp.NewSimpleString("OK"), nil
}

func (c *Commands) help() resp.Value {
	lines := []string{
		"CLUSTER KEYSLOT <key>",
		"    Return the hash slot for <key>.",
		"CLUSTER INFO",
		"    Return information about the cluster.",
		"CLUSTER NODES",
		"    Return information about the cluster nodes.",
		"CLUSTER SLOTS",
		"    Return information about slot-to-node mapping.",
		"CLUSTER MYID",
		"    Return the node ID.",
		"CLUSTER MEET <ip> <port> [<bus-port>]",
		"    Add a node to the cluster.",
		"CLUSTER FORGET <node-id>",
		"    Remove a node from the cluster.",
		"CLUSTER ADDSLOTS <slot> [<slot> ...]",
		"    Assign slots to this node.",
		"CLUSTER DELSLOTS <slot> [<slot> ...]",
		"    Remove slot assignments.",
		"CLUSTER SETSLOT <slot> IMPORTING|MIGRATING|NODE|STABLE [<node-id>]",
		"    Set slot state or assign to node.",
		"CLUSTER BUMPEPOCH",
		"    Advance and return the config epoch.",
		"CLUSTER RESET",
		"    Drop all known peers and slot ownership.",
	}
	elems := make([]resp.Value, len(lines))
	for i, l := range lines {
		elems[i] = resp.NewBulkStringFromString(l)
	}
	return resp.NewArray(elems)
}

func parseSlots(args [][]byte) ([]int, error) {
	slots := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(string(a))
		if err != nil || n < 0 || n >= NumSlots {
			return nil, errkind.Newf(errkind.InvalidArgument, "Invalid slot %s (out of range 0-%d)", a, NumSlots-1)
		}
		slots = append(slots, n)
	}
	return slots, nil
}

func parseHexID(b []byte) (uint64, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, fmt.Errorf("empty node id")
	}
	var id uint64
	for _, c := range bytes.ToLower([]byte(s)) {
		var v uint64
		switch {
		case c >= '0' && c <= '9':
			v = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v = uint64(c-'a') + 10
		default:
			return 0, fmt.Errorf("invalid hex digit")
		}
		id = id<<4 | v
	}
	return id, nil
}
