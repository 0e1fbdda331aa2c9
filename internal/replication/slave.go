package replication

import (
	"bufio"
	"net"

	"github.com/genuineh/aikv/internal/resp"
	"github.com/sirupsen/logrus"
)

/*
 * ============================================================================
 * Redis 主从复制实现（从节点）
 * ============================================================================
 *
 * 从节点连接到主节点，接收数据同步。
 */

// Applier applies one propagated write command to local storage — the
// executor's own dispatch, so a replica mutates state the same way a
// directly-connected client would.
type Applier func(name string, args [][]byte)

// Slave 从节点
type Slave struct {
	masterAddr string
	conn       net.Conn
	reader     *bufio.Reader
	writer     *bufio.Writer
	running    bool
	apply      Applier
}

// NewSlave 创建从节点. apply receives every command streamed from the
// master after the initial RDB payload (the RDB payload itself is
// consumed but not yet parsed into storage — spec.md's Non-goals
// exclude replica failover, not this best-effort propagation path).
func NewSlave(masterAddr string, apply Applier) *Slave {
	return &Slave{
		masterAddr: masterAddr,
		running:    false,
		apply:      apply,
	}
}

// Connect 连接到主节点
func (s *Slave) Connect() error {
	conn, err := net.Dial("tcp", s.masterAddr)
	if err != nil {
		return err
	}

	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.writer = bufio.NewWriter(conn)
	s.running = true

	// 发送 PING
	s.writer.WriteString("*1\r\n$4\r\nPING\r\n")
	s.writer.Flush()

	// 发送 REPLCONF
	s.writer.WriteString("*3\r\n$8\r\nREPLCONF\r\n$14\r\nlistening-port\r\n$4\r\n6380\r\n")
	s.writer.Flush()

	// 发送 PSYNC
	s.writer.WriteString("*3\r\n$5\r\nPSYNC\r\n$1\r\n?\r\n$2\r\n-1\r\n")
	s.writer.Flush()

	// 启动接收线程
	go s.receiveCommands()

	return nil
}

// receiveCommands 接收主节点的命令
func (s *Slave) receiveCommands() {
	log := logrus.WithField("component", "replication.slave")
	for s.running {
		cmd, err := resp.Decode(s.reader)
		if err != nil {
			log.WithError(err).Warn("replication stream closed")
			break
		}

		name, args, ok := decodeCommand(cmd)
		if !ok {
			log.WithField("frame", string(cmd.Encode())).Warn("replication stream sent a non-command frame")
			continue
		}
		if s.apply != nil {
			s.apply(name, args)
		}
		log.WithField("command", name).Debug("slave applied replicated command")
	}
}

// decodeCommand unwraps a propagated RESP frame into a command name and
// its argument bulk strings, mirroring server.requestCommand.
func decodeCommand(v resp.Value) (name string, args [][]byte, ok bool) {
	if v.Kind != resp.Array || v.Null || len(v.Elems) == 0 {
		return "", nil, false
	}
	for _, e := range v.Elems {
		if e.Kind != resp.BulkString || e.Null {
			return "", nil, false
		}
	}
	name = string(v.Elems[0].Bulk)
	args = make([][]byte, len(v.Elems)-1)
	for i, e := range v.Elems[1:] {
		args[i] = e.Bulk
	}
	return name, args, true
}

// Close 关闭连接
func (s *Slave) Close() {
	s.running = false
	if s.conn != nil {
		s.conn.Close()
	}
}
