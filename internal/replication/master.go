package replication

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/genuineh/aikv/internal/persistence"
	"github.com/genuineh/aikv/internal/resp"
	"github.com/genuineh/aikv/internal/storage"
)

/*
 * ============================================================================
 * Redis 主从复制实现（主节点）
 * ============================================================================
 *
 * Redis 主从复制流程：
 * 1. 从节点连接主节点，发送 REPLCONF 命令
 * 2. 主节点发送 RDB 文件（全量同步）
 * 3. 主节点持续发送写命令（增量同步）
 *
 * 【复制协议】
 * - REPLCONF: 配置复制
 * - PSYNC: 部分同步请求
 * - FULLRESYNC: 全量同步
 */

// Master 主节点
type Master struct {
	server      *storage.RedisServer
	replicas    map[*Replica]bool // 从节点集合
	mu          sync.RWMutex
	replOffset  int64  // 复制偏移量
	replBacklog []byte // 复制积压缓冲区
}

// Replica 从节点连接
type Replica struct {
	conn   net.Conn
	writer *bufio.Writer
	master *Master
	offset int64
	closed bool
}

// NewMaster 创建主节点
func NewMaster(server *storage.RedisServer) *Master {
	return &Master{
		server:      server,
		replicas:    make(map[*Replica]bool),
		replOffset:  0,
		replBacklog: make([]byte, 0),
	}
}

// AddReplica 添加从节点
func (m *Master) AddReplica(conn net.Conn) *Replica {
	m.mu.Lock()
	defer m.mu.Unlock()

	replica := &Replica{
		conn:   conn,
		writer: bufio.NewWriter(conn),
		master: m,
		offset: 0,
		closed: false,
	}

	m.replicas[replica] = true

	// 启动全量同步
	go m.fullResync(replica)

	return replica
}

// fullResync 全量同步
func (m *Master) fullResync(replica *Replica) {
	// 发送 FULLRESYNC 响应
	replID := "0000000000000000000000000000000000000000"
	offset := m.replOffset

	response := fmt.Sprintf("FULLRESYNC %s %d\r\n", replID, offset)
	replica.writer.WriteString(response)
	replica.writer.Flush()

	// 生成 RDB 快照到临时文件，再把文件内容流式发给副本 —
	// Save 按文件名打开文件，不能直接写入 replica.writer。
	tmp, err := os.CreateTemp("", "aikv-fullresync-*.rdb")
	if err != nil {
		replica.writer.WriteString("REDIS0009")
		replica.writer.Flush()
		return
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	encoder := persistence.NewRDBEncoder(nil)
	if err := encoder.Save(m.server, tmpName); err != nil {
		replica.writer.WriteString("REDIS0009")
		replica.writer.Flush()
		return
	}

	snapshot, err := os.Open(tmpName)
	if err != nil {
		replica.writer.WriteString("REDIS0009")
		replica.writer.Flush()
		return
	}
	defer snapshot.Close()
	io.Copy(replica.writer, snapshot)
	replica.writer.Flush()

	// 增量同步通过 PropagateCommand 方法实现
	// 不需要单独的 incrementalSync goroutine
}

// PropagateCommand 传播命令到所有从节点
func (m *Master) PropagateCommand(cmd resp.Value) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 更新复制偏移量
	m.replOffset += int64(len(cmd.Encode()))

	// 发送给所有从节点
	for replica := range m.replicas {
		if !replica.closed {
			data := cmd.Encode()
			replica.writer.Write(data)
			replica.writer.Flush()
		}
	}
}

// RemoveReplica 移除从节点
func (m *Master) RemoveReplica(replica *Replica) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.replicas, replica)
}
