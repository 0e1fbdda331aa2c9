// Package server implements the RESP TCP listener: accept loop,
// per-connection read/dispatch/write cycle, and AOF write-through —
// grounded on the teacher's server/server.go Start/handleClient, with
// the command table generalized into internal/executor's cluster- and
// script-aware dispatcher.
package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/genuineh/aikv/internal/executor"
	"github.com/genuineh/aikv/internal/persistence"
	"github.com/genuineh/aikv/internal/replication"
	"github.com/genuineh/aikv/internal/resp"
)

// writeCommands marks which table-driven commands mutate keys, so AOF
// append and replica propagation fire only for those — mirrors the
// teacher's isWriteCommand table. Writes made inside EVAL/EVALSHA
// scripts are not recorded.
var writeCommands = map[string]bool{
	"SET": true, "SETNX": true, "GETSET": true, "MSET": true, "APPEND": true,
	"INCR": true, "DECR": true, "INCRBY": true, "DECRBY": true, "DEL": true,
	"EXPIRE": true, "PERSIST": true, "FLUSHDB": true, "FLUSHALL": true,
	"LPUSH": true, "RPUSH": true, "LPOP": true, "RPOP": true,
	"HSET": true, "HDEL": true, "HINCRBY": true, "HMSET": true,
	"SADD": true, "SREM": true, "ZADD": true, "ZREM": true,
}

// Server owns the listener and the set of live connections.
type Server struct {
	addr     string
	listener net.Listener
	exec     *executor.Executor
	aof      *persistence.AOFWriter
	repl     *replication.Master

	mu      sync.Mutex
	running bool
	conns   map[net.Conn]struct{}

	log *logrus.Entry
}

// New wires a listener to exec for command dispatch. aof may be nil
// (no AOF durability); repl may be nil (command propagation to
// replicas disabled).
func New(addr string, exec *executor.Executor, aof *persistence.AOFWriter, repl *replication.Master) *Server {
	return &Server{
		addr:  addr,
		exec:  exec,
		aof:   aof,
		repl:  repl,
		conns: make(map[net.Conn]struct{}),
		log:   logrus.WithField("component", "server"),
	}
}

// ListenAndServe binds the listener and accepts connections until
// Stop is called; each connection is served on its own goroutine.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	s.log.WithField("addr", s.addr).Info("RESP listener started")

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return nil
			}
			s.log.WithError(err).Warn("accept error")
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		go s.handle(conn)
	}
}

// Stop closes the listener and every live connection.
func (s *Server) Stop() {
	s.mu.Lock()
	s.running = false
	if s.listener != nil {
		s.listener.Close()
	}
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) handle(conn net.Conn) {
	sess := s.exec.Register(conn.RemoteAddr().String())
	handedToReplica := false
	defer func() {
		s.exec.Unregister(sess)
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		if !handedToReplica {
			conn.Close()
		}
	}()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		req, err := resp.Decode(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.WithError(err).Debug("connection read error")
			}
			return
		}

		name, args, ok := requestCommand(req)
		if !ok {
			_, _ = writer.Write(resp.NewError("ERR Protocol error: expected array of bulk strings").Encode())
			_ = writer.Flush()
			continue
		}

		if s.repl != nil && strings.ToUpper(name) == "PSYNC" {
			// PSYNC hands the connection off to the replication master
			// for the rest of its lifetime: no more command dispatch on
			// this goroutine, matching the teacher's fullResync flow.
			if err := writer.Flush(); err != nil {
				return
			}
			handedToReplica = true
			s.repl.AddReplica(conn)
			return
		}

		result := s.exec.Execute(sess, name, args)

		upper := strings.ToUpper(name)
		if s.aof != nil && writeCommands[upper] {
			if err := s.aof.Append(req); err != nil {
				s.log.WithError(err).Warn("AOF append failed")
			}
		}
		if s.repl != nil && writeCommands[upper] {
			s.repl.PropagateCommand(req)
		}

		if _, err := writer.Write(result.Encode()); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
	}
}

// requestCommand unwraps a decoded RESP frame into a command name and
// its argument bulk strings: a client request is always an Array of
// BulkStrings.
func requestCommand(v resp.Value) (name string, args [][]byte, ok bool) {
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
