package executor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/genuineh/aikv/internal/cluster"
	"github.com/genuineh/aikv/internal/errkind"
	"github.com/genuineh/aikv/internal/resp"
	"github.com/genuineh/aikv/internal/script"
	"github.com/genuineh/aikv/internal/storage"
)

// keyBearingCommands maps a command name to the argument index holding
// its routing key, for cluster redirection — grounded on
// original_source/src/cluster/commands.rs's check_redirect, which
// keys off the command's first key argument.
var keyBearingCommands = map[string]int{
	"GET": 0, "SET": 0, "GETSET": 0, "SETNX": 0, "APPEND": 0, "STRLEN": 0,
	"INCR": 0, "DECR": 0, "INCRBY": 0, "DECRBY": 0, "DEL": 0, "EXISTS": 0,
	"TYPE": 0, "EXPIRE": 0, "TTL": 0, "PERSIST": 0,
	"LPUSH": 0, "RPUSH": 0, "LPOP": 0, "RPOP": 0, "LLEN": 0, "LRANGE": 0,
	"HSET": 0, "HGET": 0, "HDEL": 0, "HEXISTS": 0, "HLEN": 0, "HKEYS": 0,
	"HVALS": 0, "HGETALL": 0, "HINCRBY": 0, "HMSET": 0, "HMGET": 0,
	"SADD": 0, "SREM": 0, "SISMEMBER": 0, "SCARD": 0, "SMEMBERS": 0,
	"ZADD": 0, "ZSCORE": 0, "ZCARD": 0, "ZRANK": 0, "ZRANGE": 0, "ZREM": 0,
}

// Executor is the shared, concurrency-safe core every client session
// dispatches commands through: one per server process, referenced by
// every connection goroutine — grounded on the teacher's
// server.CommandTable plus Server/Client wiring, generalized to route
// through cluster state before touching storage.
type Executor struct {
	mu             sync.RWMutex
	server         *storage.RedisServer
	cluster        *cluster.State
	clusterCmds    *cluster.Commands
	clusterEnabled bool
	scripts        *script.Cache
	scriptEngine   *script.Engine
	commands       map[string]command
	log            *logrus.Entry

	clients   map[int64]*Session
	clientsMu sync.Mutex
}

// New wires storage, cluster state, and the script engine into one
// dispatcher. clusterEnabled controls whether key routing ever
// produces MOVED/ASK/CLUSTERDOWN instead of always serving locally.
func New(server *storage.RedisServer, clusterState *cluster.State, clusterEnabled bool) *Executor {
	e := &Executor{
		server:         server,
		cluster:        clusterState,
		clusterCmds:    cluster.NewCommands(clusterState),
		clusterEnabled: clusterEnabled,
		scripts:        script.NewCache(),
		commands:       make(map[string]command),
		log:            logrus.WithField("component", "executor"),
		clients:        make(map[int64]*Session),
	}
	e.scriptEngine = script.NewEngine(e.scripts, scriptRunner{e})
	e.registerCommands()
	return e
}

// db resolves a session's currently selected database.
func (e *Executor) db(sess *Session) *storage.RedisDb {
	d, err := e.server.GetDb(sess.DBIndex())
	if err != nil {
		// SELECT already validates the index; GetDb can only fail here
		// if the session was constructed against a different dbnum.
		d, _ = e.server.GetDb(0)
	}
	return d
}

// Register creates bookkeeping for a new connection and returns its
// Session, recording remoteAddr as the client registry's peer
// descriptor (spec.md §4.5). Call Unregister when the connection
// closes.
func (e *Executor) Register(remoteAddr string) *Session {
	sess := NewSession(remoteAddr)
	e.clientsMu.Lock()
	e.clients[sess.ID] = sess
	e.clientsMu.Unlock()
	return sess
}

func (e *Executor) Unregister(sess *Session) {
	e.clientsMu.Lock()
	delete(e.clients, sess.ID)
	e.clientsMu.Unlock()
}

// ClientCount reports the number of currently registered sessions.
func (e *Executor) ClientCount() int {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()
	return len(e.clients)
}

// Cluster exposes the underlying state for the admin HTTP surface.
func (e *Executor) Cluster() *cluster.State { return e.cluster }

// Execute dispatches one command frame for sess, applying cluster
// redirection first (spec.md §4.2) and the command table second.
// recover() at this single boundary converts a handler panic into a
// RESP error instead of taking down the connection goroutine.
func (e *Executor) Execute(sess *Session, name string, args [][]byte) (result resp.Value) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("panic", r).Error("command handler panicked")
			result = errkind.Newf(errkind.Storage, "internal error: %v", r).ToResp()
		}
	}()

	upper := strings.ToUpper(name)

	switch upper {
	case "ASKING":
		sess.SetAsking()
		return resp.NewSimpleString("OK")
	case "CLUSTER":
		v, err := e.clusterCmds.Execute(args)
		if err != nil {
			return toResp(err)
		}
		return v
	case "EVAL":
		v, err := e.scriptEngine.Eval(args, sess.DBIndex())
		if err != nil {
			return toResp(err)
		}
		return v
	case "EVALSHA":
		v, err := e.scriptEngine.EvalSha(args, sess.DBIndex())
		if err != nil {
			return toResp(err)
		}
		return v
	case "SCRIPT":
		return e.script(args)
	case "CLIENT":
		return e.client(sess, args)
	}

	cmd, ok := e.commands[upper]
	if !ok {
		return errkind.Newf(errkind.InvalidCommand, "unknown command '%s'", name).ToResp()
	}
	if !arityOK(cmd.arity, len(args)+1) {
		return errkind.WrongArgCountErr(strings.ToLower(name)).ToResp()
	}

	asking := sess.TakeAsking()
	if e.clusterEnabled {
		if idx, hasKey := keyBearingCommands[upper]; hasKey && idx < len(args) {
			if redir, ok := e.routeOrRedirect(sess, args[idx], asking); !ok {
				return redir
			}
		}
	}

	return cmd.proc(e, sess, args)
}

// routeOrRedirect decides whether a key-bearing command should be
// served here. ok=false means the caller must return the accompanying
// resp.Value (a MOVED/ASK/CLUSTERDOWN error) instead of dispatching.
//
// A slot this node owns outright is always served locally by
// cluster.Route, even mid-migration-out — ASK is a per-key, not
// per-slot, concern (spec.md §4.2). So once Route clears a self-owned
// slot, a second check asks whether the slot is Migrating out and, if
// so, whether the key is actually missing locally: only then has it
// plausibly already moved to the target, and ASK is returned instead
// of falling through to a local miss.
func (e *Executor) routeOrRedirect(sess *Session, key []byte, asking bool) (resp.Value, bool) {
	decision := e.cluster.Route(key, true)
	switch decision.Result {
	case cluster.ServeLocally:
		if target, ok := e.cluster.MigratingTarget(decision.Slot); ok {
			if !e.db(sess).Exists(string(key)) {
				return cluster.AskError(decision.Slot, target).ToResp(), false
			}
		}
		return resp.Value{}, true
	case cluster.Moved:
		return cluster.MovedError(decision.Slot, decision.Addr).ToResp(), false
	case cluster.Ask:
		if asking {
			return resp.Value{}, true
		}
		return cluster.AskError(decision.Slot, decision.Addr).ToResp(), false
	case cluster.ClusterDown:
		return cluster.ClusterDownError(decision.Slot).ToResp(), false
	default:
		return resp.Value{}, true
	}
}

// client implements the CLIENT subcommands spec.md §4.5's client
// registry exists to serve: GETNAME/SETNAME read or mutate the
// calling session's name, LIST and ID render the registry (id, peer
// descriptor, name) for introspection — grounded on
// original_source/src/command/client.rs.
func (e *Executor) client(sess *Session, args [][]byte) resp.Value {
	if len(args) == 0 {
		return errkind.WrongArgCountErr("CLIENT").ToResp()
	}
	sub := strings.ToUpper(string(args[0]))
	rest := args[1:]
	switch sub {
	case "ID":
		return resp.NewInteger(sess.ID)
	case "GETNAME":
		return resp.NewBulkStringFromString(sess.Name())
	case "SETNAME":
		if len(rest) != 1 {
			return errkind.WrongArgCountErr("CLIENT SETNAME").ToResp()
		}
		sess.SetName(string(rest[0]))
		return resp.NewSimpleString("OK")
	case "LIST":
		e.clientsMu.Lock()
		defer e.clientsMu.Unlock()
		var b strings.Builder
		for id, s := range e.clients {
			fmt.Fprintf(&b, "id=%d addr=%s name=%s\n", id, s.RemoteAddr, s.Name())
		}
		return resp.NewBulkStringFromString(b.String())
	default:
		return errkind.Newf(errkind.InvalidCommand, "Unknown CLIENT subcommand or wrong number of arguments for '%s'", sub).ToResp()
	}
}

func (e *Executor) script(args [][]byte) resp.Value {
	if len(args) == 0 {
		return errkind.WrongArgCountErr("SCRIPT").ToResp()
	}
	sub := strings.ToUpper(string(args[0]))
	rest := args[1:]
	switch sub {
	case "LOAD":
		if len(rest) != 1 {
			return errkind.WrongArgCountErr("SCRIPT LOAD").ToResp()
		}
		digest := e.scripts.Load(string(rest[0]))
		return resp.NewBulkStringFromString(digest)
	case "EXISTS":
		if len(rest) == 0 {
			return errkind.WrongArgCountErr("SCRIPT EXISTS").ToResp()
		}
		digests := make([]string, len(rest))
		for i, r := range rest {
			digests[i] = strings.ToLower(string(r))
		}
		flags := e.scripts.Exists(digests)
		elems := make([]resp.Value, len(flags))
		for i, f := range flags {
			if f {
				elems[i] = resp.NewInteger(1)
			} else {
				elems[i] = resp.NewInteger(0)
			}
		}
		return resp.NewArray(elems)
	case "FLUSH":
		e.scripts.Flush()
		return resp.NewSimpleString("OK")
	case "KILL":
		return toResp(script.ErrNotBusy())
	default:
		return errkind.Newf(errkind.InvalidCommand, "Unknown SCRIPT subcommand or wrong number of arguments for '%s'", sub).ToResp()
	}
}

func toResp(err error) resp.Value {
	if ke, ok := err.(*errkind.Error); ok {
		return ke.ToResp()
	}
	return resp.NewError(fmt.Sprintf("ERR %s", err.Error()))
}

// scriptRunner adapts Executor's own command table to script.CommandRunner
// so EVAL's redis.call/redis.pcall reuse the same storage path as any
// other client — no separate code path for scripted GET/SET/DEL/EXISTS.
type scriptRunner struct{ e *Executor }

func (r scriptRunner) RunForScript(dbIndex int, name string, args [][]byte) (resp.Value, error) {
	if !script.AllowedScriptCommands[name] {
		return resp.Value{}, errkind.Newf(errkind.Script, "Command not supported in scripts: %s", name)
	}
	cmd, ok := r.e.commands[name]
	if !ok {
		return resp.Value{}, errkind.Newf(errkind.Script, "Command not supported in scripts: %s", name)
	}
	sess := &Session{dbIndex: dbIndex}
	v := cmd.proc(r.e, sess, args)
	if v.Kind == resp.ErrorKind {
		return resp.Value{}, errkind.New(errkind.Script, v.Str)
	}
	return v, nil
}
