package script

import (
	"math"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/genuineh/aikv/internal/errkind"
	"github.com/genuineh/aikv/internal/resp"
	"github.com/genuineh/aikv/internal/storage"
)

// CommandRunner executes the small allow-listed command surface a
// script may call through redis.call/redis.pcall. The executor
// package supplies the implementation so scripts go through the same
// storage facade as ordinary connections.
type CommandRunner interface {
	RunForScript(dbIndex int, name string, args [][]byte) (resp.Value, error)
}

// Engine runs EVAL/EVALSHA against a sandboxed Lua VM, grounded on
// original_source/src/command/script.rs's execute_script, translated
// from mlua to gopher-lua.
type Engine struct {
	cache  *Cache
	runner CommandRunner
}

func NewEngine(cache *Cache, runner CommandRunner) *Engine {
	return &Engine{cache: cache, runner: runner}
}

// Eval runs a script body directly (EVAL).
func (e *Engine) Eval(args [][]byte, dbIndex int) (resp.Value, error) {
	if len(args) < 2 {
		return resp.Value{}, errkind.WrongArgCountErr("EVAL")
	}
	script := string(args[0])
	numkeys, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return resp.Value{}, errkind.New(errkind.InvalidArgument, "value is not an integer or out of range")
	}
	keys, argv, err := splitKeysArgv(args[2:], numkeys)
	if err != nil {
		return resp.Value{}, err
	}
	return e.run(script, keys, argv, dbIndex)
}

// EvalSha runs a previously-cached script by its SHA-1 digest (EVALSHA).
func (e *Engine) EvalSha(args [][]byte, dbIndex int) (resp.Value, error) {
	if len(args) < 2 {
		return resp.Value{}, errkind.WrongArgCountErr("EVALSHA")
	}
	digest := strings.ToLower(string(args[0]))
	script, ok := e.cache.Get(digest)
	if !ok {
		return resp.Value{}, ErrNoScript()
	}
	numkeys, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return resp.Value{}, errkind.New(errkind.InvalidArgument, "value is not an integer or out of range")
	}
	keys, argv, err := splitKeysArgv(args[2:], numkeys)
	if err != nil {
		return resp.Value{}, err
	}
	return e.run(script, keys, argv, dbIndex)
}

func splitKeysArgv(rest [][]byte, numkeys int) (keys, argv [][]byte, err error) {
	if numkeys < 0 || len(rest) < numkeys {
		return nil, nil, errkind.New(errkind.InvalidArgument, "Number of keys can't be negative")
	}
	return rest[:numkeys], rest[numkeys:], nil
}

// run creates a fresh, sandboxed Lua state for one invocation — no
// persistent VM state crosses calls, matching the original's
// per-invocation Lua::new_with.
func (e *Engine) run(script string, keys, argv [][]byte, dbIndex int) (resp.Value, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	defer L.Close()

	// Only base, table, string and math libraries — no os, io, or
	// package/module loading, so a script can't touch the filesystem or
	// network (spec.md §4.4's sandbox contract). No utf8 library is
	// opened, so utf8.* is not available to scripts.
	for _, pair := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(pair.fn), NRet: 0, Protect: true}, lua.LString(pair.name)); err != nil {
			return resp.Value{}, errkind.Newf(errkind.Script, "failed to initialize sandbox: %s", err)
		}
	}
	// The base library also registers file loaders and chunk compilers;
	// remove them so the sandbox exposes no filesystem access.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	keysTable := L.NewTable()
	for i, k := range keys {
		keysTable.RawSetInt(i+1, lua.LString(string(k)))
	}
	L.SetGlobal("KEYS", keysTable)

	argvTable := L.NewTable()
	for i, a := range argv {
		argvTable.RawSetInt(i+1, lua.LString(string(a)))
	}
	L.SetGlobal("ARGV", argvTable)

	redisTable := L.NewTable()
	L.SetField(redisTable, "call", L.NewFunction(e.makeRedisCall(dbIndex, true)))
	L.SetField(redisTable, "pcall", L.NewFunction(e.makeRedisCall(dbIndex, false)))
	L.SetGlobal("redis", redisTable)

	if err := L.DoString(script); err != nil {
		return resp.Value{}, errkind.Newf(errkind.Script, "%s", err)
	}

	if L.GetTop() == 0 {
		return resp.NewNullBulkString(), nil
	}
	ret := L.Get(-1)
	L.Pop(1)
	return luaToResp(ret), nil
}

// makeRedisCall builds redis.call (throwError=true, raises a Lua error
// on command failure) or redis.pcall (throwError=false, returns Lua
// nil on command failure) — grounded on script.rs's redis_call with
// the same GET/SET/DEL/EXISTS allow-list.
func (e *Engine) makeRedisCall(dbIndex int, throwError bool) lua.LGFunction {
	return func(L *lua.LState) int {
		n := L.GetTop()
		cmdArgs := make([][]byte, 0, n)
		for i := 1; i <= n; i++ {
			v := L.Get(i)
			switch v.Type() {
			case lua.LTString:
				cmdArgs = append(cmdArgs, []byte(string(v.(lua.LString))))
			case lua.LTNumber:
				cmdArgs = append(cmdArgs, []byte(v.String()))
			case lua.LTBool:
				if bool(v.(lua.LBool)) {
					cmdArgs = append(cmdArgs, []byte("1"))
				} else {
					cmdArgs = append(cmdArgs, []byte("0"))
				}
			default:
				if throwError {
					L.RaiseError("Lua redis lib command arguments must be strings or integers")
					return 0
				}
				L.Push(lua.LNil)
				return 1
			}
		}
		if len(cmdArgs) == 0 {
			if throwError {
				L.RaiseError("Please specify at least one argument for this redis lib call")
				return 0
			}
			L.Push(lua.LNil)
			return 1
		}

		name := strings.ToUpper(string(cmdArgs[0]))
		result, err := e.runner.RunForScript(dbIndex, name, cmdArgs[1:])
		if err != nil {
			if throwError {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lua.LNil)
			return 1
		}
		L.Push(respToLua(L, result))
		return 1
	}
}

// luaToResp converts a Lua return value into a RESP frame, per
// spec.md §4.4: nil->null, false->null, true->integer 1, number->
// integer when it carries no fractional part else a bulk string of
// its textual form, string->bulk string, table->array (stopping at
// the first nil per Lua's # operator semantics, mirrored here via
// RawGet).
func luaToResp(v lua.LValue) resp.Value {
	switch v.Type() {
	case lua.LTNil:
		return resp.NewNullBulkString()
	case lua.LTBool:
		if bool(v.(lua.LBool)) {
			return resp.NewInteger(1)
		}
		return resp.NewNullBulkString()
	case lua.LTNumber:
		n := float64(v.(lua.LNumber))
		if math.Trunc(n) == n {
			return resp.NewInteger(int64(n))
		}
		return resp.NewBulkStringFromString(v.(lua.LNumber).String())
	case lua.LTString:
		return resp.NewBulkStringFromString(string(v.(lua.LString)))
	case lua.LTTable:
		t := v.(*lua.LTable)
		var elems []resp.Value
		for i := 1; ; i++ {
			item := t.RawGetInt(i)
			if item.Type() == lua.LTNil {
				break
			}
			elems = append(elems, luaToResp(item))
		}
		return resp.NewArray(elems)
	default:
		return resp.NewNullBulkString()
	}
}

// respToLua converts a RESP frame returned by redis.call/pcall back
// into a Lua value — the reverse conversion spec.md §4.4 defines:
// a RESP nil (null bulk/array) becomes Lua false, and SimpleString /
// Error both become plain interpreter strings carrying the message
// byte-exact, with no `ok`/`err` table wrapping.
func respToLua(L *lua.LState, v resp.Value) lua.LValue {
	switch v.Kind {
	case resp.SimpleString:
		return lua.LString(v.Str)
	case resp.ErrorKind:
		return lua.LString(v.Str)
	case resp.Integer:
		return lua.LNumber(v.Int)
	case resp.BulkString:
		if v.Null {
			return lua.LFalse
		}
		return lua.LString(string(v.Bulk))
	case resp.Array:
		if v.Null {
			return lua.LFalse
		}
		t := L.NewTable()
		for i, e := range v.Elems {
			t.RawSetInt(i+1, respToLua(L, e))
		}
		return t
	default:
		return lua.LFalse
	}
}

// AllowedScriptCommands is the fixed set a script's redis.call/pcall
// may invoke — GET/SET/DEL/EXISTS, per script.rs's redis_call match
// arm. Exported so the executor's dispatcher can share one source of
// truth with documentation/tests.
var AllowedScriptCommands = map[string]bool{
	"GET":    true,
	"SET":    true,
	"DEL":    true,
	"EXISTS": true,
}

// ScriptStorageRunner is the default CommandRunner, executing the
// allow-listed commands directly against a *storage.RedisServer — used
// when the full command executor isn't needed (e.g. in tests).
type ScriptStorageRunner struct {
	Server *storage.RedisServer
}

func (r *ScriptStorageRunner) RunForScript(dbIndex int, name string, args [][]byte) (resp.Value, error) {
	if !AllowedScriptCommands[name] {
		return resp.Value{}, errkind.Newf(errkind.Script, "Command not supported in scripts: %s", name)
	}
	db, err := r.Server.GetDb(dbIndex)
	if err != nil {
		return resp.Value{}, errkind.New(errkind.Storage, "invalid DB index")
	}
	switch name {
	case "GET":
		if len(args) != 1 {
			return resp.Value{}, errkind.WrongArgCountErr("GET")
		}
		obj, err := db.Get(string(args[0]))
		if err != nil {
			return resp.NewNullBulkString(), nil
		}
		val, err := obj.GetStringValue()
		if err != nil {
			return resp.Value{}, errkind.New(errkind.Storage, "WRONGTYPE Operation against a key holding the wrong kind of value")
		}
		return resp.NewBulkString(val), nil
	case "SET":
		if len(args) < 2 {
			return resp.Value{}, errkind.WrongArgCountErr("SET")
		}
		db.Set(string(args[0]), storage.NewStringObject(args[1]))
		return resp.NewSimpleString("OK"), nil
	case "DEL":
		if len(args) == 0 {
			return resp.Value{}, errkind.WrongArgCountErr("DEL")
		}
		var count int64
		for _, a := range args {
			if db.Del(string(a)) {
				count++
			}
		}
		return resp.NewInteger(count), nil
	case "EXISTS":
		if len(args) == 0 {
			return resp.Value{}, errkind.WrongArgCountErr("EXISTS")
		}
		var count int64
		for _, a := range args {
			if db.Exists(string(a)) {
				count++
			}
		}
		return resp.NewInteger(count), nil
	}
	return resp.Value{}, errkind.Newf(errkind.Script, "Command not supported in scripts: %s", name)
}
