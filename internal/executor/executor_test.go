package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genuineh/aikv/internal/cluster"
	"github.com/genuineh/aikv/internal/resp"
	"github.com/genuineh/aikv/internal/storage"
)

func newTestExecutor() *Executor {
	server := storage.NewRedisServer(1)
	state := cluster.New(cluster.HashNodeID("127.0.0.1:6379"), "127.0.0.1:6379", true)
	return New(server, state, false)
}

func TestSetThenGetRoundTrip(t *testing.T) {
	e := newTestExecutor()
	sess := e.Register("127.0.0.1:0")
	defer e.Unregister(sess)

	reply := e.Execute(sess, "SET", [][]byte{[]byte("foo"), []byte("bar")})
	assert.Equal(t, resp.SimpleString, reply.Kind)

	reply = e.Execute(sess, "GET", [][]byte{[]byte("foo")})
	require.Equal(t, resp.BulkString, reply.Kind)
	assert.Equal(t, "bar", string(reply.Bulk))
}

func TestUnknownCommand(t *testing.T) {
	e := newTestExecutor()
	sess := e.Register("127.0.0.1:0")
	defer e.Unregister(sess)

	reply := e.Execute(sess, "NOPE", nil)
	assert.Equal(t, resp.ErrorKind, reply.Kind)
	assert.Contains(t, reply.Str, "unknown command")
}

func TestWrongArity(t *testing.T) {
	e := newTestExecutor()
	sess := e.Register("127.0.0.1:0")
	defer e.Unregister(sess)

	reply := e.Execute(sess, "GET", nil)
	assert.Equal(t, resp.ErrorKind, reply.Kind)
	assert.Contains(t, reply.Str, "wrong number of arguments")
}

func TestHandlerPanicRecovered(t *testing.T) {
	e := newTestExecutor()
	sess := e.Register("127.0.0.1:0")
	defer e.Unregister(sess)

	e.commands["BOOM"] = command{name: "BOOM", arity: 1, proc: func(*Executor, *Session, [][]byte) resp.Value {
		panic("kaboom")
	}}

	reply := e.Execute(sess, "BOOM", nil)
	assert.Equal(t, resp.ErrorKind, reply.Kind)
	assert.Contains(t, reply.Str, "internal error")
}

func TestClusterDisabledNeverRedirects(t *testing.T) {
	e := newTestExecutor()
	sess := e.Register("127.0.0.1:0")
	defer e.Unregister(sess)

	reply := e.Execute(sess, "GET", [][]byte{[]byte("somekey")})
	require.Equal(t, resp.BulkString, reply.Kind)
	assert.True(t, reply.Null)
}

func TestClusterEnabledMovedRedirect(t *testing.T) {
	server := storage.NewRedisServer(1)
	self := cluster.HashNodeID("127.0.0.1:6379")
	peer := cluster.HashNodeID("127.0.0.1:6380")
	state := cluster.New(self, "127.0.0.1:6379", true)
	_, err := state.Meet("127.0.0.1", 6380, 0)
	require.NoError(t, err)
	require.NoError(t, state.SetSlotNode(cluster.KeySlot([]byte("foo")), peer))

	e := New(server, state, true)
	sess := e.Register("127.0.0.1:0")
	defer e.Unregister(sess)

	reply := e.Execute(sess, "GET", [][]byte{[]byte("foo")})
	assert.Equal(t, resp.ErrorKind, reply.Kind)
	assert.Contains(t, reply.Str, "MOVED")
}

func TestScriptLoadExistsFlush(t *testing.T) {
	e := newTestExecutor()
	sess := e.Register("127.0.0.1:0")
	defer e.Unregister(sess)

	reply := e.Execute(sess, "SCRIPT", [][]byte{[]byte("LOAD"), []byte("return 1")})
	require.Equal(t, resp.BulkString, reply.Kind)
	digest := string(reply.Bulk)

	reply = e.Execute(sess, "SCRIPT", [][]byte{[]byte("EXISTS"), []byte(digest)})
	require.Equal(t, resp.Array, reply.Kind)
	require.Len(t, reply.Elems, 1)
	assert.Equal(t, int64(1), reply.Elems[0].Int)

	reply = e.Execute(sess, "SCRIPT", [][]byte{[]byte("FLUSH")})
	assert.Equal(t, resp.SimpleString, reply.Kind)

	reply = e.Execute(sess, "SCRIPT", [][]byte{[]byte("EXISTS"), []byte(digest)})
	require.Equal(t, resp.Array, reply.Kind)
	assert.Equal(t, int64(0), reply.Elems[0].Int)
}

func TestScriptKillAlwaysNotBusy(t *testing.T) {
	e := newTestExecutor()
	sess := e.Register("127.0.0.1:0")
	defer e.Unregister(sess)

	reply := e.Execute(sess, "SCRIPT", [][]byte{[]byte("KILL")})
	assert.Equal(t, resp.ErrorKind, reply.Kind)
	assert.Contains(t, reply.Str, "NOTBUSY")
}

func TestClientCountTracksRegistration(t *testing.T) {
	e := newTestExecutor()
	assert.Equal(t, 0, e.ClientCount())
	sess := e.Register("127.0.0.1:0")
	assert.Equal(t, 1, e.ClientCount())
	e.Unregister(sess)
	assert.Equal(t, 0, e.ClientCount())
}
