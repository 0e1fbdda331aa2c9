package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genuineh/aikv/internal/resp"
	"github.com/genuineh/aikv/internal/storage"
)

func newTestEngine() (*Engine, *Cache) {
	cache := NewCache()
	server := storage.NewRedisServer(1)
	runner := &ScriptStorageRunner{Server: server}
	return NewEngine(cache, runner), cache
}

func TestEvalReturnsInteger(t *testing.T) {
	e, _ := newTestEngine()
	v, err := e.Eval([][]byte{[]byte("return 1 + 1"), []byte("0")}, 0)
	require.NoError(t, err)
	assert.Equal(t, resp.Integer, v.Kind)
	assert.Equal(t, int64(2), v.Int)
}

func TestEvalCallsIntoStorage(t *testing.T) {
	e, _ := newTestEngine()
	v, err := e.Eval([][]byte{
		[]byte("redis.call('set', KEYS[1], ARGV[1]); return redis.call('get', KEYS[1])"),
		[]byte("1"), []byte("mykey"), []byte("myval"),
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, resp.BulkString, v.Kind)
	assert.Equal(t, "myval", string(v.Bulk))
}

func TestEvalDisallowedCommandRaisesError(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.Eval([][]byte{[]byte("return redis.call('FLUSHALL')"), []byte("0")}, 0)
	assert.Error(t, err)
}

func TestEvalShaRoundTrip(t *testing.T) {
	e, cache := newTestEngine()
	digest := cache.Load("return 42")

	v, err := e.EvalSha([][]byte{[]byte(digest), []byte("0")}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)
}

func TestEvalShaMissingDigest(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.EvalSha([][]byte{[]byte("0000000000000000000000000000000000000000"), []byte("0")}, 0)
	assert.ErrorContains(t, err, "NOSCRIPT")
}

func TestEvalNegativeNumkeysRejected(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.Eval([][]byte{[]byte("return 1"), []byte("-1")}, 0)
	assert.Error(t, err)
}

func TestEvalSandboxHasNoOsLibrary(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.Eval([][]byte{[]byte("return os.time()"), []byte("0")}, 0)
	assert.Error(t, err, "os library must not be reachable from a sandboxed script")
}

func TestEvalNilBecomesNullBulk(t *testing.T) {
	e, _ := newTestEngine()
	v, err := e.Eval([][]byte{[]byte("return nil"), []byte("0")}, 0)
	require.NoError(t, err)
	assert.Equal(t, resp.BulkString, v.Kind)
	assert.True(t, v.Null)
}

func TestEvalFalseBecomesNullBulk(t *testing.T) {
	e, _ := newTestEngine()
	v, err := e.Eval([][]byte{[]byte("return false"), []byte("0")}, 0)
	require.NoError(t, err)
	assert.True(t, v.Null)
}

func TestEvalFractionalNumberBecomesBulkString(t *testing.T) {
	e, _ := newTestEngine()
	v, err := e.Eval([][]byte{[]byte("return 3.14"), []byte("0")}, 0)
	require.NoError(t, err)
	assert.Equal(t, resp.BulkString, v.Kind)
	assert.Equal(t, "3.14", string(v.Bulk))
}

func TestEvalIntegralFloatBecomesInteger(t *testing.T) {
	e, _ := newTestEngine()
	v, err := e.Eval([][]byte{[]byte("return 4.0"), []byte("0")}, 0)
	require.NoError(t, err)
	assert.Equal(t, resp.Integer, v.Kind)
	assert.Equal(t, int64(4), v.Int)
}

func TestEvalStatusReplyBecomesPlainString(t *testing.T) {
	e, _ := newTestEngine()
	v, err := e.Eval([][]byte{
		[]byte("local ok = redis.call('set', KEYS[1], 'v'); return ok"),
		[]byte("1"), []byte("k"),
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, resp.BulkString, v.Kind)
	assert.Equal(t, "OK", string(v.Bulk))
}

func TestEvalPcallSwallowsErrorAsNil(t *testing.T) {
	e, _ := newTestEngine()
	v, err := e.Eval([][]byte{
		[]byte("local r = redis.pcall('FLUSHALL'); if r == nil then return 'swallowed' else return 'leaked' end"),
		[]byte("0"),
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "swallowed", string(v.Bulk))
}

func TestEvalTableBecomesArray(t *testing.T) {
	e, _ := newTestEngine()
	v, err := e.Eval([][]byte{[]byte("return {1, 2, 'three'}"), []byte("0")}, 0)
	require.NoError(t, err)
	require.Equal(t, resp.Array, v.Kind)
	require.Len(t, v.Elems, 3)
	assert.Equal(t, int64(1), v.Elems[0].Int)
	assert.Equal(t, int64(2), v.Elems[1].Int)
	assert.Equal(t, "three", string(v.Elems[2].Bulk))
}
