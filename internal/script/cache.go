// Package script implements SHA-1-addressed script caching and a
// sandboxed Lua execution engine for EVAL/EVALSHA, grounded on
// original_source/src/command/script.rs and translated from mlua to
// github.com/yuin/gopher-lua (the ecosystem's equivalent, found in
// other_examples' faizanhussain2310-GoRedis and cuemby-warren
// manifests) since this is a Go transformation.
package script

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"github.com/genuineh/aikv/internal/errkind"
)

// Cache is a RWMutex-guarded map from SHA-1 hex digest to script body,
// grounded on script.rs's Arc<RwLock<HashMap<String, CachedScript>>>.
type Cache struct {
	mu      sync.RWMutex
	scripts map[string]string
}

func NewCache() *Cache {
	return &Cache{scripts: make(map[string]string)}
}

// Sha1Hex returns the lowercase hex SHA-1 digest of a script body, the
// cache key used by SCRIPT LOAD and EVALSHA.
func Sha1Hex(script string) string {
	sum := sha1.Sum([]byte(script))
	return hex.EncodeToString(sum[:])
}

// Load stores script under its SHA-1 digest without executing it and
// returns the digest.
func (c *Cache) Load(script string) string {
	digest := Sha1Hex(script)
	c.mu.Lock()
	c.scripts[digest] = script
	c.mu.Unlock()
	return digest
}

// Get retrieves the script body for a digest, reporting NOSCRIPT on a
// miss via the ok return.
func (c *Cache) Get(digest string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scripts[digest]
	return s, ok
}

// Exists reports presence for each requested digest, preserving order.
func (c *Cache) Exists(digests []string) []bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]bool, len(digests))
	for i, d := range digests {
		_, out[i] = c.scripts[d]
	}
	return out
}

// Flush clears every cached script.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.scripts = make(map[string]string)
	c.mu.Unlock()
}

// ErrNoScript is the NOSCRIPT error for an EVALSHA miss.
func ErrNoScript() *errkind.Error {
	return errkind.WithToken(errkind.Script, "NOSCRIPT", "No matching script. Please use EVAL.")
}

// ErrNotBusy is always returned by SCRIPT KILL: this core's single
// goroutine-per-connection execution model never leaves a script
// running across commands, so there is never one to kill — grounded on
// script.rs's script_kill, which returns the same NOTBUSY
// unconditionally.
func ErrNotBusy() *errkind.Error {
	return errkind.WithToken(errkind.Script, "NOTBUSY", "No scripts in execution right now.")
}
