// Package admin exposes a small gin-gonic HTTP introspection surface
// alongside the RESP listener, grounded on the teacher's main.go gin
// wiring — generalized from its single ad-hoc route into structured
// cluster/health endpoints that read from the same executor.Executor
// state the RESP connections mutate.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/genuineh/aikv/internal/cluster"
	"github.com/genuineh/aikv/internal/executor"
)

// Server wraps a gin engine bound to one Executor's state.
type Server struct {
	engine *gin.Engine
	exec   *executor.Executor
}

// New builds the admin HTTP surface. It never calls gin.SetMode itself
// — the caller decides release/debug mode once, process-wide.
func New(exec *executor.Executor) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, exec: exec}
	engine.GET("/healthz", s.healthz)
	engine.GET("/cluster/info", s.clusterInfo)
	engine.GET("/cluster/nodes", s.clusterNodes)
	return s
}

// Run starts the HTTP server; it blocks until the listener fails.
func (s *Server) Run(addr string) error {
	logrus.WithField("addr", addr).Info("admin HTTP surface listening")
	return s.engine.Run(addr)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.exec.ClientCount(),
	})
}

// nodeJSON mirrors cluster.NodeInfo for the JSON surface — rendered
// from the same cluster.Snapshot the CLUSTER NODES RESP command uses,
// so both surfaces always agree (see cluster.State.Snapshot's doc).
type nodeJSON struct {
	ID          string `json:"id"`
	Addr        string `json:"addr"`
	ClusterPort uint32 `json:"cluster_port"`
	IsMaster    bool   `json:"is_master"`
	Connected   bool   `json:"connected"`
	Myself      bool   `json:"myself"`
}

func (s *Server) clusterInfo(c *gin.Context) {
	snap := s.exec.Cluster().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"state":          stateString(snap),
		"slots_assigned": snap.AssignedCount(),
		"known_nodes":    len(snap.Nodes),
		"size":           snap.DistinctOwners(),
		"current_epoch":  snap.Epoch,
		"my_epoch":       snap.Epoch,
	})
}

func stateString(snap cluster.Snapshot) string {
	if snap.IsOK() {
		return "ok"
	}
	return "fail"
}

func (s *Server) clusterNodes(c *gin.Context) {
	snap := s.exec.Cluster().Snapshot()
	nodes := make([]nodeJSON, 0, len(snap.Nodes))
	for id, n := range snap.Nodes {
		nodes = append(nodes, nodeJSON{
			ID:          hexID(id),
			Addr:        n.Addr,
			ClusterPort: n.ClusterPort,
			IsMaster:    n.IsMaster,
			Connected:   n.Connected,
			Myself:      snap.HasSelf && id == snap.SelfID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

func hexID(id uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 40)
	for i := 39; i >= 0; i-- {
		buf[i] = hexDigits[id&0xf]
		id >>= 4
	}
	return string(buf)
}
