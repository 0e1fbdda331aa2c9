package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/genuineh/aikv/internal/admin"
	"github.com/genuineh/aikv/internal/cluster"
	"github.com/genuineh/aikv/internal/config"
	"github.com/genuineh/aikv/internal/executor"
	"github.com/genuineh/aikv/internal/persistence"
	"github.com/genuineh/aikv/internal/replication"
	"github.com/genuineh/aikv/internal/server"
	"github.com/genuineh/aikv/internal/storage"
)

var (
	flagAddr      string
	flagDbNum     int
	flagCluster   bool
	flagNodeID    string
	flagAdminAddr string
	flagReplicaOf string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "aikv",
		Short: "aikv is a Redis-wire-compatible key-value core with cluster and scripting support",
	}

	serveCmd := newServeCommand()
	root.AddCommand(serveCmd)
	root.AddCommand(newVersionCommand())
	root.AddCommand(newClusterInfoCommand())

	// serve is the implicit default when no subcommand is given.
	root.RunE = serveCmd.RunE

	return root
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server, accepting RESP connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	bindServeFlags(cmd)
	return cmd
}

func bindServeFlags(cmd *cobra.Command) {
	cfg := config.LoadServerConfig()
	cmd.Flags().StringVar(&flagAddr, "addr", cfg.Addr, "Address to listen on")
	cmd.Flags().IntVar(&flagDbNum, "dbnum", cfg.DbNum, "Number of logical databases")
	cmd.Flags().BoolVar(&flagCluster, "cluster", cfg.ClusterEnabled, "Enable cluster mode")
	cmd.Flags().StringVar(&flagNodeID, "node-id", cfg.ClusterNodeID, "Cluster node id (0x-prefixed hex, decimal, or any other string, which is hashed); derived from --addr if empty")
	cmd.Flags().StringVar(&flagAdminAddr, "admin-addr", cfg.AdminAddr, "Admin HTTP surface address; disabled if empty")
	cmd.Flags().StringVar(&flagReplicaOf, "replica-of", cfg.ReplicaOf, "Master address (host:port) to replicate from; disabled if empty")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("aikv 0.1.0")
			return nil
		},
	}
}

func newClusterInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cluster-info",
		Short: "Print a standalone cluster state summary and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadServerConfig()
			state := buildClusterState(cfg)
			fmt.Println(state.String())
			return nil
		},
	}
}

func buildClusterState(cfg *config.ServerConfig) *cluster.State {
	nodeID := cfg.ClusterNodeID
	hasSelf := false
	var id uint64
	if nodeID != "" {
		// 0x-prefixed hex first, then decimal; any other string is hashed.
		var err error
		if strings.HasPrefix(strings.ToLower(nodeID), "0x") {
			id, err = strconv.ParseUint(nodeID[2:], 16, 64)
		} else {
			id, err = strconv.ParseUint(nodeID, 10, 64)
		}
		if err != nil {
			id = cluster.HashNodeID(nodeID)
		}
		hasSelf = true
	} else if cfg.ClusterEnabled {
		id = cluster.HashNodeID(cfg.Addr)
		hasSelf = true
	}
	state := cluster.New(id, cfg.Addr, hasSelf)
	state.Bootstrap = cfg.Bootstrap
	return state
}

func runServe() error {
	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}
	if err := config.LoadEnv(env); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}
	cfg := config.LoadServerConfig()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	addr := flagAddr
	if addr == "" {
		addr = cfg.Addr
	}
	dbnum := flagDbNum
	if dbnum == 0 {
		dbnum = cfg.DbNum
	}

	redisServer := storage.NewRedisServer(dbnum)

	if cfg.RdbEnabled {
		if err := persistence.NewRDBDecoder(nil).Load(redisServer, cfg.RdbFilename); err != nil {
			logrus.WithError(err).Debug("no RDB snapshot loaded at startup")
		} else {
			logrus.WithField("file", cfg.RdbFilename).Info("RDB snapshot loaded")
		}
	}

	clusterEnabled := flagCluster || cfg.ClusterEnabled
	cfg.ClusterEnabled = clusterEnabled
	cfg.Addr = addr
	if flagNodeID != "" {
		cfg.ClusterNodeID = flagNodeID
	}
	clusterState := buildClusterState(cfg)

	exec := executor.New(redisServer, clusterState, clusterEnabled)

	var aofWriter *persistence.AOFWriter
	if cfg.AofEnabled {
		w, err := persistence.NewAOFWriter(cfg.AofFilename)
		if err != nil {
			logrus.WithError(err).Warn("failed to open AOF file; continuing without durability")
		} else {
			aofWriter = w
			defer aofWriter.Close()
		}
	}

	replMaster := replication.NewMaster(redisServer)
	srv := server.New(addr, exec, aofWriter, replMaster)

	replicaOf := flagReplicaOf
	if replicaOf == "" {
		replicaOf = cfg.ReplicaOf
	}
	if replicaOf != "" {
		replicaSess := exec.Register(replicaOf)
		slave := replication.NewSlave(replicaOf, func(name string, args [][]byte) {
			exec.Execute(replicaSess, name, args)
		})
		if err := slave.Connect(); err != nil {
			logrus.WithError(err).Warn("failed to connect to replication master")
			exec.Unregister(replicaSess)
		} else {
			defer func() {
				slave.Close()
				exec.Unregister(replicaSess)
			}()
		}
	}

	adminAddr := flagAdminAddr
	if adminAddr == "" {
		adminAddr = cfg.AdminAddr
	}
	if adminAddr != "" {
		adminSrv := admin.New(exec)
		go func() {
			if err := adminSrv.Run(adminAddr); err != nil {
				logrus.WithError(err).Error("admin HTTP surface stopped")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"addr":    addr,
		"dbnum":   dbnum,
		"cluster": clusterEnabled,
	}).Info("aikv server started")

	<-sigCh
	logrus.Info("shutting down")
	srv.Stop()
	if cfg.RdbEnabled {
		if err := persistence.NewRDBEncoder(nil).Save(redisServer, cfg.RdbFilename); err != nil {
			logrus.WithError(err).Warn("failed to save RDB snapshot on shutdown")
		} else {
			logrus.WithField("file", cfg.RdbFilename).Info("RDB snapshot saved")
		}
	}
	return nil
}
