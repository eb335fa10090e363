// Command redisd is the store's entry point: it parses flags, loads
// any existing snapshot, optionally connects to a master, and serves
// client connections until signaled to stop.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"kvredis/internal/config"
	"kvredis/internal/engine"
	"kvredis/internal/keyspace"
	"kvredis/internal/logging"
	"kvredis/internal/rdb"
	"kvredis/internal/replication"
	"kvredis/internal/server"
)

func main() {
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		logging.Errorf("config: %v", err)
		os.Exit(1)
	}

	ks := keyspace.New()

	snapshotPath := filepath.Join(cfg.Dir, cfg.DBFilename)
	if doc, err := rdb.LoadFile(snapshotPath); err != nil {
		logging.Errorf("load snapshot %s: %v", snapshotPath, err)
		os.Exit(1)
	} else if doc != nil {
		rdb.Install(ks, doc)
		logging.Infof("loaded snapshot %s", snapshotPath)
	}

	repl := replication.NewCoordinator(ks)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.ReplicaOf != nil {
		repl.IsReplica = true
		repl.MasterHost = cfg.ReplicaOf.Host
		repl.MasterPort = cfg.ReplicaOf.Port

		rc := replication.NewReplicaConn(cfg.ReplicaOf.Host, cfg.ReplicaOf.Port, cfg.Port, ks, repl)
		go func() {
			if err := rc.Run(ctx); err != nil && ctx.Err() == nil {
				logging.Errorf("replication: %v", err)
			}
		}()
	}

	eng := engine.New(ks, repl, cfg)
	srv := server.New(cfg, eng)

	if err := srv.Run(ctx); err != nil {
		logging.Errorf("server: %v", err)
		os.Exit(1)
	}
}
