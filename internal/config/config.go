// Package config parses the daemon's command-line flags into a Config.
package config

import (
	"flag"
	"strconv"
	"strings"
	"time"
)

// ReplicaOf names the master a replica connects to at boot.
type ReplicaOf struct {
	Host string
	Port int
}

// Config holds everything the server needs to boot.
type Config struct {
	Port int

	Dir        string
	DBFilename string

	ReplicaOf *ReplicaOf

	ReadTimeout     time.Duration
	WriteBufferSize int
	ReadBufferSize  int

	FlushInterval time.Duration
}

// DefaultConfig matches the spec's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            6379,
		Dir:             ".",
		DBFilename:      "dump.rdb",
		ReadTimeout:     0,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		FlushInterval:   500 * time.Millisecond,
	}
}

// ParseFlags parses args (normally os.Args[1:]) into a Config, starting
// from DefaultConfig's values.
func ParseFlags(args []string) (*Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("redisd", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "directory holding the snapshot file")
	fs.StringVar(&cfg.DBFilename, "dbfilename", cfg.DBFilename, "snapshot file name")
	replicaof := fs.String("replicaof", "", "\"<host> <port>\" of a master to replicate from")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *replicaof != "" {
		parts := strings.Fields(*replicaof)
		if len(parts) == 2 {
			host := parts[0]
			if host == "localhost" {
				host = "127.0.0.1"
			}
			port, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, err
			}
			cfg.ReplicaOf = &ReplicaOf{Host: host, Port: port}
		}
	}

	return cfg, nil
}
