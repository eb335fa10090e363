package config

import "testing"

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := ParseFlags(nil)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Port != 6379 {
		t.Fatalf("Port = %d, want 6379", cfg.Port)
	}
	if cfg.Dir != "." || cfg.DBFilename != "dump.rdb" {
		t.Fatalf("Dir/DBFilename = %q/%q, want \"./dump.rdb\"", cfg.Dir, cfg.DBFilename)
	}
	if cfg.ReplicaOf != nil {
		t.Fatal("ReplicaOf should be nil by default")
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	cfg, err := ParseFlags([]string{"--port", "7000", "--dir", "/tmp/data", "--dbfilename", "snap.rdb"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Port != 7000 {
		t.Fatalf("Port = %d, want 7000", cfg.Port)
	}
	if cfg.Dir != "/tmp/data" {
		t.Fatalf("Dir = %q, want /tmp/data", cfg.Dir)
	}
	if cfg.DBFilename != "snap.rdb" {
		t.Fatalf("DBFilename = %q, want snap.rdb", cfg.DBFilename)
	}
}

func TestParseFlagsReplicaOf(t *testing.T) {
	cfg, err := ParseFlags([]string{"--replicaof", "localhost 6380"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.ReplicaOf == nil {
		t.Fatal("ReplicaOf is nil, want set")
	}
	if cfg.ReplicaOf.Host != "127.0.0.1" || cfg.ReplicaOf.Port != 6380 {
		t.Fatalf("ReplicaOf = %+v, want {127.0.0.1 6380}", cfg.ReplicaOf)
	}
}

func TestParseFlagsRejectsUnknownFlag(t *testing.T) {
	if _, err := ParseFlags([]string{"--bogus"}); err == nil {
		t.Fatal("expected an error for an unknown flag")
	}
}
