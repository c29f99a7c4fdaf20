// Package main implements the kupe server binary: a single-process
// in-memory key-value store speaking RESP over TCP.
//
// The binary wires configuration from the environment into the connection
// orchestrator and runs it until a shutdown signal:
//   - Sharded in-memory engine (GET, SET, DEL)
//   - Edge-triggered readiness reactor over epoll
//   - Three fixed worker pools: read, execute, write
//
// Configuration:
//   - SERVER_LISTEN: Listen address (default: ":6379")
//   - SERVER_SHARDS: Keyspace partition count (default: 10)
//   - SERVER_WORKERS: Workers per stage pool (default: 8)
//   - SERVER_MAX_EVENTS: Readiness events per reactor pass (default: 10)
//   - SERVER_BUFFER_CAP: Per-connection buffer cap in bytes (default: 16 MiB)
//
// Example usage:
//
//	# Start server
//	SERVER_LISTEN=:6379 SERVER_SHARDS=10 ./server
//
//	# Talk to it
//	printf '*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n' | nc localhost 6379
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/exp/slices"

	"github.com/dreamware/kupe/internal/server"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

// main reads configuration, starts the orchestrator, and blocks until a
// shutdown signal arrives.
//
// Exit codes:
//   - 0: Normal shutdown via signal
//   - 1: Invalid configuration or startup failure
func main() {
	cfg := server.Config{
		Listen:    getenv("SERVER_LISTEN", ":6379"),
		NumShards: getenvInt("SERVER_SHARDS", 10),
		Workers:   getenvInt("SERVER_WORKERS", 8),
		MaxEvents: getenvInt("SERVER_MAX_EVENTS", 10),
		BufferCap: getenvInt("SERVER_BUFFER_CAP", 16<<20),
	}
	logConfig(cfg)

	srv, err := server.New(cfg)
	if err != nil {
		logFatal("startup: %v", err)
	}
	srv.Start()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	srv.Stop()
}

// logConfig echoes the effective configuration as one sorted key=value
// line so startup logs pin down what the process is actually running with.
func logConfig(cfg server.Config) {
	settings := []string{
		fmt.Sprintf("buffer_cap=%d", cfg.BufferCap),
		fmt.Sprintf("listen=%s", cfg.Listen),
		fmt.Sprintf("max_events=%d", cfg.MaxEvents),
		fmt.Sprintf("shards=%d", cfg.NumShards),
		fmt.Sprintf("workers=%d", cfg.Workers),
	}
	slices.Sort(settings)
	log.Printf("server config: %v", settings)
}

// getenv retrieves an environment variable with a default fallback value.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvInt retrieves an integer environment variable with a default
// fallback value, terminating on values that do not parse.
func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logFatal("invalid %s=%q: %v", k, v, err)
	}
	return n
}
