// Package servertest runs an in-memory resource server for tests.
package servertest

import (
	"net"
	"testing"

	"github.com/sparkvibe/sparkvibe/internal/resourceserver"
)

// Start serves a fresh in-memory resource server on a loopback port and
// returns its base URL. The server stops when the test ends.
func Start(t testing.TB) string {
	t.Helper()

	db, err := resourceserver.Connect(":memory:")
	if err != nil {
		t.Fatalf("failed opening in-memory store: %v", err)
	}
	sqlDB, _ := db.DB()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed listening: %v", err)
	}

	srv := resourceserver.New(db)
	go func() { _ = srv.Serve(ln) }()

	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = sqlDB.Close()
	})

	return "http://" + ln.Addr().String()
}

// DeadURL returns a loopback URL nothing listens on.
func DeadURL(t testing.TB) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed listening: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return "http://" + addr
}
