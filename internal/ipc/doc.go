// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and
// conversions between queue models and lightweight wire representations.
// Reuse these types when adding new RPC endpoints so the protocol stays
// compatible with deployed CLI binaries.
package ipc
