// Package app wires the daemon together: it turns a Config into a running
// channel, sync engine, position cache and ops server, and owns their
// lifecycle. It is decoupled from the entrypoint so tests can drive it with
// a fake channel.
package app
