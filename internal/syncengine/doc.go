/*
Package syncengine keeps the local replica consistent with the server.

# Why the Engine Exists

The server owns the topology and streams it as a full SyncReply followed by
incremental node and edge messages. The engine turns that stream into
store mutations, decides which of them need a redraw, batches redraws, and
hands a grouped frame to the renderer. It is the only writer of the
replica.

# Loop

Run starts the transport and a single loop goroutine. Everything that
touches the store or the view runs on that goroutine: transport callbacks,
the debounce timer, alert expiry and the UI setters all post a closure to
the loop's inbox. Nothing else holds a reference to live nodes; Snapshot
and the position flush work on copies.

# States

	Disconnected --connect--> ConnectedUnsynced --SyncReply 200--> ConnectedSynced
	     ^                          |  ^                                 |
	     +--------disconnect--------+  +-------SyncRequest sent----------+

Connecting is the state between Run and the first connect. Incremental
messages are applied only in ConnectedSynced and only while live; in any
other case they are dropped and counted. A SyncReply is always processed.

# Deferred Actions

Store mutations happen as messages arrive, but view changes are queued
and applied together by one flush, debounce after the first queued
action. Arming while armed is a no-op, so a burst of messages produces one
redraw. Actions carry IDs and re-resolve them at flush time.
*/
package syncengine
