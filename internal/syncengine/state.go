package syncengine

// State is the synchronization state of an Engine.
type State int32

const (
	Disconnected State = iota
	Connecting
	ConnectedUnsynced
	ConnectedSynced
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case ConnectedUnsynced:
		return "connected_unsynced"
	case ConnectedSynced:
		return "connected_synced"
	default:
		return "unknown"
	}
}
