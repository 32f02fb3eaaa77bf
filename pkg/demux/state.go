package demux

// State is the stream driver's position in its parse lifecycle.
type State uint8

// States, in the order a successful session passes through them.
const (
	StateIdleAwaitingHeader State = iota
	StateFtypParsed
	StateMoovParsing
	StateTrackTablesReady
	StateDispatching
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdleAwaitingHeader:
		return "IdleAwaitingHeader"
	case StateFtypParsed:
		return "FtypParsed"
	case StateMoovParsing:
		return "MoovParsing"
	case StateTrackTablesReady:
		return "TrackTablesReady"
	case StateDispatching:
		return "Dispatching"
	case StateComplete:
		return "Complete"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}
