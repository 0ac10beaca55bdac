package peer

// State is the state of a peer in the host's peer state machine.
type State int32

const (
	StateNew State = iota
	StateOpen
	StateClosed
	StateClosing
	StateWaitCnxAck
	StateWaitCnxAckElec
	StateWaitCEA
	StateOpenHandshake
	StateSuspect
	StateReopen
	StateOpenNew
	StateClosingGrace
	StateZombie
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateClosing:
		return "closing"
	case StateWaitCnxAck:
		return "wait_cnx_ack"
	case StateWaitCnxAckElec:
		return "wait_cnx_ack_elec"
	case StateWaitCEA:
		return "wait_cea"
	case StateOpenHandshake:
		return "open_handshake"
	case StateSuspect:
		return "suspect"
	case StateReopen:
		return "reopen"
	case StateOpenNew:
		return "open_new"
	case StateClosingGrace:
		return "closing_grace"
	case StateZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of State.String. Unknown names are reported with ok=false.
func ParseState(name string) (s State, ok bool) {
	for s = StateNew; s <= StateZombie; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return -1, false
}
