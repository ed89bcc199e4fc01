package session

// UDPState is the datagram channel's lifecycle state (spec §4.4).
type UDPState int

const (
	UDPDisabled UDPState = iota
	UDPWaitFD
	UDPSetup
	UDPHandshake
	UDPActive
	UDPInactive
)

func (s UDPState) String() string {
	switch s {
	case UDPDisabled:
		return "DISABLED"
	case UDPWaitFD:
		return "WAIT_FD"
	case UDPSetup:
		return "SETUP"
	case UDPHandshake:
		return "HANDSHAKE"
	case UDPActive:
		return "ACTIVE"
	case UDPInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// validTransitions enumerates the edges spec §4.4 allows. DISABLED has
// no outgoing edges: once entered, it is terminal for the session.
var validTransitions = map[UDPState]map[UDPState]bool{
	UDPDisabled:  {},
	UDPWaitFD:    {UDPSetup: true, UDPDisabled: true},
	UDPSetup:     {UDPHandshake: true, UDPDisabled: true},
	UDPHandshake: {UDPActive: true, UDPDisabled: true},
	UDPActive:    {UDPInactive: true, UDPDisabled: true},
	UDPInactive:  {UDPActive: true, UDPDisabled: true},
}

// CanTransition reports whether from->to is a legal edge. It is the
// single guard every state-changing call in infrastructure/dtlschannel
// and the MTU controller must pass through, so "DISABLED is terminal"
// (spec §3 invariant) holds regardless of call site.
func CanTransition(from, to UDPState) bool {
	if from == to {
		return true
	}
	edges, ok := validTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}
