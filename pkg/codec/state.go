// Package codec maps peer state and application capabilities onto the
// numeric values published by the exporter.
//
// The numbers are consumed by dashboards and alerts, so the table is append-only:
// a state keeps its value forever and new states take the next free number.
package codec

import "github.com/Borislavv/fd-metrics/pkg/peer"

// UnknownState is the value of any state outside the published table.
const UnknownState = -1

const (
	appAuth = 1 << iota
	appAcct
)

var stateValues = map[peer.State]int{
	// stable
	peer.StateNew:  0,
	peer.StateOpen: 1,

	// peer state machine
	peer.StateClosed:         2,
	peer.StateClosing:        3,
	peer.StateWaitCnxAck:     4,
	peer.StateWaitCnxAckElec: 5,
	peer.StateWaitCEA:        6,

	// transitional
	peer.StateOpenHandshake: 7,

	// failover
	peer.StateSuspect: 8,
	peer.StateReopen:  9,

	// ordering and grace periods
	peer.StateOpenNew:      10,
	peer.StateClosingGrace: 11,

	peer.StateZombie: 12,
}

// EncodeState returns the published number of s, or UnknownState.
func EncodeState(s peer.State) int {
	if v, ok := stateValues[s]; ok {
		return v
	}
	return UnknownState
}

// EncodeAppSupport combines the capability flags: auth=1, acct=2, both=3.
// Zero means the application series must not be emitted.
func EncodeAppSupport(auth, acct bool) int {
	var v int
	if auth {
		v |= appAuth
	}
	if acct {
		v |= appAcct
	}
	return v
}

// StateHelp renders the state table for the HELP line of the state family.
func StateHelp() string {
	return "Peer State: 0=New, 1=Open, 2=Closed, 3=Closing, 4=WaitCnxAck, 5=WaitCnxAckElec, " +
		"6=WaitCEA, 7=OpenHandshake, 8=Suspect, 9=Reopen, 10=OpenNew, 11=ClosingGrace, 12=Zombie, -1=Unknown"
}
