// Package mining implements the mining control loop (§4.5): an
// explicit state machine driving a cancellable proof-of-work worker,
// following §9's "Coroutine control flow" note to express the mine
// flow as named states and typed transitions rather than a free-form
// suspended procedure.
package mining

import "github.com/rawblock/utxo-node/internal/block"

// State is one of the four mining-loop states (§4.5 "States").
type State int

const (
	Idle State = iota
	Mining
	Paused
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Mining:
		return "Mining"
	case Paused:
		return "Paused"
	case ShuttingDown:
		return "ShuttingDown"
	default:
		return "Unknown"
	}
}

// Event is one of the messages that can drive a state transition
// (§4.5 "Transitions", §6 "Control messages").
type Event int

const (
	EventNewBlock Event = iota
	EventWorkerFound
	EventStopMining
	EventStartMining
	EventShutdown
)

// Action is what the controller must do as a side effect of a
// transition, named explicitly so cancellation points are testable in
// isolation from goroutine timing (§9). A single transition can
// require more than one action (e.g. NewBlock aborts the worker *and*
// rebuilds the template), so this is a set of independent flags
// rather than a single enum value.
type Action struct {
	AbortWorker         bool
	RebuildTemplate     bool
	ValidateAndAnnounce bool
	Exit                bool
}

// Transition computes the next state and required action for
// (current, event), pure and table-driven to mirror §4.5's transition
// table exactly.
func Transition(current State, event Event) (next State, action Action) {
	switch event {
	case EventShutdown:
		return ShuttingDown, Action{AbortWorker: true, Exit: true}

	case EventNewBlock:
		switch current {
		case Idle, Mining:
			return Mining, Action{AbortWorker: true, RebuildTemplate: true}
		default:
			return current, Action{}
		}

	case EventStopMining:
		return Paused, Action{AbortWorker: true}

	case EventStartMining:
		if current == Paused {
			return Mining, Action{RebuildTemplate: true}
		}
		return current, Action{}

	case EventWorkerFound:
		if current == Mining {
			return Mining, Action{ValidateAndAnnounce: true}
		}
		return current, Action{}
	}
	return current, Action{}
}

// FoundBlock is what the nonce-search worker hands back to the
// controller on success (§6 "Miner→main: NewBlockFound(block +
// coinbase expectation)").
type FoundBlock struct {
	Block               *block.Block
	CoinbaseExpectation int64
}
