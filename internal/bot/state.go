package bot

// State is a step of the workload state machine.
type State int

const (
	StateBootstrapping State = iota
	StateLoggingIn
	StateDiscovering
	StateEnsuring
	StatePublishing
	StateCooldown
	StateBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateLoggingIn:
		return "logging-in"
	case StateDiscovering:
		return "discovering"
	case StateEnsuring:
		return "ensuring"
	case StatePublishing:
		return "publishing"
	case StateCooldown:
		return "cooldown"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
