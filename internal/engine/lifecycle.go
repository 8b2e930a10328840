package engine

// Lifecycle is the state of the engine.
type Lifecycle int

const (
	Stopped Lifecycle = iota
	Starting
	Running
	Stopping
)

// String returns the state name.
func (l Lifecycle) String() string {
	switch l {
	case Stopped:
		return "Stopped"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}
