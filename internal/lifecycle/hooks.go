package lifecycle

import "context"

// Phase orders shutdown: all hooks of a phase finish before the next phase starts.
type Phase int

const (
	// PhaseIngress stops accepting new work: the Telegram poller and the HTTP server.
	PhaseIngress Phase = iota
	// PhaseWorkers stops schedulers and background workers.
	PhaseWorkers
	// PhaseStorage closes connections the earlier phases relied on.
	PhaseStorage
)

func (p Phase) String() string {
	switch p {
	case PhaseIngress:
		return "ingress"
	case PhaseWorkers:
		return "workers"
	case PhaseStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Hook describes a named shutdown hook.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}
