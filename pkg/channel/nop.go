package channel

import "chatsync/pkg/logger"

// Nop is an adapter for offline operation: emissions are logged and
// dropped, no events ever arrive. The engine behaves as if the peer
// never answers, which is exactly the optimistic path.
type Nop struct{}

func (Nop) Emit(event string, payload any) error {
	logger.Debug("emit_dropped_offline", "event", event)
	return nil
}

func (Nop) On(event string, h Handler) {}
