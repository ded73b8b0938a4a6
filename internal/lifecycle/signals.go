package lifecycle

import (
	"os"
	"os/signal"
	"syscall"
)

// SignalSource delivers termination requests to the Manager. Production uses
// OSSignals; tests inject a channel they control.
type SignalSource interface {
	Signals() <-chan os.Signal
	Stop()
}

type osSignals struct {
	ch chan os.Signal
}

// OSSignals subscribes to SIGINT and SIGTERM.
func OSSignals() SignalSource {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return &osSignals{ch: ch}
}

func (s *osSignals) Signals() <-chan os.Signal { return s.ch }

func (s *osSignals) Stop() { signal.Stop(s.ch) }
