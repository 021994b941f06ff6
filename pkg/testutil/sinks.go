package testutil

import (
	"context"
	"sync"

	"github.com/Stefan/orka-ppm-sub007/pkg/notify"
)

// RecordingSink is a notify.Sink that keeps every intent.
type RecordingSink struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (s *RecordingSink) Notify(_ context.Context, intent notify.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.intents = append(s.intents, intent)
}

// Intents returns a copy of the recorded intents.
func (s *RecordingSink) Intents() []notify.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]notify.Intent(nil), s.intents...)
}

// OfType returns the recorded intents of one type.
func (s *RecordingSink) OfType(intentType notify.Type) []notify.Intent {
	var out []notify.Intent

	for _, intent := range s.Intents() {
		if intent.Type == intentType {
			out = append(out, intent)
		}
	}

	return out
}
