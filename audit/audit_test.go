package audit

import (
	"context"
	"testing"

	"github.com/opsml/registry/card"
)

func TestNoOpSinkDiscardsEvents(t *testing.T) {
	var s Sink = NoOpSink{}
	err := s.Record(context.Background(), Event{
		Actor:        "tester",
		Action:       ActionCreate,
		RegistryType: card.RegistryModel,
		UID:          "abc",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
}
