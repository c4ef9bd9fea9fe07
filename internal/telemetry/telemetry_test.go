package telemetry

import (
	"context"
	"testing"
)

func TestSetupWithoutEndpointIsNoOp(t *testing.T) {
	shutdown := Setup("frontdesk", Config{})
	if shutdown == nil {
		t.Fatal("nil shutdown hook")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
}
