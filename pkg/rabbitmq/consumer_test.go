package rabbitmq

import "testing"

func TestQueueArgs(t *testing.T) {
	args := queueArgs("contribution_service.gateway_confirmations")

	if args["x-queue-type"] != "quorum" {
		t.Fatalf("expected quorum queue, got %v", args["x-queue-type"])
	}
	if limit, ok := args["x-delivery-limit"].(int32); !ok || limit <= 0 {
		t.Fatalf("expected a positive delivery limit, got %v", args["x-delivery-limit"])
	}
	if got := args["x-dead-letter-exchange"]; got != "contribution_service.gateway_confirmations.dead_letter" {
		t.Fatalf("unexpected dead-letter exchange %v", got)
	}
}

func TestDispositionString(t *testing.T) {
	tests := map[Disposition]string{
		Ack:            "ack",
		Requeue:        "requeue",
		DeadLetter:     "dead_letter",
		Disposition(9): "disposition(9)",
	}
	for d, want := range tests {
		if got := d.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", int(d), got, want)
		}
	}
}
