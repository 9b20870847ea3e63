package messaging

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMessage_Redelivery(t *testing.T) {
	tests := []struct {
		delivered uint64
		want      bool
	}{
		{0, false},
		{1, false},
		{2, true},
	}
	for _, tt := range tests {
		msg := Message{Delivered: tt.delivered}
		if got := msg.Redelivery(); got != tt.want {
			t.Errorf("Delivered=%d: Redelivery() = %v, want %v", tt.delivered, got, tt.want)
		}
	}
}

func TestApply(t *testing.T) {
	o := Apply()
	if o != DefaultConsumeOptions() {
		t.Errorf("expected defaults, got %+v", o)
	}

	o = Apply(WithNakDelay(time.Second), WithMaxInFlight(8))
	if o.NakDelay != time.Second {
		t.Errorf("expected NakDelay 1s, got %v", o.NakDelay)
	}
	if o.MaxInFlight != 8 {
		t.Errorf("expected MaxInFlight 8, got %d", o.MaxInFlight)
	}

	o = Apply(WithMaxInFlight(0))
	if o.MaxInFlight != 1 {
		t.Errorf("non-positive MaxInFlight should keep the default, got %d", o.MaxInFlight)
	}
}

func TestBatchSubject(t *testing.T) {
	if got := BatchSubject("wow"); got != "combatlog.batches.wow" {
		t.Errorf("BatchSubject(wow) = %q", got)
	}
}

type fakePinger struct {
	connected bool
	err       error
}

func (f fakePinger) IsConnected() bool { return f.connected }
func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestCheckHealth(t *testing.T) {
	ctx := context.Background()

	if s := CheckHealth(ctx, nil); s.Error == "" {
		t.Error("expected an error for a nil client")
	}
	if s := CheckHealth(ctx, fakePinger{}); s.Connected || s.Error == "" {
		t.Errorf("expected disconnected status, got %+v", s)
	}
	if s := CheckHealth(ctx, fakePinger{connected: true}); !s.Connected || s.Error != "" {
		t.Errorf("expected healthy status, got %+v", s)
	}
	if s := CheckHealth(ctx, fakePinger{connected: true, err: errors.New("timeout")}); s.Error == "" {
		t.Errorf("expected ping failure, got %+v", s)
	}
}
