package events

import (
	"context"
	"testing"
	"time"
)

func TestInProcessBus_DeliversInPublishOrder(t *testing.T) {
	bus := NewInProcessBus(8)
	ch := bus.Subscribe("graph")

	for i := 0; i < 5; i++ {
		bus.Publish(context.Background(), NodeDiscovered("t1", "n", "Host", "Host"))
	}

	for i := 0; i < 5; i++ {
		select {
		case e := <-ch:
			if e.Kind != KindNodeDiscovered {
				t.Fatalf("unexpected kind %v", e.Kind)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestInProcessBus_DoesNotDeliverAcrossTopics(t *testing.T) {
	bus := NewInProcessBus(8)
	graphCh := bus.Subscribe("graph")
	scanCh := bus.Subscribe("scan")

	bus.Publish(context.Background(), ScanStarted("t1", "s1", "aws", "acct-1"))

	select {
	case <-graphCh:
		t.Fatal("scan event delivered to graph subscriber")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case e := <-scanCh:
		if e.Kind != KindScanStarted {
			t.Fatalf("unexpected kind %v", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scan event")
	}
}

func TestInProcessBus_FullChannelDropsRatherThanBlocks(t *testing.T) {
	bus := NewInProcessBus(1)
	_ = bus.Subscribe("graph") // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(context.Background(), NodeDiscovered("t1", "n", "Host", "Host"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}
