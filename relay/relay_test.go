package relay

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/cml-fleet/worker-engine/domain/event"
	"github.com/cml-fleet/worker-engine/domain/worker"
	"github.com/cml-fleet/worker-engine/internal/metrics"
)

func testMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	return metrics.NewWithRegistry("relay-test", prometheus.NewRegistry())
}

func testEvent(workerID string) worker.CreatedEvent {
	return worker.CreatedEvent{
		AggID:     workerID,
		Name:      "w1",
		Region:    "eastus",
		Status:    worker.StatusPending,
		CreatedAt: time.Now(),
		CreatedBy: "test",
	}
}

func TestRelayPublishLocalBroadcastsToMatchingSubscriber(t *testing.T) {
	r := New(nil, zerolog.Nop(), nil)
	sub := NewSubscriber("s1", 10, nil, nil)
	r.Register(sub)

	if err := r.Publish(context.Background(), testEvent("w-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case env := <-sub.Queue:
		if env.Type != event.TypeWorkerCreated {
			t.Fatalf("expected worker.created, got %s", env.Type)
		}
	default:
		t.Fatal("expected event delivered to subscriber queue")
	}
}

func TestRelaySubscriberFilterByWorkerID(t *testing.T) {
	r := New(nil, zerolog.Nop(), nil)
	filtered := NewSubscriber("s1", 10, map[string]struct{}{"w-1": {}}, nil)
	unfiltered := NewSubscriber("s2", 10, nil, nil)
	r.Register(filtered)
	r.Register(unfiltered)

	r.Publish(context.Background(), testEvent("w-2"))

	select {
	case <-filtered.Queue:
		t.Fatal("expected filtered subscriber to not receive event for a different worker id")
	default:
	}
	select {
	case <-unfiltered.Queue:
	default:
		t.Fatal("expected unfiltered subscriber to receive the event")
	}
}

func TestRelaySubscriberFilterByEventType(t *testing.T) {
	r := New(nil, zerolog.Nop(), nil)
	sub := NewSubscriber("s1", 10, nil, map[event.Type]struct{}{event.TypeWorkerTerminated: {}})
	r.Register(sub)

	r.Publish(context.Background(), testEvent("w-1"))

	select {
	case <-sub.Queue:
		t.Fatal("expected subscriber filtered to worker.terminated to not receive worker.created")
	default:
	}
}

func TestRelayDropsOnFullQueue(t *testing.T) {
	stats := testMetrics(t)
	r := New(nil, zerolog.Nop(), stats)
	sub := NewSubscriber("s1", 1, nil, nil)
	r.Register(sub)

	r.Publish(context.Background(), testEvent("w-1"))
	if err := r.Publish(context.Background(), testEvent("w-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sub.Queue) != 1 {
		t.Fatalf("expected queue to still hold exactly 1 event, got %d", len(sub.Queue))
	}
}

func TestRelayUnregisterStopsDelivery(t *testing.T) {
	r := New(nil, zerolog.Nop(), nil)
	sub := NewSubscriber("s1", 10, nil, nil)
	r.Register(sub)
	if r.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", r.SubscriberCount())
	}

	r.Unregister("s1")
	if r.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after unregister, got %d", r.SubscriberCount())
	}

	r.Publish(context.Background(), testEvent("w-1"))
	select {
	case <-sub.Queue:
		t.Fatal("expected no delivery to an unregistered subscriber")
	default:
	}
}
