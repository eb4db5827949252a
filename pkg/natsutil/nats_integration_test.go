//go:build integration

package natsutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func natsURL() string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	return nats.DefaultURL
}

func connectNATS(t *testing.T) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(natsURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	return nc
}

func TestNATS_PubSub(t *testing.T) {
	nc := connectNATS(t)

	type msg struct {
		Text string `json:"text"`
	}

	ch := make(chan msg, 1)
	sub, err := Subscribe(nc, "lexrag.test.pubsub", func(ctx context.Context, m msg) {
		ch <- m
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "lexrag.test.pubsub", msg{Text: "articol 145"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Text != "articol 145" {
			t.Fatalf("expected 'articol 145', got %q", got.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNATS_QueueSubscribeSeesRetryHeader(t *testing.T) {
	nc := connectNATS(t)

	type job struct {
		Source string `json:"source"`
	}
	got := make(chan int, 1)
	sub, err := QueueSubscribe(nc, "lexrag.test.queue", "workers", func(_ context.Context, m *nats.Msg, j job) {
		if j.Source == "CODUL_FISCAL" {
			got <- RetryCount(m)
		}
	})
	if err != nil {
		t.Fatalf("QueueSubscribe: %v", err)
	}
	defer sub.Unsubscribe()

	msg, err := NewMsg(context.Background(), "lexrag.test.queue", job{Source: "CODUL_FISCAL"})
	if err != nil {
		t.Fatal(err)
	}
	if err := Redeliver(nc, msg, 2); err != nil {
		t.Fatalf("Redeliver: %v", err)
	}
	select {
	case n := <-got:
		if n != 2 {
			t.Fatalf("expected retry count 2, got %d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
