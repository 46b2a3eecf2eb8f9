package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"km-backend/internal/models"

	"github.com/gorilla/websocket"
)

func TestHubBroadcastsSettlementEvents(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.NotifySettlement(ctx, models.SettlementEvent{
		Type:          "checkout.paid",
		CheckoutID:    "c1",
		StudentID:     "s1",
		AppliedAmount: 300,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.SettlementEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "checkout.paid" || got.CheckoutID != "c1" || got.AppliedAmount != 300 {
		t.Errorf("event = %+v", got)
	}
}

func TestNotifySettlementDoesNotBlockWhenQueueIsFull(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastQueue+10; i++ {
			hub.NotifySettlement(context.Background(), models.SettlementEvent{Type: "payment.created"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NotifySettlement blocked without a running hub")
	}
}
