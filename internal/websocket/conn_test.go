package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// The session stream writes from two goroutines: the read-loop replies and
// the termination watcher. This hammers one Conn from several writers and
// verifies every frame arrives whole.
func TestConcurrentWritersDeliverWholeFrames(t *testing.T) {
	const writers = 8
	const perWriter = 25

	var upgrader gws.Upgrader
	clientDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer raw.Close()
		conn := NewConn(raw)

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWriter; j++ {
					if err := conn.WriteTyped(TimerResponse{
						Event:         EventTimer,
						Status:        model.SessionStatusInProgress,
						RemainingSecs: float64(j),
					}); err != nil {
						t.Errorf("write: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()
		<-clientDone
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < writers*perWriter; i++ {
		var resp TimerResponse
		if err := client.ReadJSON(&resp); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if resp.Event != EventTimer {
			t.Fatalf("frame %d event = %q, want %q", i, resp.Event, EventTimer)
		}
	}
	close(clientDone)
}

func TestWriteErrorCarriesErrorEvent(t *testing.T) {
	var upgrader gws.Upgrader
	clientDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer raw.Close()
		NewConn(raw).WriteError("unknown action: jump")
		<-clientDone
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp ErrorResponse
	if err := client.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Event != EventError {
		t.Errorf("event = %q, want %q", resp.Event, EventError)
	}
	if resp.Error != "unknown action: jump" {
		t.Errorf("error = %q", resp.Error)
	}
	close(clientDone)
}
