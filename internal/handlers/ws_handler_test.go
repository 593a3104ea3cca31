package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agile-tracker-api/internal/realtime"
	"agile-tracker-api/internal/services/backlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestProjectFeed_ReceivesProjectEvents(t *testing.T) {
	h := setupHandler(t)
	r := gin.New()
	r.GET("/projects/:projectId/ws", func(c *gin.Context) {
		c.Set("user_id", "u-1")
		h.ProjectFeed(c)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/projects/p-1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Hub.Subscribers("p-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = h.Backlog.Create(context.Background(), backlog.CreateRequest{ProjectID: "p-2", Title: "elsewhere"})
	require.NoError(t, err)
	item, err := h.Backlog.Create(context.Background(), backlog.CreateRequest{ProjectID: "p-1", Title: "Lay bricks"})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt realtime.Event
	require.NoError(t, json.Unmarshal(msg, &evt))
	require.Equal(t, realtime.BacklogItemCreated, evt.Type)
	require.Equal(t, "p-1", evt.ProjectID)
	require.Equal(t, item.ID, evt.EntityID)
}

func TestProjectFeed_ConcurrentPublishes(t *testing.T) {
	h := setupHandler(t)
	r := gin.New()
	r.GET("/projects/:projectId/ws", func(c *gin.Context) {
		c.Set("user_id", "u-1")
		h.ProjectFeed(c)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/projects/p-1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Hub.Subscribers("p-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	const writers, perWriter = 16, 50
	var received int64
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for atomic.LoadInt64(&received) < writers*perWriter {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var evt realtime.Event
			if json.Unmarshal(msg, &evt) != nil {
				return
			}
			atomic.AddInt64(&received, 1)
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				realtime.Publish(h.Hub, realtime.BoardStatusChanged, "p-1", "s-1", map[string]int{"n": i})
			}
		}()
	}
	wg.Wait()

	select {
	case <-readDone:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for events")
	}
	require.EqualValues(t, writers*perWriter, atomic.LoadInt64(&received))
	require.Equal(t, 1, h.Hub.Subscribers("p-1"))
}
