package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		conn := NewConn(ws, time.Second, time.Second)
		defer conn.Close()

		for {
			data, err := conn.ReadFrame()
			if err != nil {
				return
			}
			msg, err := Parse(data)
			if err != nil {
				continue
			}
			if _, ok := msg.(Stop); ok {
				return
			}
			_ = conn.WriteJSON(NewTextFrame("ack"))
		}
	}))
}

func TestConn_RoundTrip(t *testing.T) {
	srv := newEchoServer(t)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"event":"connected"}`)))

	var frame TextFrame
	require.NoError(t, client.ReadJSON(&frame))
	assert.Equal(t, "ack", frame.Text)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"event":"stop"}`)))

	_, _, err = client.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestIsClosure(t *testing.T) {
	assert.False(t, IsClosure(nil))
	assert.True(t, IsClosure(&websocket.CloseError{Code: websocket.CloseNormalClosure}))
	assert.True(t, IsClosure(&websocket.CloseError{Code: websocket.CloseGoingAway}))
	assert.False(t, IsClosure(&websocket.CloseError{Code: websocket.CloseAbnormalClosure}))
}
