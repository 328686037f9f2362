package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotifier(apiBase string) *TelegramNotifier {
	tn := NewTelegramNotifier("test-token", "42", "")
	tn.apiBase = apiBase
	tn.retryWait = time.Millisecond
	return tn
}

func TestSend(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok": true, "result": {}}`)
	}))
	defer srv.Close()

	tn := testNotifier(srv.URL)
	require.NoError(t, tn.Send("🍖 <b>Feeder Status</b>"))
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "🍖 <b>Feeder Status</b>", got.Text)
	assert.Equal(t, "HTML", got.ParseMode)
}

func TestSend_APIRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok": false, "description": "chat not found"}`)
	}))
	defer srv.Close()

	err := testNotifier(srv.URL).Send("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendWithRetry_RecoversAfterFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"ok": false, "description": "internal"}`)
			return
		}
		fmt.Fprint(w, `{"ok": true, "result": {}}`)
	}))
	defer srv.Close()

	tn := testNotifier(srv.URL)
	require.NoError(t, tn.SendWithRetry(context.Background(), "alert", 3))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"ok": false, "description": "internal"}`)
	}))
	defer srv.Close()

	err := testNotifier(srv.URL).SendWithRetry(context.Background(), "alert", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 attempts")
}

func TestStartPolling_DispatchesConfiguredChatOnly(t *testing.T) {
	var polls int32
	replies := make(chan sendMessageRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/getUpdates":
			// One batch with a stranger's message and a real command, then
			// empty batches until the test cancels.
			if atomic.AddInt32(&polls, 1) == 1 {
				fmt.Fprint(w, `{"ok": true, "result": [
					{"update_id": 1, "message": {"text": "/reset", "chat": {"id": 999}}},
					{"update_id": 2, "message": {"text": "/status", "chat": {"id": 42}}},
					{"update_id": 3, "message": {"text": "not a command", "chat": {"id": 42}}}
				]}`)
				return
			}
			fmt.Fprint(w, `{"ok": true, "result": []}`)
		case "/bottest-token/sendMessage":
			var req sendMessageRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			replies <- req
			fmt.Fprint(w, `{"ok": true, "result": {}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	tn := testNotifier(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled []string
	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, func(cmd string) string {
			handled = append(handled, cmd)
			return "ok: " + cmd
		})
		close(done)
	}()

	select {
	case reply := <-replies:
		assert.Equal(t, "ok: /status", reply.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the command reply")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop on cancel")
	}

	assert.Equal(t, []string{"/status"}, handled, "stranger chat and non-command text must be ignored")
}
