package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTelegram(TelegramConfig{
		BotToken:   "bot-token",
		ChatID:     "chat-42",
		BaseURL:    srv.URL,
		RetryDelay: time.Millisecond,
	}, nil)
}

func TestSend(t *testing.T) {
	var got map[string]string
	tg := newTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botbot-token/sendMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		got = map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		}
	})

	require.NoError(t, tg.Send(context.Background(), "<b>hola</b>"))
	assert.Equal(t, "chat-42", got["chat_id"])
	assert.Equal(t, "<b>hola</b>", got["text"])
	assert.Equal(t, "html", got["parse_mode"])
}

func TestSend_RetriesRateLimit(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	tg := newTelegram(t, func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
		}
	})

	require.NoError(t, tg.Send(context.Background(), "hola"))
	assert.Equal(t, 3, calls)
}

func TestSend_NoRetryOnOtherErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	tg := newTelegram(t, func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
	})

	err := tg.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
