package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func telegramServer(t *testing.T, sent *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"x","username":"classbook_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			*sent = append(*sent, r.Form.Get("chat_id")+":"+r.Form.Get("text"))
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":5,"type":"group"}}}`))
		default:
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}))
}

func TestTelegramPoster(t *testing.T) {
	var sent []string
	srv := telegramServer(t, &sent)
	defer srv.Close()

	p, err := NewTelegramPosterWithClient("token", srv.URL+"/bot%s/%s", srv.Client(), 5)
	require.NoError(t, err)
	assert.Equal(t, "classbook_bot", p.BotName())

	require.NoError(t, p.Post(context.Background(), "hello staff"))
	assert.Equal(t, []string{"5:hello staff"}, sent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Post(ctx, "late"), context.Canceled)
	assert.Len(t, sent, 1)
}

func TestTelegramPoster_Validation(t *testing.T) {
	_, err := NewTelegramPoster("", 5)
	assert.Error(t, err)
	_, err = NewTelegramPoster("token", 0)
	assert.Error(t, err)
}
