package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormspreeSender(t *testing.T) {
	_, err := NewFormspreeSender("", "x@y.z")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewFormspreeSender("YOUR_FORMSPREE_FORM_ID", "x@y.z")
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err := NewFormspreeSender("xabc123", "x@y.z")
	require.NoError(t, err)
	assert.Equal(t, "https://formspree.io/f/xabc123", s.Endpoint())

	s, err = NewFormspreeSender("http://localhost:9000/f/x", "x@y.z")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/f/x", s.Endpoint())
}

func TestFormspreeSender_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s, err := NewFormspreeSender(srv.URL, "office@school.org")
	require.NoError(t, err)
	s.WithHTTPClient(srv.Client())

	notice := NoticeForBooking(sampleBooking(), "Classroom 1")
	err = s.Send(context.Background(), Email{To: "bob@school.org", Subject: notice.Title(), Body: "body", Notice: notice})
	require.NoError(t, err)

	assert.Equal(t, "office@school.org", got["_replyto"])
	assert.Equal(t, "office@school.org", got["_cc"])
	assert.Equal(t, "New Booking: Classroom 1 - Algebra", got["_subject"])
	assert.Equal(t, "bob@school.org", got["email"])
	assert.Equal(t, "bob", got["name"])
	assert.Equal(t, "one-time", got["booking_type"])
	assert.Equal(t, "Classroom 1", got["classroom"])
	assert.Equal(t, "Algebra", got["subject_taught"])
	assert.Equal(t, "2024-06-10", got["date"])
	assert.Equal(t, "09:00-10:00", got["time"])
}

func TestFormspreeSender_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"form not found"}`))
	}))
	defer srv.Close()

	s, err := NewFormspreeSender(srv.URL, "")
	require.NoError(t, err)

	err = s.Send(context.Background(), Email{To: "bob@school.org"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Equal(t, "formspree error: http 422: form not found", err.Error())
}

func TestFormspreeSender_RetriedByNotifier(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewFormspreeSender(srv.URL, "")
	require.NoError(t, err)
	n := NewNotifier(s, StaticRoster{"bob@school.org"}, fastConfig(), nil)

	res, err := n.NotifyBooking(context.Background(), sampleBooking(), "Classroom 1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 2, res.Results[0].Attempts)
	assert.Equal(t, 2, calls)
}
