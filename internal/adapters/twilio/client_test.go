package twilio_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zivai/internal/adapters/twilio"
)

func newTestClient(t *testing.T) (*twilio.Client, *[]url.Values) {
	t.Helper()
	var requests []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "request must carry basic auth")
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)

		require.NoError(t, r.ParseForm())
		requests = append(requests, r.PostForm)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	c := twilio.New("AC123", "token", "+14155238886", twilio.WithBaseURL(srv.URL))
	return c, &requests
}

func TestSendText(t *testing.T) {
	client, requests := newTestClient(t)

	err := client.SendText(context.Background(), "whatsapp:+263771234567", "hello")
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	form := (*requests)[0]
	assert.Equal(t, "whatsapp:+263771234567", form.Get("To"))
	assert.Equal(t, "whatsapp:+14155238886", form.Get("From"))
	assert.Equal(t, "hello", form.Get("Body"))
}

func TestSendText_SegmentsLongBodies(t *testing.T) {
	client, requests := newTestClient(t)

	body := strings.Repeat("a", 1600) + strings.Repeat("b", 1600) + "tail"
	err := client.SendText(context.Background(), "whatsapp:+263771234567", body)
	require.NoError(t, err)

	require.Len(t, *requests, 3)
	assert.Equal(t, strings.Repeat("a", 1600), (*requests)[0].Get("Body"))
	assert.Equal(t, strings.Repeat("b", 1600), (*requests)[1].Get("Body"))
	assert.Equal(t, "tail", (*requests)[2].Get("Body"))
}

func TestSendTemplate(t *testing.T) {
	client, requests := newTestClient(t)

	err := client.SendTemplate(context.Background(), "whatsapp:+263771234567", "Tariro",
		[]string{"HXaaa", "HXbbb"})
	require.NoError(t, err)

	require.Len(t, *requests, 2)
	first := (*requests)[0]
	assert.Equal(t, "HXaaa", first.Get("ContentSid"))
	assert.JSONEq(t, `{"1": "Tariro"}`, first.Get("ContentVariables"))
	assert.Equal(t, "HXbbb", (*requests)[1].Get("ContentSid"))
}

func TestSendTemplate_DefaultDisplayName(t *testing.T) {
	client, requests := newTestClient(t)

	err := client.SendTemplate(context.Background(), "whatsapp:+263771234567", "", []string{"HXaaa"})
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	assert.JSONEq(t, `{"1": "there"}`, (*requests)[0].Get("ContentVariables"))
}

func TestSendText_ErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "invalid To number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := twilio.New("AC123", "token", "+14155238886", twilio.WithBaseURL(srv.URL))
	err := client.SendText(context.Background(), "nope", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid To number")
}
