package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/jamfops/internal/failure"
)

func TestPostSendsBodyUnchanged(t *testing.T) {
	payload := []byte(`{"title":"Automated Unmanagement","text":"x",  "extra":[1,2]}`)

	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	require.NoError(t, client.Post(context.Background(), server.URL, payload))
	assert.Equal(t, payload, received)
}

func TestPostRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "Bad payload")
	}))
	defer server.Close()

	err := NewClient(5*time.Second).Post(context.Background(), server.URL, []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrRejected)
	assert.Contains(t, err.Error(), "400")
}

func TestPostUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewClient(time.Second).Post(context.Background(), url, []byte(`{}`))
	assert.ErrorIs(t, err, failure.ErrTransport)
}
