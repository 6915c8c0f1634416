package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do_SendsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		assert.Equal(t, int64(5), r.ContentLength)
		assert.Equal(t, "/a/b", r.URL.Path)
		assert.Equal(t, "x=1", r.URL.RawQuery)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello", string(body))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(" short and stout \n"))
	}))
	t.Cleanup(server.Close)

	c := NewClient(NewHTTPClient(5*time.Second), server.URL+"/", "secret")
	assert.Equal(t, server.URL, c.BaseURL())

	resp, err := c.Do(context.Background(), "op", http.MethodPost, "/a/b?x=1",
		strings.NewReader("hello"), 5, http.Header{"Content-Type": {"text/plain"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	err = Expect("op", resp, http.StatusOK, http.StatusNoContent)
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "short and stout", re.Body)
	assert.Equal(t, http.StatusTeapot, StatusCode(err))
	assert.Equal(t, "op: short and stout (HTTP 418)", err.Error())

	assert.NoError(t, Expect("op", resp, http.StatusTeapot))
}

func TestClient_Do_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(nil, url, "k")
	_, err := c.Do(context.Background(), "upload", http.MethodGet, "/", nil, -1, nil)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "upload", te.Operation)
	assert.Equal(t, 0, StatusCode(err))
}

func TestDecodeError(t *testing.T) {
	resp := &Response{StatusCode: http.StatusOK, Body: []byte(`{"oops"`)}
	err := DecodeError("list", resp, errors.New("unexpected EOF"))

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusOK, re.StatusCode)
	assert.Contains(t, err.Error(), "invalid response (HTTP 200)")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxErrorBody+10)
	assert.Len(t, truncate([]byte(long)), maxErrorBody)
}
