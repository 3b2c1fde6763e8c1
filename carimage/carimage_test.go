package carimage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient()
	c.Endpoint = srv.URL + "/api.asmx/GetImageUrl"
	c.HTTP = srv.Client()
	return c
}

func TestFetchImageURL(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?>
<string xmlns="http://carimagery.com/">http://img.example.com/2012_kia_rio.jpg</string>`))
	})

	u, ok := c.FetchImageURL(context.Background(), "Kia", "Rio 5", 2012)
	require.True(t, ok)
	assert.Equal(t, "http://img.example.com/2012_kia_rio.jpg", u)
	assert.Equal(t, "searchTerm=2012+Kia+Rio+5", gotQuery)
}

func TestFetchImageURLPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("http://img.example.com/a.jpg\n"))
	})
	u, ok := c.FetchImageURL(context.Background(), "Ford", "Focus", 2010)
	assert.True(t, ok)
	assert.Equal(t, "http://img.example.com/a.jpg", u)
}

func TestFetchImageURLFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	u, ok := c.FetchImageURL(context.Background(), "Kia", "Rio", 2012)
	assert.False(t, ok)
	assert.Empty(t, u)

	empty := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, ok = empty.FetchImageURL(context.Background(), "Kia", "Rio", 2012)
	assert.False(t, ok)

	unreachable := NewClient()
	unreachable.Endpoint = "http://127.0.0.1:1/none"
	_, ok = unreachable.FetchImageURL(context.Background(), "Kia", "Rio", 2012)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok = c.FetchImageURL(ctx, "Kia", "Rio", 2012)
	assert.False(t, ok)
}
