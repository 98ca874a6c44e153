package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
)

func TestSearchDecodesOrganicResults(t *testing.T) {
	t.Parallel()

	var got searchRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-API-KEY")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic":[
			{"title":"A","link":"https://a.example","snippet":"first"},
			{"title":"no link"},
			{"title":"B","link":"https://b.example","snippet":"second"},
			{"title":"C","link":"https://c.example","snippet":"third"}
		]}`))
	}))
	defer srv.Close()

	client, err := New(Config{APIKey: "secret", Endpoint: srv.URL}, nil, zap.NewNop())
	require.NoError(t, err)

	results, err := client.Search(context.Background(), "running shoes", 2)
	require.NoError(t, err)
	require.Equal(t, "secret", apiKey)
	require.Equal(t, searchRequest{Query: "running shoes", Num: 2}, got)
	require.Equal(t, []crawler.SearchResult{
		{Link: "https://a.example", Title: "A", Snippet: "first"},
		{Link: "https://b.example", Title: "B", Snippet: "second"},
	}, results)
}

func TestSearchNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := New(Config{APIKey: "k", Endpoint: srv.URL}, srv.Client(), nil)
	require.NoError(t, err)
	_, err = client.Search(context.Background(), "q", 10)
	require.ErrorContains(t, err, "401")
}

func TestSearchMalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"organic":`))
	}))
	defer srv.Close()

	client, err := New(Config{APIKey: "k", Endpoint: srv.URL}, nil, nil)
	require.NoError(t, err)
	_, err = client.Search(context.Background(), "q", 10)
	require.Error(t, err)
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, nil)
	require.Error(t, err)
}
