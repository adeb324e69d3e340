package aggregator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mintlaunch/launchindex/pkg/contracts"
)

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).Ping(context.Background()))
}

func TestPingUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	require.Error(t, NewClient(srv.URL).Ping(context.Background()))
}

func TestLaunched(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{"deployed", http.StatusOK, true, false},
		{"pre-launch", http.StatusNotFound, false, false},
		{"outage is not pre-launch", http.StatusInternalServerError, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/deployment", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			launched, err := NewClient(srv.URL).Launched(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, launched)
		})
	}
}

func TestHomePageData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/home", r.URL.Path)
		require.Equal(t, "20", r.URL.Query().Get("offset"))
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(contracts.HomePageData{
			Projects:      []contracts.ProjectCard{{Instance: "0xa", Name: "Alpha"}},
			TotalFeatured: 7,
		})
	}))
	defer srv.Close()

	data, err := NewClient(srv.URL).HomePageData(context.Background(), 20, 10)
	require.NoError(t, err)
	require.Equal(t, 7, data.TotalFeatured)
	require.Len(t, data.Projects, 1)
}

func TestProjectCardsBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/cards", r.URL.Path)

		var req struct {
			Addresses []string `json:"addresses"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"0xa", "0xb"}, req.Addresses)

		cards := make([]contracts.ProjectCard, len(req.Addresses))
		for i, a := range req.Addresses {
			cards[i] = contracts.ProjectCard{Instance: a}
		}
		_ = json.NewEncoder(w).Encode(cards)
	}))
	defer srv.Close()

	cards, err := NewClient(srv.URL).ProjectCardsBatch(context.Background(), []string{"0xa", "0xb"})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	require.Equal(t, "0xa", cards[0].Instance)
	require.Equal(t, "0xb", cards[1].Instance)
}

func TestErrorResponseIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).VaultLeaderboard(context.Background(), "tvl", 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
	require.Contains(t, err.Error(), "rate limited")
}
