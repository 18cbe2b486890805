package anilist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// staticTokenProvider hands out a fixed token.
type staticTokenProvider struct {
	token string
	err   error
}

func (p *staticTokenProvider) AccessToken(ctx context.Context) (string, error) {
	return p.token, p.err
}

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
	AuthH     string
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, req capturedRequest), opts ...Option) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req capturedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		req.AuthH = r.Header.Get("Authorization")
		handler(w, req)
	}))
	t.Cleanup(server.Close)

	opts = append([]Option{WithEndpoint(server.URL)}, opts...)
	return New(opts...)
}

func TestClient_Viewer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		if req.AuthH != "Bearer tok1" {
			t.Errorf("expected bearer token on viewer query, got %q", req.AuthH)
		}
		w.Write([]byte(`{"data":{"Viewer":{"id":42,"name":"tester"}}}`))
	}, WithTokenProvider(&staticTokenProvider{token: "tok1"}))

	user, err := client.Viewer(context.Background())
	if err != nil {
		t.Fatalf("Viewer failed: %v", err)
	}
	if user.ID != 42 || user.Name != "tester" {
		t.Errorf("unexpected user %+v", user)
	}
}

func TestClient_ViewerID_BypassesProvider(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		if req.AuthH != "Bearer explicit-token" {
			t.Errorf("expected the explicit token, got %q", req.AuthH)
		}
		w.Write([]byte(`{"data":{"Viewer":{"id":7}}}`))
	}, WithTokenProvider(&staticTokenProvider{token: "provider-token"}))

	id, err := client.ViewerID(context.Background(), "explicit-token")
	if err != nil {
		t.Fatalf("ViewerID failed: %v", err)
	}
	if id != 7 {
		t.Errorf("expected id 7, got %d", id)
	}
}

func TestClient_AnonymousWhenProviderFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		if req.AuthH != "" {
			t.Errorf("expected an anonymous request, got auth header %q", req.AuthH)
		}
		w.Write([]byte(`{"data":{"Page":{"pageInfo":{},"media":[]}}}`))
	}, WithTokenProvider(&staticTokenProvider{err: errors.New("no token")}))

	if _, _, err := client.SearchAnime(context.Background(), "test", 1, 10); err != nil {
		t.Fatalf("SearchAnime should fall back to anonymous, got %v", err)
	}
}

func TestClient_SearchAnime(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		if req.Variables["search"] != "bebop" {
			t.Errorf("unexpected search variable %v", req.Variables["search"])
		}
		w.Write([]byte(`{"data":{"Page":{
			"pageInfo":{"total":1,"currentPage":1,"lastPage":1,"hasNextPage":false,"perPage":20},
			"media":[{"id":1,"title":{"romaji":"Cowboy Bebop"},"episodes":26,"format":"TV"}]
		}}}`))
	})

	results, pageInfo, err := client.SearchAnime(context.Background(), "bebop", 1, 20)
	if err != nil {
		t.Fatalf("SearchAnime failed: %v", err)
	}
	if len(results) != 1 || results[0].Title.Romaji != "Cowboy Bebop" {
		t.Errorf("unexpected results %+v", results)
	}
	if pageInfo.Total != 1 {
		t.Errorf("unexpected page info %+v", pageInfo)
	}

	// The searched media must now be served from the cache.
	media, err := client.AnimeDetails(context.Background(), 1)
	if err != nil {
		t.Fatalf("AnimeDetails from cache failed: %v", err)
	}
	if media.Title.Romaji != "Cowboy Bebop" {
		t.Errorf("unexpected cached media %+v", media)
	}
}

func TestClient_AnimeDetails_SingleFlight(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		requests.Add(1)
		<-release
		w.Write([]byte(`{"data":{"Media":{"id":5114,"title":{"romaji":"FMA"}}}}`))
	})

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.AnimeDetails(context.Background(), 5114); err != nil {
				t.Errorf("AnimeDetails failed: %v", err)
			}
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := requests.Load(); got != 1 {
		t.Errorf("expected one upstream request for %d concurrent fetches, got %d", workers, got)
	}
}

func TestClient_UserAnimeList(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		requests.Add(1)
		if req.Variables["status"] != "CURRENT" {
			t.Errorf("expected CURRENT status variable, got %v", req.Variables["status"])
		}
		w.Write([]byte(`{"data":{"MediaListCollection":{"lists":[
			{"entries":[{"id":1,"mediaId":5114,"status":"CURRENT","progress":12,"media":{"id":5114,"title":{"romaji":"FMA"}}}]}
		]}}}`))
	})

	status := StatusCurrent
	entries, err := client.UserAnimeList(context.Background(), 42, &status)
	if err != nil {
		t.Fatalf("UserAnimeList failed: %v", err)
	}
	if len(entries) != 1 || entries[0].MediaID != 5114 {
		t.Errorf("unexpected entries %+v", entries)
	}

	// Second read is served from the cache.
	if _, err := client.UserAnimeList(context.Background(), 42, &status); err != nil {
		t.Fatalf("cached UserAnimeList failed: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected one upstream request, got %d", got)
	}
}

func TestClient_SaveListEntry_InvalidatesLists(t *testing.T) {
	var listRequests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		if _, isMutation := req.Variables["mediaId"]; isMutation {
			w.Write([]byte(`{"data":{"SaveMediaListEntry":{"id":1,"mediaId":5114,"status":"CURRENT","progress":13}}}`))
			return
		}
		listRequests.Add(1)
		w.Write([]byte(`{"data":{"MediaListCollection":{"lists":[]}}}`))
	})

	if _, err := client.UserAnimeList(context.Background(), 42, nil); err != nil {
		t.Fatalf("UserAnimeList failed: %v", err)
	}

	progress := 13
	entry, err := client.SaveListEntry(context.Background(), 5114, nil, &progress, nil)
	if err != nil {
		t.Fatalf("SaveListEntry failed: %v", err)
	}
	if entry.Progress == nil || *entry.Progress != 13 {
		t.Errorf("unexpected entry %+v", entry)
	}

	// The cached list must have been dropped by the mutation.
	if _, err := client.UserAnimeList(context.Background(), 42, nil); err != nil {
		t.Fatalf("UserAnimeList after mutation failed: %v", err)
	}
	if got := listRequests.Load(); got != 2 {
		t.Errorf("expected the list cache to be invalidated, got %d list requests", got)
	}
}

func TestClient_Errors(t *testing.T) {
	t.Run("graphql errors become an APIError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
			w.Write([]byte(`{"errors":[{"message":"Invalid token"}]}`))
		})

		_, err := client.Viewer(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if len(apiErr.Messages) != 1 || apiErr.Messages[0] != "Invalid token" {
			t.Errorf("unexpected messages %v", apiErr.Messages)
		}
	})

	t.Run("429 becomes a RateLimitError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := client.Viewer(context.Background())
		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			t.Fatalf("expected *RateLimitError, got %v", err)
		}
		if rateErr.RetryAfter != 30*time.Second {
			t.Errorf("expected RetryAfter 30s, got %v", rateErr.RetryAfter)
		}
		if !IsRateLimited(err) {
			t.Error("IsRateLimited should report true")
		}
	})

	t.Run("non-2xx becomes an APIError with the status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Viewer(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if apiErr.Status != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", apiErr.Status)
		}
	})
}
