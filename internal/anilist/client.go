package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"anitrack/internal/cache"
)

// DefaultEndpoint is the AniList GraphQL endpoint.
const DefaultEndpoint = "https://graphql.anilist.co"

// DefaultHTTPTimeout is the default timeout for API requests.
const DefaultHTTPTimeout = 30 * time.Second

// TokenProvider supplies the bearer token for authenticated requests. The
// auth.Keeper implements it.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// APIError is a non-transport failure reported by the API: a non-2xx status
// or a GraphQL errors array.
type APIError struct {
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("anilist api error: %s", strings.Join(e.Messages, ", "))
	}
	return fmt.Sprintf("anilist api request failed with status %d", e.Status)
}

// RateLimitError is returned on HTTP 429. RetryAfter is zero when the
// server did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("anilist rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "anilist rate limit exceeded"
}

// listKey identifies one cached user list slice. Status is the wire value,
// or "" for the unfiltered list.
type listKey struct {
	UserID int
	Status string
}

// Client is the AniList GraphQL API client. Reads of media details and user
// lists go through in-memory TTL caches, and concurrent identical detail
// fetches are collapsed into one request.
type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenProvider

	media    *cache.TTL[int, Media]
	lists    *cache.TTL[listKey, []MediaListEntry]
	inflight singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the GraphQL endpoint, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTokenProvider makes requests authenticated. Without one the client
// operates anonymously, which AniList permits for public data.
func WithTokenProvider(tokens TokenProvider) Option {
	return func(c *Client) { c.tokens = tokens }
}

// WithCacheMaxAge sets the TTL of the in-memory media and list caches.
func WithCacheMaxAge(maxAge time.Duration) Option {
	return func(c *Client) {
		c.media = cache.New[int, Media](maxAge)
		c.lists = cache.New[listKey, []MediaListEntry](maxAge)
	}
}

// DefaultCacheMaxAge is how long media and list reads are served from
// memory before going back to the API.
const DefaultCacheMaxAge = 15 * time.Minute

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		media:      cache.New[int, Media](DefaultCacheMaxAge),
		lists:      cache.New[listKey, []MediaListEntry](DefaultCacheMaxAge),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Viewer returns the authenticated user.
func (c *Client) Viewer(ctx context.Context) (*User, error) {
	var out struct {
		Viewer *User `json:"Viewer"`
	}
	if err := c.do(ctx, viewerQuery, nil, &out); err != nil {
		return nil, err
	}
	if out.Viewer == nil {
		return nil, &APIError{Messages: []string{"viewer query returned no user"}}
	}
	return out.Viewer, nil
}

// ViewerID resolves the user id that owns accessToken. It bypasses the
// token provider so the auth flow can attribute a token that has not been
// persisted yet; this is the auth.IdentityResolver implementation.
func (c *Client) ViewerID(ctx context.Context, accessToken string) (int, error) {
	var out struct {
		Viewer *User `json:"Viewer"`
	}
	if err := c.doWithToken(ctx, accessToken, viewerIDQuery, nil, &out); err != nil {
		return 0, err
	}
	if out.Viewer == nil || out.Viewer.ID == 0 {
		return 0, &APIError{Messages: []string{"viewer query returned no user id"}}
	}
	return out.Viewer.ID, nil
}

// SearchAnime searches anime by title.
func (c *Client) SearchAnime(ctx context.Context, search string, page, perPage int) ([]Media, *PageInfo, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	var out struct {
		Page struct {
			PageInfo PageInfo `json:"pageInfo"`
			Media    []Media  `json:"media"`
		} `json:"Page"`
	}
	variables := map[string]any{"search": search, "page": page, "perPage": perPage}
	if err := c.do(ctx, searchAnimeQuery, variables, &out); err != nil {
		return nil, nil, err
	}

	for _, media := range out.Page.Media {
		c.media.Put(media.ID, media)
	}
	return out.Page.Media, &out.Page.PageInfo, nil
}

// AnimeDetails fetches one media record, served from the cache when fresh.
// Concurrent fetches of the same id share a single request.
func (c *Client) AnimeDetails(ctx context.Context, id int) (*Media, error) {
	if media, ok := c.media.Get(id); ok {
		return &media, nil
	}

	result, err, _ := c.inflight.Do("media:"+strconv.Itoa(id), func() (any, error) {
		var out struct {
			Media *Media `json:"Media"`
		}
		if err := c.do(ctx, animeDetailsQuery, map[string]any{"id": id}, &out); err != nil {
			return nil, err
		}
		if out.Media == nil {
			return nil, &APIError{Messages: []string{fmt.Sprintf("media %d not found", id)}}
		}
		c.media.Put(out.Media.ID, *out.Media)
		return out.Media, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Media), nil
}

// UserAnimeList fetches a user's anime list, optionally filtered by status,
// served from the cache when fresh.
func (c *Client) UserAnimeList(ctx context.Context, userID int, status *MediaListStatus) ([]MediaListEntry, error) {
	key := listKey{UserID: userID}
	if status != nil {
		key.Status = status.String()
	}
	if entries, ok := c.lists.Get(key); ok {
		return entries, nil
	}

	variables := map[string]any{"userId": userID}
	if status != nil {
		variables["status"] = *status
	}

	var out struct {
		MediaListCollection struct {
			Lists []struct {
				Entries []MediaListEntry `json:"entries"`
			} `json:"lists"`
		} `json:"MediaListCollection"`
	}
	if err := c.do(ctx, userAnimeListQuery, variables, &out); err != nil {
		return nil, err
	}

	var entries []MediaListEntry
	for _, list := range out.MediaListCollection.Lists {
		entries = append(entries, list.Entries...)
	}

	c.lists.Put(key, entries)
	for _, entry := range entries {
		if entry.Media != nil {
			c.media.Put(entry.Media.ID, *entry.Media)
		}
	}
	return entries, nil
}

// SaveListEntry creates or updates the viewer's list entry for a media.
// Nil fields are left untouched server-side. The list caches are dropped so
// the next read observes the change.
func (c *Client) SaveListEntry(ctx context.Context, mediaID int, status *MediaListStatus, progress *int, score *float64) (*MediaListEntry, error) {
	variables := map[string]any{"mediaId": mediaID}
	if status != nil {
		variables["status"] = *status
	}
	if progress != nil {
		variables["progress"] = *progress
	}
	if score != nil {
		variables["score"] = *score
	}

	var out struct {
		SaveMediaListEntry *MediaListEntry `json:"SaveMediaListEntry"`
	}
	if err := c.do(ctx, saveListEntryMutation, variables, &out); err != nil {
		return nil, err
	}
	if out.SaveMediaListEntry == nil {
		return nil, &APIError{Messages: []string{"mutation returned no list entry"}}
	}

	c.lists.Clear()
	return out.SaveMediaListEntry, nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// do executes a GraphQL request with the provider-supplied token, falling
// back to an anonymous request when no token can be obtained.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	token := ""
	if c.tokens != nil {
		t, err := c.tokens.AccessToken(ctx)
		if err != nil {
			slog.Warn("Proceeding without authentication", "error", err.Error())
		} else {
			token = t
		}
	}
	return c.doWithToken(ctx, token, query, variables, out)
}

func (c *Client) doWithToken(ctx context.Context, token, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anilist request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope gqlResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, gqlErr := range envelope.Errors {
			messages = append(messages, gqlErr.Message)
		}
		return &APIError{Status: resp.StatusCode, Messages: messages}
	}
	if envelope.Data == nil {
		return &APIError{Status: resp.StatusCode, Messages: []string{"response carried no data"}}
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// IsRateLimited reports whether err is an AniList rate-limit rejection.
func IsRateLimited(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}
