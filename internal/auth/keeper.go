package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrKeeperClosed is returned by Keeper operations after Close.
var ErrKeeperClosed = errors.New("token keeper is closed")

// Authenticator is the slice of Manager the Keeper depends on.
type Authenticator interface {
	EnsureAuthenticated(ctx context.Context) (*Token, error)
}

// Keeper owns the in-process access token for the API client. A single
// goroutine holds the token and serves requests over a channel, so
// "check, then maybe refresh" is one atomic request: concurrent callers
// queue behind a single refresh instead of racing two of them.
type Keeper struct {
	auth Authenticator

	requests   chan tokenRequest
	invalidate chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

type tokenRequest struct {
	ctx   context.Context
	reply chan tokenReply
}

type tokenReply struct {
	token *Token
	err   error
}

// NewKeeper starts the owning goroutine. Callers must Close the keeper when
// done with it.
func NewKeeper(auth Authenticator) *Keeper {
	k := &Keeper{
		auth:       auth,
		requests:   make(chan tokenRequest),
		invalidate: make(chan struct{}),
		done:       make(chan struct{}),
	}
	go k.loop()
	return k
}

func (k *Keeper) loop() {
	var current *Token

	for {
		select {
		case req := <-k.requests:
			if current != nil && !current.IsExpired() {
				req.reply <- tokenReply{token: current}
				continue
			}
			token, err := k.auth.EnsureAuthenticated(req.ctx)
			if token != nil {
				// A token with an attribution or persistence error is still
				// valid for this session; keep it so the next caller does
				// not re-run the flow.
				current = token
				if err != nil {
					slog.Warn("Token obtained but not fully persisted", "error", err.Error())
					err = nil
				}
			}
			req.reply <- tokenReply{token: token, err: err}

		case <-k.invalidate:
			current = nil

		case <-k.done:
			return
		}
	}
}

// AccessToken returns a valid access token, refreshing or re-authenticating
// through the Manager when the held one is missing or expired.
func (k *Keeper) AccessToken(ctx context.Context) (string, error) {
	req := tokenRequest{ctx: ctx, reply: make(chan tokenReply, 1)}

	select {
	case k.requests <- req:
	case <-k.done:
		return "", ErrKeeperClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case reply := <-req.reply:
		if reply.err != nil {
			return "", reply.err
		}
		return reply.token.AccessToken, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops the held token so the next request re-checks the store.
// Called after logout and after the API rejects a token.
func (k *Keeper) Invalidate() {
	select {
	case k.invalidate <- struct{}{}:
	case <-k.done:
	}
}

// Close stops the owning goroutine.
func (k *Keeper) Close() {
	k.closeOnce.Do(func() { close(k.done) })
}
