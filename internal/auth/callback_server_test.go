package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startTestServer(t *testing.T) (*CallbackServer, string, context.CancelFunc) {
	t.Helper()

	server := NewCallbackServer(0, "/callback")
	ctx, cancel := context.WithCancel(context.Background())

	callbackURL, err := server.Start(ctx)
	if err != nil {
		cancel()
		t.Fatalf("Failed to start callback server: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		server.Stop()
	})
	return server, callbackURL, cancel
}

func TestCallbackServer_Start(t *testing.T) {
	t.Run("binds an ephemeral port", func(t *testing.T) {
		server, callbackURL, _ := startTestServer(t)

		if !strings.Contains(callbackURL, "/callback") {
			t.Errorf("callback URL should contain '/callback', got: %s", callbackURL)
		}
		if server.Port() == 0 {
			t.Error("expected non-zero port after start")
		}
	})

	t.Run("fails when the port is taken", func(t *testing.T) {
		server1, _, _ := startTestServer(t)

		server2 := NewCallbackServer(server1.Port(), "/callback")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := server2.Start(ctx)
		if err == nil {
			server2.Stop()
			t.Fatal("expected bind failure on occupied port")
		}
		var bindErr *BindError
		if !errors.As(err, &bindErr) {
			t.Errorf("expected *BindError, got %T: %v", err, err)
		}
	})
}

func TestCallbackServer_WaitForCallback(t *testing.T) {
	t.Run("returns the code on a valid redirect", func(t *testing.T) {
		server, callbackURL, _ := startTestServer(t)

		go func() {
			time.Sleep(50 * time.Millisecond)
			resp, err := http.Get(callbackURL + "?code=test-code&state=expected-state")
			if err == nil {
				resp.Body.Close()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		code, err := server.WaitForCallback(ctx, "expected-state")
		if err != nil {
			t.Fatalf("WaitForCallback failed: %v", err)
		}
		if code != "test-code" {
			t.Errorf("expected code 'test-code', got %q", code)
		}
	})

	t.Run("rejects a state mismatch without exposing the code", func(t *testing.T) {
		server, callbackURL, _ := startTestServer(t)

		go func() {
			time.Sleep(50 * time.Millisecond)
			resp, err := http.Get(callbackURL + "?code=test-code&state=attacker-state")
			if err == nil {
				resp.Body.Close()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		code, err := server.WaitForCallback(ctx, "expected-state")
		if !errors.Is(err, ErrStateMismatch) {
			t.Fatalf("expected ErrStateMismatch, got %v", err)
		}
		if code != "" {
			t.Errorf("expected empty code on mismatch, got %q", code)
		}
	})

	t.Run("reports a missing code parameter", func(t *testing.T) {
		server, callbackURL, _ := startTestServer(t)

		go func() {
			time.Sleep(50 * time.Millisecond)
			resp, err := http.Get(callbackURL + "?state=expected-state")
			if err == nil {
				resp.Body.Close()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := server.WaitForCallback(ctx, "expected-state")
		var missing *MissingParameterError
		if !errors.As(err, &missing) {
			t.Fatalf("expected *MissingParameterError, got %v", err)
		}
		if missing.Name != "code" {
			t.Errorf("expected missing 'code', got %q", missing.Name)
		}
	})

	t.Run("surfaces a provider denial", func(t *testing.T) {
		server, callbackURL, _ := startTestServer(t)

		go func() {
			time.Sleep(50 * time.Millisecond)
			resp, err := http.Get(callbackURL + "?error=access_denied&error_description=user+said+no")
			if err == nil {
				resp.Body.Close()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := server.WaitForCallback(ctx, "expected-state")
		var denial *AuthorizationError
		if !errors.As(err, &denial) {
			t.Fatalf("expected *AuthorizationError, got %v", err)
		}
		if denial.Code != "access_denied" {
			t.Errorf("expected code 'access_denied', got %q", denial.Code)
		}
	})

	t.Run("times out when no callback arrives", func(t *testing.T) {
		server, _, _ := startTestServer(t)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := server.WaitForCallback(ctx, "expected-state")
		if !errors.Is(err, ErrCallbackTimeout) {
			t.Fatalf("expected ErrCallbackTimeout, got %v", err)
		}
	})

	t.Run("tears down on caller cancellation", func(t *testing.T) {
		server := NewCallbackServer(0, "/callback")
		ctx, cancel := context.WithCancel(context.Background())
		defer server.Stop()

		if _, err := server.Start(ctx); err != nil {
			cancel()
			t.Fatalf("Failed to start callback server: %v", err)
		}

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		_, err := server.WaitForCallback(ctx, "expected-state")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestCallbackServer_SecondRequestRejected(t *testing.T) {
	server, callbackURL, _ := startTestServer(t)

	resp1, err := http.Get(callbackURL + "?code=first&state=s")
	if err != nil {
		t.Fatalf("first callback request failed: %v", err)
	}
	io.Copy(io.Discard, resp1.Body)
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for first callback, got %d", resp1.StatusCode)
	}

	resp2, err := http.Get(callbackURL + "?code=second&state=s")
	if err != nil {
		t.Fatalf("second callback request failed: %v", err)
	}
	io.Copy(io.Discard, resp2.Body)
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for second callback, got %d", resp2.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code, err := server.WaitForCallback(ctx, "s")
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}
	if code != "first" {
		t.Errorf("expected the first code to win, got %q", code)
	}
}

func TestCallbackServer_PortReleasedAfterTimeout(t *testing.T) {
	server := NewCallbackServer(0, "/callback")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := server.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	port := server.Port()

	if _, err := server.WaitForCallback(ctx, "s"); !errors.Is(err, ErrCallbackTimeout) {
		t.Fatalf("expected ErrCallbackTimeout, got %v", err)
	}
	server.Stop()

	// The socket must be free again for the next attempt.
	retry := NewCallbackServer(port, "/callback")
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	if _, err := retry.Start(ctx2); err != nil {
		t.Fatalf("port %d not released after teardown: %v", port, err)
	}
	retry.Stop()
}
