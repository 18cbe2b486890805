package auth

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

// callbackResult carries the parsed redirect parameters from the HTTP
// handler to the waiting authentication attempt.
type callbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackServer is a temporary loopback HTTP server that captures a single
// OAuth2 redirect. It starts, waits for exactly one callback, then shuts
// down; the socket is released on success, timeout and cancellation alike so
// a later attempt can bind the same port.
type CallbackServer struct {
	port     int
	path     string
	server   *http.Server
	listener net.Listener
	resultCh chan *callbackResult
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
	baseURL  string
}

// NewCallbackServer creates a callback server for the given loopback port
// and redirect path. Port 0 binds an ephemeral port.
func NewCallbackServer(port int, path string) *CallbackServer {
	if path == "" {
		path = "/callback"
	}
	return &CallbackServer{
		port:     port,
		path:     path,
		resultCh: make(chan *callbackResult, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start binds the listener and begins serving. The server stops itself when
// ctx is cancelled. Returns the effective redirect URI, which differs from
// the configured one only when an ephemeral port was requested.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", &BindError{Addr: addr, Err: err}
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.baseURL = fmt.Sprintf("http://127.0.0.1:%d", s.port)

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.baseURL + s.path, nil
}

// WaitForCallback blocks until the redirect arrives, the context expires or
// the server fails, and returns the authorization code.
//
// The state comparison is the CSRF check: a mismatch returns
// ErrStateMismatch and the caller must abort the attempt without contacting
// the token endpoint.
func (s *CallbackServer) WaitForCallback(ctx context.Context, expectedState string) (string, error) {
	select {
	case result := <-s.resultCh:
		return s.validateResult(result, expectedState)
	case err := <-s.errorCh:
		return "", fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrCallbackTimeout
		}
		return "", ctx.Err()
	}
}

func (s *CallbackServer) validateResult(result *callbackResult, expectedState string) (string, error) {
	if result.Error != "" {
		return "", &AuthorizationError{Code: result.Error, Description: result.ErrorDescription}
	}
	if result.Code == "" {
		return "", &MissingParameterError{Name: "code"}
	}
	if result.State == "" {
		return "", &MissingParameterError{Name: "state"}
	}
	if subtle.ConstantTimeCompare([]byte(result.State), []byte(expectedState)) != 1 {
		slog.Warn("OAuth state mismatch detected, aborting authentication attempt",
			"expected_state_len", len(expectedState),
			"received_state_len", len(result.State),
		)
		return "", ErrStateMismatch
	}
	return result.Code, nil
}

// handleCallback processes the redirect. Only the first request is honored;
// anything after that gets a 400.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	result := &callbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	// The code is already captured at this point, so a failed write is
	// logged and otherwise ignored.
	var tmpl *template.Template
	var data any
	if result.Error != "" || result.Code == "" {
		tmpl = template.Must(template.New("error").Parse(callbackErrorHTML))
		data = map[string]string{
			"Error":       result.Error,
			"Description": result.ErrorDescription,
		}
	} else {
		tmpl = template.Must(template.New("success").Parse(callbackSuccessHTML))
		data = map[string]string{}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		slog.Debug("Failed to write callback response page", "error", err.Error())
	}

	select {
	case s.resultCh <- result:
	default:
	}

	// Give the response time to flush before tearing the server down.
	go func() {
		time.Sleep(time.Second)
		s.Stop()
	}()
}

// Stop shuts the server down and releases the socket. Safe to call more
// than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Port returns the bound port, which differs from the requested one when an
// ephemeral port was used.
func (s *CallbackServer) Port() int {
	return s.port
}
