package oauth

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultCallbackPort is used when the redirect URI carries no port.
const DefaultCallbackPort = 8080

const callbackSuccessHTML = `<!DOCTYPE html>
<html>
<head><title>SmartThings Authorization Successful</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
  <h1>Authorization successful</h1>
  <p>SmartThings MCP has been authorized.</p>
  <p>You can close this window and return to your terminal.</p>
</body>
</html>`

const callbackErrorHTML = `<!DOCTYPE html>
<html>
<head><title>SmartThings Authorization Failed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
  <h1>Authorization failed</h1>
  <p>{{.Error}}{{if .Description}}: {{.Description}}{{end}}</p>
  <p>Return to your terminal and try again.</p>
</body>
</html>`

// CallbackResult is what the authorization server delivered to the redirect.
type CallbackResult struct {
	// Code is the authorization code on success.
	Code string

	// State is echoed back for verification against the original request.
	State string

	// Error and ErrorDescription are set when authorization failed.
	Error            string
	ErrorDescription string
}

// IsError reports whether the callback represents a failed authorization.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer is a temporary local HTTP server that receives a single
// OAuth callback and then shuts down.
type CallbackServer struct {
	port     int
	server   *http.Server
	listener net.Listener
	resultCh chan *CallbackResult
	errorCh  chan error
	once     sync.Once
	baseURL  string
}

// NewCallbackServer creates a callback server on the given port.
func NewCallbackServer(port int) *CallbackServer {
	if port == 0 {
		port = DefaultCallbackPort
	}
	return &CallbackServer{
		port:     port,
		resultCh: make(chan *CallbackResult, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start begins listening for the callback. The server stops when the context
// is cancelled. Returns the redirect URI to embed in the authorization URL.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.baseURL = fmt.Sprintf("http://localhost:%d", s.port)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
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

	return s.baseURL + "/callback", nil
}

// WaitForCallback blocks until the callback arrives, the server fails, or the
// context is cancelled.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

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

// processCallback runs exactly once, guarded by sync.Once.
func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if result.IsError() {
		tmpl := template.Must(template.New("error").Parse(callbackErrorHTML))
		_ = tmpl.Execute(w, map[string]string{
			"Error":       result.Error,
			"Description": result.ErrorDescription,
		})
	} else {
		_, _ = fmt.Fprint(w, callbackSuccessHTML)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	// Give the response time to reach the browser before shutting down.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Port returns the port the server is listening on.
func (s *CallbackServer) Port() int {
	return s.port
}
