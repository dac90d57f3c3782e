package lastfm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

// DefaultCallbackAddr is where the local authorization callback listens.
const DefaultCallbackAddr = "127.0.0.1:9847"

// ErrNoToken is returned when the callback arrived without a token.
var ErrNoToken = errors.New("no token received")

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>lineup - Last.fm</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>%s</h1>
<p>%s</p>
</body>
</html>`

// AuthServer receives the token Last.fm redirects to after authorization.
type AuthServer struct {
	server   *http.Server
	listener net.Listener
	tokens   chan string
	done     chan struct{}
}

// StartAuthServer listens on addr and serves /callback.
func StartAuthServer(addr string) (*AuthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	as := &AuthServer{
		listener: listener,
		tokens:   make(chan string, 1),
		done:     make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", as.handleCallback)
	as.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = as.server.Serve(listener)
		close(as.done)
	}()
	return as, nil
}

func (as *AuthServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	w.Header().Set("Content-Type", "text/html")
	if token != "" {
		fmt.Fprintf(w, callbackPage, "Authorization Successful", "You can close this window.")
	} else {
		fmt.Fprintf(w, callbackPage, "Authorization Failed", "No token received. Please try again.")
	}

	select {
	case as.tokens <- token:
	default:
	}
}

// CallbackURL is the URL to pass as the Last.fm callback.
func (as *AuthServer) CallbackURL() string {
	return "http://" + as.listener.Addr().String() + "/callback"
}

// WaitForToken blocks until the callback fires or ctx is done.
func (as *AuthServer) WaitForToken(ctx context.Context) (string, error) {
	select {
	case token := <-as.tokens:
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Shutdown stops the auth server.
func (as *AuthServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = as.server.Shutdown(ctx)
	<-as.done
}

// OpenBrowser opens the given URL in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
