// Command gdrive-auth obtains the Google Drive refresh token the archive
// needs when STORAGE_PROVIDER=gdrive. Run it once on a machine with a
// browser and copy the token into GDRIVE_REFRESH_TOKEN.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"

	"sdbooth/internal/config"
	"sdbooth/internal/pkg/logger"
)

const authTimeout = 3 * time.Minute

func main() {
	log := logger.New(logger.Config{Level: "info", Format: "text", ServiceName: "gdrive-auth"})

	sc, err := config.LoadStorage()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}
	if sc.GDriveClientID == "" || sc.GDriveClientSecret == "" {
		log.Error("GDRIVE_CLIENT_ID and GDRIVE_CLIENT_SECRET are required")
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.LogFatal("cannot open callback listener", err)
	}
	defer ln.Close()

	conf := &oauth2.Config{
		ClientID:     sc.GDriveClientID,
		ClientSecret: sc.GDriveClientSecret,
		Endpoint:     google.Endpoint,
		// drive.file only: the booth touches nothing it did not upload.
		Scopes:      []string{drive.DriveFileScope},
		RedirectURL: fmt.Sprintf("http://127.0.0.1:%d/callback", ln.Addr().(*net.TCPAddr).Port),
	}

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	tok, err := authorize(ctx, conf, ln, func(authURL string) {
		fmt.Printf("\nOpen this URL in your browser:\n\n%s\n\n", authURL)
		fmt.Println("Waiting for the redirect on", conf.RedirectURL)
	})
	if err != nil {
		log.LogFatal("authorization failed", err)
	}

	// Google omits the refresh token when the app was already authorized
	// without prompt=consent.
	if strings.TrimSpace(tok.RefreshToken) == "" {
		fmt.Println("\nNo refresh_token returned.")
		fmt.Println("Revoke the app at https://myaccount.google.com/permissions and run this again.")
		os.Exit(1)
	}

	fmt.Println("\nGDRIVE_REFRESH_TOKEN=" + tok.RefreshToken)
}

// authorize serves the OAuth callback on ln until a code arrives, then
// exchanges it for a token.
func authorize(ctx context.Context, conf *oauth2.Config, ln net.Listener, show func(string)) (*oauth2.Token, error) {
	state := randomState()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(state, codeCh, errCh))

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	show(conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")))

	select {
	case code := <-codeCh:
		return conf.Exchange(ctx, code)
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
}

func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	fail := func(w http.ResponseWriter, err error) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		select {
		case errCh <- err:
		default:
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			fail(w, fmt.Errorf("invalid state"))
			return
		}
		if e := q.Get("error"); e != "" {
			fail(w, fmt.Errorf("auth error: %s", e))
			return
		}
		code := q.Get("code")
		if code == "" {
			fail(w, fmt.Errorf("missing code"))
			return
		}

		fmt.Fprintln(w, "Done. You can close this window and return to the terminal.")
		select {
		case codeCh <- code:
		default:
		}
	})
}

func randomState() string {
	b := make([]byte, 18)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
