// Package main provides the Spotify authentication tool.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const authState = "shufflebox-auth-state"

var (
	app          = kingpin.New("shufflebox-auth", "Spotify authentication tool for shufflebox")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserModifyPlaybackState,
			spotifyauth.ScopeUserReadPlaybackState,
			spotifyauth.ScopePlaylistReadPrivate,
		),
	)

	tokens := make(chan *oauth2.Token, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", callbackHandler(auth, tokens))

	server := &http.Server{Addr: fmt.Sprintf(":%d", *port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start callback server: %v", err)
		}
	}()

	fmt.Println("Visit the following URL to authorize shufflebox:")
	fmt.Println()
	fmt.Println(auth.AuthURL(authState))
	fmt.Println()
	fmt.Println("Waiting for authorization...")

	token := <-tokens

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown callback server: %v", err)
	}

	printToken(token)
}

func printToken(token *oauth2.Token) {
	fmt.Println()
	fmt.Println("=== Authorization Successful ===")
	fmt.Println()
	fmt.Println("Add this to your config yaml:")
	fmt.Println()
	fmt.Println("spotify:")
	fmt.Printf("  refresh_token: %q\n", token.RefreshToken)
	fmt.Println()
	fmt.Println("Or set it as an environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=%q\n", token.RefreshToken)
}

func callbackHandler(auth *spotifyauth.Authenticator, tokens chan<- *oauth2.Token) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st := r.FormValue("state"); st != authState {
			http.Error(w, "State mismatch", http.StatusForbidden)
			log.Printf("State mismatch: %s", st)
			return
		}

		token, err := auth.Token(r.Context(), authState, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusForbidden)
			log.Printf("Failed to get token: %v", err)
			return
		}

		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>shufflebox - Authorization Complete</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 20vh;">
  <h1>Authorization complete</h1>
  <p>You can close this window and return to the terminal.</p>
</body>
</html>
`)

		tokens <- token
	}
}
