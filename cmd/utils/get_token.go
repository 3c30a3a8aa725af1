// Command get_token runs the one-off consent flow that mints GMAIL_REFRESH_TOKEN.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/Matthias0x44/RyUnfair/internal/infrastructure/oauth"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const callbackAddr = "localhost:8090"

func main() {
	godotenv.Load()

	clientID, clientSecret := os.Getenv("GMAIL_CLIENT_ID"), os.Getenv("GMAIL_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		fmt.Fprintln(os.Stderr, "GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET must be set")
		os.Exit(1)
	}

	log := logger.NewLogger("info")
	defer log.Sync()

	o := oauth.NewGmailOAuth(clientID, clientSecret, "", log).
		WithRedirectURL("http://" + callbackAddr + "/oauth2callback")
	state := uuid.NewString()

	http.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		token, err := o.ExchangeCode(context.Background(), r.URL.Query().Get("code"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		js, err := oauth.TokenToJSON(token)
		if err == nil {
			fmt.Println(js)
		}
		fmt.Printf("\nGMAIL_REFRESH_TOKEN=%s\n\n", token.RefreshToken)

		fmt.Fprintf(w, "Authentication successful! You can close this window.")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		os.Exit(0)
	})

	fmt.Printf("Open this URL in your browser:\n%s\n", o.AuthURL(state))

	log.Fatal("Callback server stopped", "error", http.ListenAndServe(callbackAddr, nil))
}
