package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"purchasing/internal/cli"
	"purchasing/internal/config"
	gsheet "purchasing/internal/sheets/google"
)

var (
	authPort    string
	authOut     string
	authTimeout time.Duration
)

var sheetsAuthCmd = &cobra.Command{
	Use:   "sheets-auth",
	Short: "Authorize the sheets backend as a Google user and save the token",
	Long: `sheets-auth runs the OAuth consent flow for the client in
GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE and saves the resulting
token for GOOGLE_OAUTH_TOKEN_FILE.

The OAuth client must list http://localhost:<port>/callback as an
authorized redirect URI.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		cfg := config.Load()
		creds := gsheet.OAuthCredentials{ClientJSON: cfg.GoogleOAuthClientJSON, ClientFile: cfg.GoogleOAuthClientFile}
		oauthCfg, err := gsheet.OAuthConfig(creds)
		if err != nil {
			return err
		}
		out := authOut
		if out == "" {
			out = cfg.GoogleOAuthTokenFile
		}
		if out == "" {
			out = "token.json"
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
		defer cancel()
		tok, err := authorize(ctx, cmd, oauthCfg)
		if err != nil {
			return err
		}
		if err := gsheet.SaveToken(out, tok); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", out)
		return nil
	},
}

// authorize serves the redirect on localhost and exchanges the returned code.
func authorize(ctx context.Context, cmd *cobra.Command, oauthCfg *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "localhost:"+authPort)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}
	oauthCfg.RedirectURL = "http://localhost:" + authPort + "/callback"
	state := uuid.NewString()

	type result struct {
		code string
		err  error
	}
	resCh := make(chan result, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res result
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("oauth error: %s", q.Get("error"))
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
		case q.Get("state") != state:
			res.err = errors.New("oauth state mismatch")
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			res.code = q.Get("code")
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
		}
		select {
		case resCh <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n", oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case res := <-resCh:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := oauthCfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.New("authorization timed out")
		}
		return nil, ctx.Err()
	}
}

func init() {
	sheetsAuthCmd.Flags().StringVar(&authPort, "port", "8085", "local port for the OAuth redirect")
	sheetsAuthCmd.Flags().StringVar(&authOut, "out", "", "token file (default: GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	sheetsAuthCmd.Flags().DurationVar(&authTimeout, "timeout", 5*time.Minute, "how long to wait for consent")
	rootCmd.AddCommand(sheetsAuthCmd)
}
