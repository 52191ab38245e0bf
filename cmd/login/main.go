// Command login acquires a Code Assist OAuth credential for the relais
// gateway and stores it in the configured credentials file.
//
// It runs the authorization-code flow with PKCE against Google's OAuth
// endpoint: a local loopback listener receives the redirect, the code is
// exchanged for tokens, and the backend project is resolved and persisted
// alongside the credential.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"

	"github.com/mbertram/relais/pkg/auth"
	"github.com/mbertram/relais/pkg/codeassist"
	"github.com/mbertram/relais/pkg/config"
)

const callbackPath = "/oauth/callback"

func main() {
	configPath := flag.String("config", "", "path to config file (default: discover)")
	logout := flag.Bool("logout", false, "clear the stored credential and exit")
	timeout := flag.Duration("timeout", 5*time.Minute, "how long to wait for the browser redirect")
	noBrowser := flag.Bool("no-browser", false, "print the authorization URL instead of opening a browser")
	flag.Parse()

	if err := run(*configPath, *logout, *timeout, *noBrowser); err != nil {
		slog.Error("login failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logout bool, timeout time.Duration, noBrowser bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store := auth.NewFileStore(cfg.Auth.CredentialsFile)
	manager := auth.NewManager(store)
	if err := manager.Load(); err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	if logout {
		if err := manager.Logout(); err != nil {
			return fmt.Errorf("clearing credential: %w", err)
		}
		fmt.Println("Credential cleared.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cred, err := authorize(ctx, noBrowser)
	if err != nil {
		return err
	}

	if email, err := auth.FetchUserEmail(ctx, http.DefaultClient, cred.AccessToken); err == nil {
		cred.Email = email
	} else {
		slog.Warn("could not fetch account email", "error", err.Error())
	}

	if err := manager.SetCredential(cred); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}

	client := codeassist.NewClient(manager, codeassist.NewDispatcher(nil, nil))
	project := cfg.Auth.ProjectID
	if project == "" {
		project, err = client.ResolveProject(ctx)
		if err != nil {
			return fmt.Errorf("resolving project: %w", err)
		}
	}
	if err := manager.SetProjectID(project); err != nil {
		return fmt.Errorf("persisting project: %w", err)
	}

	if cred.Email != "" {
		fmt.Printf("Logged in as %s (project %s).\n", cred.Email, project)
	} else {
		fmt.Printf("Logged in (project %s).\n", project)
	}
	fmt.Printf("Credential stored at %s.\n", cfg.Auth.CredentialsFile)
	return nil
}

// authorize runs the authorization-code flow: it listens on a loopback
// port, sends the user to the consent page, and exchanges the returned
// code for a credential.
func authorize(ctx context.Context, noBrowser bool) (*auth.Credential, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting callback listener: %w", err)
	}
	defer ln.Close()

	redirectURL := fmt.Sprintf("http://%s%s", ln.Addr().String(), callbackPath)
	oauthCfg := auth.OAuthConfig(redirectURL)
	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()

	type callbackResult struct {
		code string
		err  error
	}
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: errors.New("oauth state mismatch")}
		case q.Get("error") != "":
			http.Error(w, "authorization denied", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("authorization denied: %s", q.Get("error"))}
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			results <- callbackResult{err: errors.New("redirect carried no authorization code")}
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>Login complete. You can close this tab.</body></html>")
			results <- callbackResult{code: q.Get("code")}
		}
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Close()

	url := auth.AuthCodeURL(oauthCfg, state, verifier)
	fmt.Printf("Open the following URL to authorize:\n\n  %s\n\n", url)
	if !noBrowser {
		openBrowser(url)
	}

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		return auth.Exchange(ctx, oauthCfg, res.code, verifier)
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
}

// openBrowser makes a best-effort attempt to open the URL in the
// default browser. Failures are silent; the URL is already printed.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
