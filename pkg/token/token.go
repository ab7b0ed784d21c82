// Package token implements both sides of the credential exchange: an
// HTTP client that fetches an ephemeral bearer token before a session
// starts, and the server handler that issues it.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/crumble-dev/crumble/pkg/core"
)

const defaultFetchTimeout = 10 * time.Second

// Client fetches a token from the credential endpoint.
type Client struct {
	// BaseURL of the token server, e.g. http://localhost:3000.
	BaseURL string

	// HTTPClient defaults to one with a 10s timeout.
	HTTPClient *http.Client
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// Fetch requests a token. Any non-2xx status or empty token is fatal
// to session start.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFetchTimeout}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", core.NewAcquisitionError("token", "build token request", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", core.NewAcquisitionError("token", "token request failed", err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(body.Error)
		if msg == "" {
			msg = fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)
		}
		return "", core.NewAcquisitionError("token", msg, nil)
	}
	if decodeErr != nil {
		return "", core.NewAcquisitionError("token", "decode token response", decodeErr)
	}
	if strings.TrimSpace(body.Token) == "" {
		return "", core.NewAcquisitionError("token", "token endpoint returned an empty token", nil)
	}
	return body.Token, nil
}

// Handler serves POST /token, returning the configured API key. The
// key is read per request via keyFn so the handler sees env changes
// without a restart.
func Handler(keyFn func() string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/token", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		key := strings.TrimSpace(keyFn())
		if key == "" {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(tokenResponse{Error: "GEMINI_API_KEY not set"})
			return
		}
		_ = json.NewEncoder(w).Encode(tokenResponse{Token: key})
	}).Methods(http.MethodPost)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodPost},
	}).Handler(r)
}
