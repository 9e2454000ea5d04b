package voicesession

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// TokenRequest carries the parameters for minting a room access token.
type TokenRequest struct {
	BookID          string
	ParticipantName string
	Title           string
	Voice           string
}

// TokenResponse is the token issuer's reply. Token and URL are required;
// the remaining fields are informational.
type TokenResponse struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	Room     string `json:"room,omitempty"`
	Identity string `json:"identity,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// TokenIssuer mints short-lived access tokens for the voice room.
type TokenIssuer interface {
	IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error)
}

// HTTPTokenIssuer requests tokens from the backend's /engage/token endpoint.
type HTTPTokenIssuer struct {
	// BaseURL is the backend base URL, e.g. "https://api.example.com".
	BaseURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// IssueToken performs GET /engage/token?book_id=&participant_name=&title=&voice=.
func (i *HTTPTokenIssuer) IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	client := i.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	name := req.ParticipantName
	if name == "" {
		name = "user-" + uuid.New().String()[:8]
	}

	q := url.Values{}
	q.Set("book_id", req.BookID)
	q.Set("participant_name", name)
	if req.Title != "" {
		q.Set("title", req.Title)
	}
	if req.Voice != "" {
		q.Set("voice", req.Voice)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, i.BaseURL+"/engage/token?"+q.Encode(), nil)
	if err != nil {
		return nil, &TransportError{Op: "token request", Err: err}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "token request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &TransportError{
			Op:  "token request",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, body),
		}
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, &TransportError{Op: "token decode", Err: err}
	}
	if tok.Token == "" || tok.URL == "" {
		return nil, &TransportError{Op: "token decode", Err: fmt.Errorf("incomplete response: token or url missing")}
	}
	return &tok, nil
}
