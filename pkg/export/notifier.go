package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Notifier delivers an outcome payload to the external endpoint.
type Notifier interface {
	Notify(ctx context.Context, outcome Outcome) error
}

// HTTPNotifier POSTs the outcome as JSON. Transport failures and 5xx
// responses are transient; 4xx responses are permanent since resending the
// same payload cannot succeed.
type HTTPNotifier struct {
	endpoint string
	client   *http.Client
}

// NotifierAuth configures optional OAuth2 client-credentials auth for the
// outbound requests. Zero value means unauthenticated.
type NotifierAuth struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

func NewHTTPNotifier(endpoint string, auth NotifierAuth) *HTTPNotifier {
	client := &http.Client{Timeout: 15 * time.Second}
	if auth.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			TokenURL:     auth.TokenURL,
		}
		client = cc.Client(context.Background())
		client.Timeout = 15 * time.Second
	}
	return &HTTPNotifier{endpoint: endpoint, client: client}
}

func (n *HTTPNotifier) Notify(ctx context.Context, outcome Outcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return Permanent(KindNotify, fmt.Errorf("marshaling outcome: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return Permanent(KindNotify, fmt.Errorf("building notification request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return Transient(KindNotify, fmt.Errorf("sending notification: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("notification endpoint responded %d: %s", resp.StatusCode, detail)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return Permanent(KindNotify, err)
	}
	return Transient(KindNotify, err)
}

// PublicFileURL derives the download URL advertised in the notification from
// the endpoint base and the stored artifact reference.
func PublicFileURL(endpoint, artifactReference string) string {
	if artifactReference == "" {
		return ""
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	base.Path = path.Join(base.Path, "exports", path.Base(artifactReference))
	return base.String()
}
