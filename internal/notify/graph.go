package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gemba-ops/shopsync/internal/config"
	"github.com/gemba-ops/shopsync/internal/resilience"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Graph sends run summaries by email through the Microsoft Graph sendMail
// endpoint, authenticating with client credentials.
type Graph struct {
	cfg    config.EmailConfig
	client *http.Client

	// GraphURL is overridable in tests.
	GraphURL string

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewGraph validates the email settings and builds the notifier.
func NewGraph(cfg config.EmailConfig) (*Graph, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, eris.New("notify: email mode requires tenant_id, client_id and client_secret")
	}
	if cfg.Sender == "" || len(cfg.Recipients) == 0 {
		return nil, eris.New("notify: email mode requires sender and recipients")
	}
	return &Graph{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		GraphURL: graphBaseURL,
	}, nil
}

type graphMessage struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		ToRecipients []graphRecipient `json:"toRecipients"`
	} `json:"message"`
	SaveToSentItems bool `json:"saveToSentItems"`
}

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

func (g *Graph) Notify(ctx context.Context, s Summary) error {
	token, err := g.accessToken(ctx)
	if err != nil {
		return err
	}

	var msg graphMessage
	msg.Message.Subject = s.Subject()
	msg.Message.Body.ContentType = "Text"
	msg.Message.Body.Content = s.Body()
	for _, addr := range g.cfg.Recipients {
		var r graphRecipient
		r.EmailAddress.Address = addr
		msg.Message.ToRecipients = append(msg.Message.ToRecipients, r)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "notify: marshal message")
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", g.GraphURL, url.PathEscape(g.cfg.Sender))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create sendMail request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: sendMail request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("notify: sendMail returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	zap.L().Info("run summary emailed",
		zap.String("component", "notify"),
		zap.String("subject", s.Subject()),
		zap.Int("recipients", len(g.cfg.Recipients)),
	)
	return nil
}

// accessToken returns a cached client-credentials token, refreshing it when
// within a minute of expiry.
func (g *Graph) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && time.Until(g.expiry) > time.Minute {
		return g.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token",
		strings.TrimRight(g.cfg.Authority, "/"), url.PathEscape(g.cfg.TenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "notify: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "notify: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("notify: token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", eris.Wrap(err, "notify: decode token response")
	}
	if body.AccessToken == "" {
		return "", eris.New("notify: token response carried no access_token")
	}

	g.token = body.AccessToken
	g.expiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return g.token, nil
}
