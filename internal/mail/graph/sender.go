package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Rrens/oneonone-bot/internal/config"
	"github.com/Rrens/oneonone-bot/internal/mail"
)

const graphScope = "https://graph.microsoft.com/.default"

// Sender sends mail through Microsoft Graph on behalf of one mailbox
type Sender struct {
	sender  string
	baseURL string
	tokens  oauth2.TokenSource
	client  *http.Client
}

// NewSender creates a Graph sender. A static access token is used when
// configured, otherwise a client-credentials token source for the tenant.
func NewSender(ctx context.Context, cfg config.MailConfig) (*Sender, error) {
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("graph sender requires a sender mailbox")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	var tokens oauth2.TokenSource
	switch {
	case cfg.AccessToken != "":
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	case cfg.ClientID != "" && cfg.ClientSecret != "" && (cfg.TenantID != "" || cfg.TokenURL != ""):
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID))
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{graphScope},
		}
		// Token refreshes go through the timed client, not http.DefaultClient.
		tokens = cc.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, client))
	default:
		return nil, fmt.Errorf("graph sender requires an access token or client credentials")
	}

	return NewSenderWithTokens(cfg.SenderEmail, cfg.BaseURL, tokens, client), nil
}

// NewSenderWithTokens creates a sender from an explicit token source
func NewSenderWithTokens(senderEmail, baseURL string, tokens oauth2.TokenSource, client *http.Client) *Sender {
	return &Sender{
		sender:  senderEmail,
		baseURL: baseURL,
		tokens:  tokens,
		client:  client,
	}
}

type sendMailRequest struct {
	Message         message `json:"message"`
	SaveToSentItems string  `json:"saveToSentItems"`
}

type message struct {
	Subject      string      `json:"subject"`
	Body         itemBody    `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

// Send posts a plain-text message. Graph answers 202 Accepted on success.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return mail.ErrNoRecipient
	}

	payload, err := json.Marshal(sendMailRequest{
		Message: message{
			Subject:      subject,
			Body:         itemBody{ContentType: "Text", Content: body},
			ToRecipients: []recipient{{EmailAddress: emailAddress{Address: to}}},
		},
		SaveToSentItems: "true",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	token, err := s.token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get graph token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", s.baseURL, url.PathEscape(s.sender))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	return nil
}

// token fetches a token but gives up when ctx is done; TokenSource itself
// takes no context.
func (s *Sender) token(ctx context.Context) (*oauth2.Token, error) {
	type result struct {
		token *oauth2.Token
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		token, err := s.tokens.Token()
		ch <- result{token, err}
	}()

	select {
	case r := <-ch:
		return r.token, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
