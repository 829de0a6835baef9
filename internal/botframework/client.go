package botframework

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Rrens/oneonone-bot/internal/config"
	"github.com/Rrens/oneonone-bot/internal/domain"
)

const defaultTimeout = 15 * time.Second

// Client calls the Bot Connector REST API of the channel a message came from
type Client struct {
	client *http.Client
}

var _ domain.IdentityResolver = (*Client)(nil)

// NewClient creates a connector client. Requests carry a client-credentials
// token for the bot registration; without an app ID they are sent
// unauthenticated, which is what the emulator expects.
func NewClient(ctx context.Context, cfg config.BotConfig) *Client {
	base := &http.Client{Timeout: defaultTimeout}
	if !cfg.AuthEnabled() {
		return NewClientWithHTTP(base)
	}

	tokenURL := cfg.TokenURL
	if cfg.TenantID != "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID))
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppPassword,
		TokenURL:     tokenURL,
		Scopes:       []string{cfg.Scope},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	authed := oauth2.NewClient(ctx, cc.TokenSource(ctx))
	authed.Timeout = defaultTimeout
	return NewClientWithHTTP(authed)
}

// NewClientWithHTTP creates a connector client on top of an existing HTTP client
func NewClientWithHTTP(client *http.Client) *Client {
	return &Client{client: client}
}

func conversationURL(ref domain.ChannelRef, parts ...string) (string, error) {
	if ref.ServiceURL == "" || ref.ConversationID == "" {
		return "", fmt.Errorf("channel reference is incomplete")
	}
	u := strings.TrimSuffix(ref.ServiceURL, "/") + "/v3/conversations/" + url.PathEscape(ref.ConversationID)
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u, nil
}

// Reply sends text back into the conversation of msg as a reply to its activity
func (c *Client) Reply(ctx context.Context, msg domain.InboundMessage, text string) error {
	ref := msg.Channel
	parts := []string{"activities"}
	if ref.ActivityID != "" {
		parts = append(parts, ref.ActivityID)
	}
	endpoint, err := conversationURL(ref, parts...)
	if err != nil {
		return err
	}

	reply := Activity{
		Type:         ActivityTypeMessage,
		From:         ChannelAccount{ID: ref.BotID, Name: ref.BotName},
		Recipient:    ChannelAccount{ID: msg.UserID, Name: msg.DisplayName},
		Conversation: ConversationAccount{ID: ref.ConversationID},
		Text:         text,
		TextFormat:   "plain",
		ReplyToID:    ref.ActivityID,
	}
	body, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reply request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("reply", resp)
	}
	return nil
}

// ResolveEmail looks up the sender in the conversation roster and returns
// their email, falling back to the user principal name.
func (c *Client) ResolveEmail(ctx context.Context, msg domain.InboundMessage) (string, error) {
	endpoint, err := conversationURL(msg.Channel, "members", msg.UserID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("member request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("member lookup", resp)
	}

	var member TeamsChannelAccount
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return "", fmt.Errorf("failed to decode member: %w", err)
	}

	if member.Email != "" {
		return member.Email, nil
	}
	return member.UserPrincipalName, nil
}

func statusError(op string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s returned status %d: %s", op, resp.StatusCode, bytes.TrimSpace(detail))
}
