// Package mail sends transactional email for team invitations.
//
// Delivery is best-effort by contract: callers log a send failure and move
// on, they never roll back the operation that triggered the email.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tracklane/tracklane/internal/types"
)

// Mailer dispatches invitation email.
type Mailer interface {
	SendInvitation(ctx context.Context, inv *types.Invitation, team *types.Team, inviterName string) error
}

// Noop discards all mail. Used in tests and when no API key is configured.
type Noop struct{}

func (Noop) SendInvitation(context.Context, *types.Invitation, *types.Team, string) error {
	return nil
}

// ResendMailer sends email through the Resend HTTP API.
type ResendMailer struct {
	APIKey  string
	From    string
	BaseURL string // invitation links are built from this; optional
	HTTP    *http.Client
}

// NewResend returns a mailer that posts to api.resend.com.
func NewResend(apiKey, from, baseURL string) *ResendMailer {
	return &ResendMailer{
		APIKey:  apiKey,
		From:    from,
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

const resendEndpoint = "https://api.resend.com/emails"

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *ResendMailer) SendInvitation(ctx context.Context, inv *types.Invitation, team *types.Team, inviterName string) error {
	subject := fmt.Sprintf("%s invited you to join %s", inviterName, team.Name)
	html := fmt.Sprintf(
		`<p>%s has invited you to join the <strong>%s</strong> team as %s.</p>`+
			`<p>This invitation expires on %s.</p>`,
		inviterName, team.Name, string(inv.Role),
		inv.ExpiresAt.Format("January 2, 2006"),
	)
	if m.BaseURL != "" {
		html += fmt.Sprintf(`<p><a href="%s/invitations/%s">Accept invitation</a></p>`, m.BaseURL, inv.ID)
	}

	payload, err := json.Marshal(resendRequest{
		From:    m.From,
		To:      []string{inv.Email},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)

	client := m.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}
	return nil
}
