// Package email sends transactional mail through the Resend HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"pastel/internal/delivery"
)

const apiURL = "https://api.resend.com/emails"

type Resend struct {
	APIKey string
	From   string
	// AppBaseURL is linked from the email footer.
	AppBaseURL string

	Client *http.Client
}

func NewResend(apiKey, from, appBaseURL string) *Resend {
	return &Resend{
		APIKey:     apiKey,
		From:       from,
		AppBaseURL: appBaseURL,
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (r *Resend) Send(ctx context.Context, n delivery.Notification) error {
	payload := sendRequest{
		From:    r.From,
		To:      []string{n.To.Email},
		Subject: fmt.Sprintf("Your Time Capsule %q Has Arrived!", n.Capsule.Title),
		HTML:    r.renderBody(n),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out sendResponse
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &out) == nil && out.Message != "" {
			return fmt.Errorf("resend: %s (status %d)", out.Message, resp.StatusCode)
		}
		return fmt.Errorf("resend: status %d", resp.StatusCode)
	}
	return nil
}

func (r *Resend) renderBody(n delivery.Notification) string {
	c := n.Capsule

	var b strings.Builder
	b.WriteString(`<div style="max-width:600px;margin:0 auto;font-family:sans-serif">`)
	b.WriteString(`<h1>Your Time Capsule Has Arrived!</h1>`)
	fmt.Fprintf(&b, `<p>Hello %s!</p>`, html.EscapeString(n.To.Name))
	fmt.Fprintf(&b, `<p>Your time capsule "<strong>%s</strong>" that you created %s is ready to be opened.</p>`,
		html.EscapeString(c.Title), timeAgo(c.CreatedAt))
	fmt.Fprintf(&b, `<p style="color:#666;font-size:14px">Created on %s</p>`, c.CreatedAt.Format("January 2, 2006"))
	fmt.Fprintf(&b, `<div style="white-space:pre-wrap;background:#f8f9fa;padding:20px;border-radius:8px">%s</div>`,
		html.EscapeString(c.Content))
	if len(c.Images) > 0 {
		fmt.Fprintf(&b, `<p>Your capsule contains %d image(s). View them in your dashboard.</p>`, len(c.Images))
	}
	if r.AppBaseURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s/dashboard/capsules/%d">Open in Pastel</a></p>`, r.AppBaseURL, c.ID)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	days := int(d.Hours() / 24)
	switch {
	case days >= 365:
		return plural(days/365, "year")
	case days >= 30:
		return plural(days/30, "month")
	case days >= 1:
		return plural(days, "day")
	}
	return "earlier today"
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
