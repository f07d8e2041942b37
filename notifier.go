package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
)

// LogNotifier writes one-time codes to the logger instead of delivering
// them. Default when no real notifier is configured; useful in development
// and tests, never in production.
type LogNotifier struct {
	Logger Logger
}

func (n LogNotifier) SendOneTimeCode(ctx context.Context, address, code, subject string) error {
	logger := n.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("one-time code issued", "to", address, "subject", subject, "code", code)
	return nil
}

// ResendNotifier delivers one-time codes by email through the Resend HTTP
// API. Satisfies Notifier.
type ResendNotifier struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
	logger  Logger
}

func NewResendNotifier(apiKey, from string) (*ResendNotifier, error) {
	if apiKey == "" {
		return nil, errors.New("resend API key is required", errors.CategoryValidation)
	}
	if from == "" {
		return nil, errors.New("resend sender address is required", errors.CategoryValidation)
	}

	return &ResendNotifier{
		apiKey:  apiKey,
		from:    from,
		baseURL: "https://api.resend.com",
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: defLogger{},
	}, nil
}

func (n *ResendNotifier) WithLogger(logger Logger) *ResendNotifier {
	n.logger = logger
	return n
}

// WithBaseURL points the notifier at a different endpoint, e.g. a test server.
func (n *ResendNotifier) WithBaseURL(url string) *ResendNotifier {
	n.baseURL = url
	return n
}

type resendSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (n *ResendNotifier) SendOneTimeCode(ctx context.Context, address, code, subject string) error {
	payload := resendSendRequest{
		From:    n.from,
		To:      []string{address},
		Subject: subject,
		HTML: fmt.Sprintf(
			"<p>Your verification code is:</p><p><strong>%s</strong></p><p>If you did not request this code you can ignore this message.</p>",
			code,
		),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode email payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/emails", bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build email request")
	}

	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "email provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		n.logger.Error("ResendNotifier delivery rejected", "status", resp.StatusCode, "body", string(detail))
		return errors.New("email provider rejected the message", errors.CategoryOperation).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	return nil
}
