package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// FunctionMailer invokes a named server-side function over HTTP with a JSON
// body to deliver the welcome email. The call result is checked and surfaced,
// but delivery is otherwise fire-and-forget.
type FunctionMailer struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewFunctionMailer constructs a mailer against the given function endpoint.
// An empty endpoint disables welcome mail and yields a nil Mailer.
func NewFunctionMailer(endpoint string, logger *zap.Logger) Mailer {
	if endpoint == "" {
		return nil
	}
	if logger == nil {
		logger = noOpLogger
	}
	return &FunctionMailer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

type welcomePayload struct {
	Email string `json:"email"`
}

// SendWelcome posts the subscriber's address to the mail function.
func (m *FunctionMailer) SendWelcome(ctx context.Context, email string) error {
	body, err := json.Marshal(welcomePayload{Email: email})
	if err != nil {
		return fmt.Errorf("newsletter: encode welcome payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("newsletter: build welcome request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := m.client.Do(request)
	if err != nil {
		return fmt.Errorf("newsletter: invoke mail function: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("newsletter: mail function returned status %d", response.StatusCode)
	}

	m.logger.Debug("welcome mail dispatched", zap.String("email", email))
	return nil
}
