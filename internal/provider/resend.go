package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultResendBaseURL = "https://api.resend.com"
	defaultResendTimeout = 10 * time.Second
)

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// ResendMailer sends email through the Resend HTTP API.
type ResendMailer struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

func NewResendMailer(baseURL, apiKey string) (*ResendMailer, error) {
	client := resty.New()
	client.SetTimeout(defaultResendTimeout)
	client.SetRetryCount(0)

	return NewResendMailerWithClient(baseURL, apiKey, client)
}

func NewResendMailerWithClient(baseURL, apiKey string, client *resty.Client) (*ResendMailer, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		trimmedURL = defaultResendBaseURL
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid resend api url: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultResendTimeout)
	}
	client.SetRetryCount(0)

	return &ResendMailer{
		client:  client,
		baseURL: trimmedURL,
		apiKey:  strings.TrimSpace(apiKey),
	}, nil
}

func (m *ResendMailer) Name() string { return "resend" }

func (m *ResendMailer) Send(ctx context.Context, email Email) (*SendResult, error) {
	if m == nil || m.client == nil {
		return nil, fmt.Errorf("mailer is not initialized")
	}
	if err := email.Validate(); err != nil {
		return nil, &ProviderError{Message: "invalid email", Cause: err}
	}

	var body resendResponse
	response, err := m.client.R().
		SetContext(ctx).
		SetAuthToken(m.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(resendRequest{
			From:    email.From,
			To:      []string{email.To},
			Subject: email.Subject,
			HTML:    email.HTML,
		}).
		SetResult(&body).
		Post(m.baseURL + "/emails")
	if err != nil {
		return nil, &ProviderError{
			Message:   "resend request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "resend returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		messageID := strings.TrimSpace(body.ID)
		if messageID == "" {
			messageID = headerMessageID(response)
		}
		return &SendResult{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageID,
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("resend returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func headerMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
