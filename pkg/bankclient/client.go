/**
 * @description
 * This package provides a client for the external bank-verification provider
 * used when linking an outside bank account. The provider is simulated in
 * this demo: the client speaks a small JSON API and the service degrades to
 * local verification when no provider is configured.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the bank-verification provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new bank-verification client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// VerificationRequest is the payload sent to the provider.
type VerificationRequest struct {
	RoutingNumber      string `json:"routing_number"`
	AccountNumberLast4 string `json:"account_number_last4"`
	AccountHolderName  string `json:"account_holder_name"`
}

// VerificationResponse is the provider's verdict on a linked account.
type VerificationResponse struct {
	Status string `json:"status"` // "verified" or "failed"
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse represents an error from the provider API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("bank provider error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown bank provider error"
}

// VerifyAccount asks the provider to verify ownership of an external account.
func (c *Client) VerifyAccount(ctx context.Context, reqBody VerificationRequest) (*VerificationResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/verifications", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && len(apiErr.Errors) > 0 {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("bank provider returned status %d", resp.StatusCode)
	}

	var verification VerificationResponse
	if err := json.Unmarshal(body, &verification); err != nil {
		return nil, fmt.Errorf("decode verification response: %w", err)
	}
	return &verification, nil
}
