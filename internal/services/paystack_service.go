package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/roadpass/booking-backend/internal/config"
	"github.com/roadpass/booking-backend/internal/models"
)

// GatewayStatus is the settlement state the gateway reports for a transaction
type GatewayStatus string

const (
	GatewayStatusSuccess GatewayStatus = "success"
	GatewayStatusFailed  GatewayStatus = "failed"
	GatewayStatusPending GatewayStatus = "pending"
)

// PaystackService integrates with the Paystack card/bank payment gateway.
// The gateway is authoritative for money movement and is only ever consulted
// through this adapter; client-supplied payment status is never trusted.
type PaystackService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// NewPaystackService creates a new PaystackService
func NewPaystackService(cfg *config.PaymentConfig, logger *logrus.Logger) *PaystackService {
	return &PaystackService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// InitializeTransactionParams contains the fields sent to the gateway when
// opening a transaction
type InitializeTransactionParams struct {
	Reference string
	Amount    int64 // kobo
	Email     string
	Name      string
}

// paystackInitializeRequest is the wire request for transaction initialize
type paystackInitializeRequest struct {
	Reference   string            `json:"reference"`
	Amount      int64             `json:"amount"`
	Email       string            `json:"email"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// paystackInitializeResponse is the wire response for transaction initialize
type paystackInitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// paystackVerifyResponse is the wire response for transaction verify
type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status          string `json:"status"` // "success", "failed", "abandoned", "ongoing"
		Reference       string `json:"reference"`
		Amount          int64  `json:"amount"`
		GatewayResponse string `json:"gateway_response"`
		Channel         string `json:"channel"`
	} `json:"data"`
}

// InitializeTransactionResponse is what the orchestrator needs back from a
// successful initialize call
type InitializeTransactionResponse struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyTransactionResponse maps the gateway's reported state onto the three
// outcomes the booking state machine understands
type VerifyTransactionResponse struct {
	Status          GatewayStatus
	Amount          int64
	GatewayResponse string
}

// InitializeTransaction opens a gateway transaction and returns the hosted
// payment page URL. Called only after seats are already exclusively reserved,
// so a failure here costs nothing but a rollback.
func (s *PaystackService) InitializeTransaction(params *InitializeTransactionParams) (*InitializeTransactionResponse, error) {
	if !s.IsConfigured() {
		return nil, &models.GatewayError{Op: "initialize", Err: fmt.Errorf("payment gateway not configured: missing secret key")}
	}

	request := &paystackInitializeRequest{
		Reference:   params.Reference,
		Amount:      params.Amount,
		Email:       params.Email,
		CallbackURL: s.config.CallbackURL,
		Metadata: map[string]string{
			"passenger_name": params.Name,
		},
	}

	s.logger.WithFields(logrus.Fields{
		"reference": params.Reference,
		"amount":    params.Amount,
	}).Info("Initializing Paystack transaction")

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, &models.GatewayError{Op: "initialize", Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	body, statusCode, err := s.post("/transaction/initialize", jsonBody)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call Paystack initialize endpoint")
		return nil, &models.GatewayError{Op: "initialize", Err: err}
	}

	if statusCode != http.StatusOK {
		return nil, &models.GatewayError{
			Op:         "initialize",
			StatusCode: statusCode,
			Err:        fmt.Errorf("unexpected gateway response: %s", strings.TrimSpace(string(body))),
		}
	}

	var initResp paystackInitializeResponse
	if err := json.Unmarshal(body, &initResp); err != nil {
		return nil, &models.GatewayError{Op: "initialize", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if !initResp.Status || initResp.Data.AuthorizationURL == "" {
		return nil, &models.GatewayError{Op: "initialize", Err: fmt.Errorf("gateway rejected transaction: %s", initResp.Message)}
	}

	s.logger.WithFields(logrus.Fields{
		"reference":   params.Reference,
		"access_code": initResp.Data.AccessCode,
	}).Info("Paystack transaction initialized")

	return &InitializeTransactionResponse{
		AuthorizationURL: initResp.Data.AuthorizationURL,
		AccessCode:       initResp.Data.AccessCode,
		Reference:        initResp.Data.Reference,
	}, nil
}

// VerifyTransaction asks the gateway for the authoritative state of a
// transaction. Safe to call any number of times. A transport or non-2xx
// failure here is indeterminate, never a confirmation either way.
func (s *PaystackService) VerifyTransaction(reference string) (*VerifyTransactionResponse, error) {
	if !s.IsConfigured() {
		return nil, &models.GatewayError{Op: "verify", Err: fmt.Errorf("payment gateway not configured: missing secret key")}
	}

	url := fmt.Sprintf("%s/transaction/verify/%s", strings.TrimRight(s.config.BaseURL, "/"), reference)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.GatewayError{Op: "verify", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("reference", reference).Error("Failed to call Paystack verify endpoint")
		return nil, &models.GatewayError{Op: "verify", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.GatewayError{Op: "verify", Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &models.GatewayError{
			Op:         "verify",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected gateway response: %s", strings.TrimSpace(string(body))),
		}
	}

	var verifyResp paystackVerifyResponse
	if err := json.Unmarshal(body, &verifyResp); err != nil {
		return nil, &models.GatewayError{Op: "verify", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if !verifyResp.Status {
		return nil, &models.GatewayError{Op: "verify", Err: fmt.Errorf("gateway rejected verification: %s", verifyResp.Message)}
	}

	result := &VerifyTransactionResponse{
		Status:          mapGatewayStatus(verifyResp.Data.Status),
		Amount:          verifyResp.Data.Amount,
		GatewayResponse: verifyResp.Data.GatewayResponse,
	}

	s.logger.WithFields(logrus.Fields{
		"reference":      reference,
		"gateway_status": verifyResp.Data.Status,
		"mapped_status":  result.Status,
	}).Info("Paystack transaction verified")

	return result, nil
}

// IsConfigured returns true if the gateway is usable
func (s *PaystackService) IsConfigured() bool {
	return s.config.SecretKey != ""
}

// post sends a JSON body to the gateway and returns the raw response
func (s *PaystackService) post(path string, body []byte) ([]byte, int, error) {
	url := strings.TrimRight(s.config.BaseURL, "/") + path

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

// mapGatewayStatus folds the gateway's vocabulary onto the booking state
// machine's three outcomes. Anything unknown stays pending: an unrecognized
// report must never flip a booking to completed or failed.
func mapGatewayStatus(status string) GatewayStatus {
	switch strings.ToLower(status) {
	case "success":
		return GatewayStatusSuccess
	case "failed", "abandoned", "reversed":
		return GatewayStatusFailed
	default:
		return GatewayStatusPending
	}
}
