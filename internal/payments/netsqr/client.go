package netsqr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	responseCodeApproved = "00"

	txnStatusSuccess = 1
	txnStatusFailed  = 2
)

// Client is a minimal NETS eNETS QR client covering QR issuance and
// transaction status queries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	projectID  string
}

// NewClient builds a NETS client against the configured sandbox or
// production base URL.
func NewClient(baseURL, apiKey, projectID string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		projectID:  projectID,
	}
}

// QRRequest asks NETS to issue a dynamic QR for the amount.
type QRRequest struct {
	TxnID string `json:"txn_id"`
	// AmountCents is the charge in cents. The NETS sandbox names this wire
	// field amt_in_dollars but reads the value as cents.
	AmountCents int64  `json:"amt_in_dollars,omitempty"`
	NotifyURL   string `json:"notify_mobile,omitempty"`
}

// QRResponse carries the issued QR image and the retrieval reference used to
// poll for the payment outcome.
type QRResponse struct {
	ResponseCode    string `json:"response_code"`
	TxnStatus       int    `json:"txn_status"`
	QRCode          string `json:"qr_code"`
	TxnRetrievalRef string `json:"txn_retrieval_ref"`
}

// Approved reports whether the QR request itself was accepted.
func (r *QRResponse) Approved() bool {
	return r.ResponseCode == responseCodeApproved && r.TxnStatus == txnStatusSuccess
}

// StatusResponse is the result of one status poll.
type StatusResponse struct {
	ResponseCode string `json:"response_code"`
	TxnStatus    int    `json:"txn_status"`
}

// Paid reports a settled payment.
func (r *StatusResponse) Paid() bool {
	return r.ResponseCode == responseCodeApproved && r.TxnStatus == txnStatusSuccess
}

// Failed reports a terminally rejected payment.
func (r *StatusResponse) Failed() bool {
	return r.TxnStatus == txnStatusFailed
}

// RequestQR issues a dynamic QR code for the transaction.
func (c *Client) RequestQR(ctx context.Context, req QRRequest) (*QRResponse, error) {
	var out QRResponse
	if err := c.do(ctx, "/common/payments/nets-qr/request", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryStatus polls the transaction outcome for an issued QR.
func (c *Client) QueryStatus(ctx context.Context, retrievalRef string) (*StatusResponse, error) {
	body := map[string]string{"txn_retrieval_ref": retrievalRef}
	var out StatusResponse
	if err := c.do(ctx, "/common/payments/nets-qr/query", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode nets request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build nets request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("project-id", c.projectID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nets request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read nets response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("nets %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode nets response: %w", err)
	}
	return nil
}
