package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	xerrors "TreasurySweep/internal/errors"
)

// DefaultHTTPTimeout bounds custody calls made with the default http.Client.
// Signing requests include backend-side policy evaluation, so it is longer
// than a plain REST timeout.
const DefaultHTTPTimeout = 30 * time.Second

// ErrRestrictionExists is returned when the backend already holds a
// restriction with the requested name in the realm.
var ErrRestrictionExists = errors.New("restriction already exists")

// Client wraps the HTTP interactions with the custody backend REST API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// APIError represents backend-side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("custody api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("custody api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the custody backend. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL, apiKey string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid custody base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, apiKey: apiKey, httpClient: httpClient}, nil
}

// ListAccounts fetches the full account directory. State is never cached;
// every scheduler iteration sees the directory as the backend knows it.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var out struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.get(ctx, "/api/v1/accounts", &out); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeDirectoryError, err, "list accounts")
	}
	return out.Accounts, nil
}

// CreateWallet provisions a new wallet on the given network and returns its
// address and custody handle.
func (c *Client) CreateWallet(ctx context.Context, network string) (Wallet, error) {
	payload := map[string]string{"network": network}
	var wallet Wallet
	if err := c.post(ctx, "/api/v1/wallets", payload, &wallet); err != nil {
		return Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	if wallet.Address == "" {
		return Wallet{}, errors.New("create wallet: backend returned no address")
	}
	return wallet, nil
}

// CreateRestriction registers a compiled predicate in a realm. A conflict
// response maps to ErrRestrictionExists so provisioning stays idempotent.
func (c *Client) CreateRestriction(ctx context.Context, realm, name, predicate, approvalRule string, effect RestrictionEffect) (string, error) {
	payload := map[string]string{
		"name":          name,
		"predicate":     predicate,
		"approval_rule": approvalRule,
		"effect":        string(effect),
	}
	var out struct {
		RestrictionID string `json:"restriction_id"`
	}
	endpoint := fmt.Sprintf("/api/v1/realms/%s/restrictions", url.PathEscape(realm))
	if err := c.post(ctx, endpoint, payload, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return "", ErrRestrictionExists
		}
		return "", fmt.Errorf("create restriction in realm %s: %w", realm, err)
	}
	return out.RestrictionID, nil
}

// SignAndSend submits a transaction for delegated signing inside a realm.
// The backend evaluates the realm's restrictions before signing and
// broadcasts on approval, returning the transaction hash.
func (c *Client) SignAndSend(ctx context.Context, realm, signingID string, tx TxRequest) (string, error) {
	payload := struct {
		SigningID   string    `json:"signing_id"`
		Transaction TxRequest `json:"transaction"`
	}{SigningID: signingID, Transaction: tx}

	var out struct {
		TxHash string `json:"tx_hash"`
	}
	endpoint := fmt.Sprintf("/api/v1/realms/%s/transactions", url.PathEscape(realm))
	err := c.post(ctx, endpoint, payload, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusForbidden {
				return "", xerrors.Wrap(xerrors.CodeSigningRejected, apiErr, "",
					xerrors.WithMetadata("realm", realm))
			}
			return "", xerrors.Wrap(xerrors.CodeSigningUnavailable, apiErr, "",
				xerrors.WithMetadata("realm", realm))
		}
		return "", xerrors.Wrap(xerrors.CodeSigningUnavailable, err, "",
			xerrors.WithMetadata("realm", realm))
	}
	if out.TxHash == "" {
		return "", xerrors.New(xerrors.CodeSigningUnavailable, "backend returned no transaction hash")
	}
	return out.TxHash, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	// Retried POSTs must not double-apply on the backend.
	req.Header.Set("Idempotency-Key", uuid.NewString())
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("read error response: %w", readErr)
		}
		if len(data) > 0 {
			err := json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: apiErr})
			// A body without the "error" wrapper decodes cleanly but leaves
			// the fields empty; fall back to the flat shape in that case too.
			if err != nil || (apiErr.Code == "" && apiErr.Message == "") {
				_ = json.Unmarshal(data, apiErr)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
