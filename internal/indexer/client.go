package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
)

// MaxWindow is the largest page*offset product Etherscan-compatible APIs serve
const MaxWindow = 10000

// Client talks to an Etherscan-compatible account API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// apiResponse is the envelope of every account API response.
// Result is a list on success and an error string otherwise.
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type apiTransaction struct {
	BlockNumber string `json:"blockNumber"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
}

// NewClient creates a new indexer client for the API at baseURL
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TransactionCount returns how many transactions the indexer knows for
// account, capped at MaxWindow.
func (c *Client) TransactionCount(ctx context.Context, account models.Account) (uint64, error) {
	txs, err := c.txList(ctx, account, 1, MaxWindow)
	if err != nil {
		return 0, err
	}
	return uint64(len(txs)), nil
}

// TransactionAt returns the index-th transaction of account in ascending
// chain order, or nil when there is none.
func (c *Client) TransactionAt(ctx context.Context, account models.Account, index uint64) (*models.TransactionRecord, error) {
	if index >= MaxWindow {
		return nil, fmt.Errorf("position %d is beyond the indexer window of %d", index, MaxWindow)
	}

	txs, err := c.txList(ctx, account, index+1, 1)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}

	record, err := txs[0].toRecord()
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) txList(ctx context.Context, account models.Account, page, offset uint64) ([]apiTransaction, error) {
	params := map[string]string{
		"module":     "account",
		"action":     "txlist",
		"address":    account.String(),
		"startblock": "0",
		"endblock":   "99999999",
		"page":       strconv.FormatUint(page, 10),
		"offset":     strconv.FormatUint(offset, 10),
		"sort":       "asc",
	}
	if c.apiKey != "" {
		params["apikey"] = c.apiKey
	}

	var response apiResponse
	if err := c.get(ctx, BuildURLWithParams(c.baseURL, params), &response); err != nil {
		return nil, err
	}

	if response.Status != "1" {
		// An empty history is reported as a failure status by these APIs
		if strings.HasPrefix(response.Message, "No transactions found") {
			return nil, nil
		}
		var detail string
		if err := json.Unmarshal(response.Result, &detail); err != nil {
			detail = string(response.Result)
		}
		return nil, fmt.Errorf("indexer error: %s: %s", response.Message, detail)
	}

	var txs []apiTransaction
	if err := json.Unmarshal(response.Result, &txs); err != nil {
		return nil, fmt.Errorf("error decoding transactions: %w", err)
	}
	return txs, nil
}

// get is the core HTTP request method
func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	start := time.Now()
	logger.Debug("Starting GET request to %s", redact(url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		logger.Error("Request failed after (%s) %v: %v", redact(url), elapsed, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	logger.Debug("Request to %s completed in %v with status %d", redact(url), elapsed, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		logger.Error("%s: HTTP error %d: %s", redact(url), resp.StatusCode, string(bodyBytes))
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		logger.Error("%s: Error decoding response: %v", redact(url), err)
		return fmt.Errorf("error decoding response: %w", err)
	}

	return nil
}

func (t apiTransaction) toRecord() (models.TransactionRecord, error) {
	value, ok := new(big.Int).SetString(t.Value, 10)
	if !ok {
		return models.TransactionRecord{}, fmt.Errorf("transaction %s has invalid value %q", t.Hash, t.Value)
	}

	record := models.TransactionRecord{
		Hash:  t.Hash,
		From:  t.From,
		To:    t.To,
		Value: value,
	}

	if t.BlockNumber != "" {
		n, err := strconv.ParseUint(t.BlockNumber, 10, 64)
		if err != nil {
			return models.TransactionRecord{}, fmt.Errorf("transaction %s has invalid block number %q: %w", t.Hash, t.BlockNumber, err)
		}
		record.BlockNumber = &n
	}

	return record, nil
}

// BuildURLWithParams properly builds a URL with query parameters
func BuildURLWithParams(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	// Parse the endpoint to check for existing query parameters
	parts := strings.SplitN(endpoint, "?", 2)
	baseURL := parts[0]

	values := url.Values{}
	if len(parts) > 1 {
		existingParams, _ := url.ParseQuery(parts[1])
		values = existingParams
	}

	for key, value := range params {
		values.Set(key, value)
	}

	if len(values) > 0 {
		return baseURL + "?" + values.Encode()
	}
	return baseURL
}

// redact hides the API key in logged URLs
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
