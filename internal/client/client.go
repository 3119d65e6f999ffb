package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/api"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// APIError is a non 2xx answer from the marketplace.
type APIError struct {
	Status   int
	Message  string
	Category string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Category, e.Message)
}

// Client talks to the marketplace HTTP API. Reads are retried; writes are
// sent once since a repeated buy or listing is not idempotent.
type Client struct {
	url    string
	caller string
	reads  *retryablehttp.Client
	writes *retryablehttp.Client
}

func NewClient(baseUrl string, retries int, timeout time.Duration) *Client {
	return &Client{
		url:    baseUrl,
		reads:  newRetryClient(retries, timeout),
		writes: newRetryClient(0, timeout),
	}
}

func newRetryClient(retries int, timeout time.Duration) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = timeout
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return retryClient
}

// As returns a client acting for caller.
func (c *Client) As(caller string) *Client {
	cp := *c
	cp.caller = caller

	return &cp
}

func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) Listings(ctx context.Context) ([]api.ListingResponse, error) {
	var resp []api.ListingResponse
	return resp, c.get(ctx, "/listings", &resp)
}

func (c *Client) GetListing(ctx context.Context, contract string, tokenId uint64) (api.ListingResponse, error) {
	var resp api.ListingResponse
	return resp, c.get(ctx, tokenPath("/listings", contract, tokenId), &resp)
}

func (c *Client) ListingExists(ctx context.Context, contract string, tokenId uint64) (bool, error) {
	var resp api.ExistsResponse
	err := c.get(ctx, tokenPath("/listings", contract, tokenId)+"/exists", &resp)

	return resp.Exists, err
}

func (c *Client) List(ctx context.Context, contract string, tokenId uint64, price string) (api.ListingResponse, error) {
	var resp api.ListingResponse
	return resp, c.write(ctx, "POST", "/listings", api.CreateListingRequest{Contract: contract, TokenId: tokenId, Price: price}, &resp)
}

func (c *Client) Buy(ctx context.Context, contract string, tokenId uint64, payment string) (api.SettlementResponse, error) {
	var resp api.SettlementResponse
	return resp, c.write(ctx, "POST", tokenPath("/listings", contract, tokenId)+"/buy", api.BuyRequest{Payment: payment}, &resp)
}

func (c *Client) Delist(ctx context.Context, contract string, tokenId uint64) (api.ListingResponse, error) {
	var resp api.ListingResponse
	return resp, c.write(ctx, "DELETE", tokenPath("/listings", contract, tokenId), nil, &resp)
}

func (c *Client) Fee(ctx context.Context) (api.FeeResponse, error) {
	var resp api.FeeResponse
	return resp, c.get(ctx, "/fee", &resp)
}

func (c *Client) FeePreview(ctx context.Context, price string) (api.FeePreviewResponse, error) {
	var resp api.FeePreviewResponse
	return resp, c.get(ctx, "/fee/"+url.PathEscape(price), &resp)
}

func (c *Client) SetSaleFee(ctx context.Context, fraction uint64) (api.FeeResponse, error) {
	var resp api.FeeResponse
	return resp, c.write(ctx, "PUT", "/fee", api.SetSaleFeeRequest{Fraction: fraction}, &resp)
}

func (c *Client) TransferFeeOwnership(ctx context.Context, owner string) (api.FeeResponse, error) {
	var resp api.FeeResponse
	return resp, c.write(ctx, "PUT", "/fee/owner", api.FeeOwnerRequest{Owner: owner}, &resp)
}

func (c *Client) Events(ctx context.Context, limit int) ([]entity.MarketplaceAction, error) {
	var resp []entity.MarketplaceAction
	return resp, c.get(ctx, "/events?limit="+strconv.Itoa(limit), &resp)
}

func (c *Client) TokenHistory(ctx context.Context, contract string, tokenId uint64, size int) ([]entity.MarketplaceAction, error) {
	var resp []entity.MarketplaceAction
	return resp, c.get(ctx, tokenPath("/listings", contract, tokenId)+"/history?size="+strconv.Itoa(size), &resp)
}

func (c *Client) LastSale(ctx context.Context, contract string, tokenId uint64) (entity.MarketplaceAction, error) {
	var resp entity.MarketplaceAction
	return resp, c.get(ctx, tokenPath("/listings", contract, tokenId)+"/last-sale", &resp)
}

func (c *Client) Mint(ctx context.Context, contract string, tokenId uint64, owner string) (api.TokenResponse, error) {
	var resp api.TokenResponse
	return resp, c.write(ctx, "POST", "/sandbox/tokens", api.MintRequest{Contract: contract, TokenId: tokenId, Owner: owner}, &resp)
}

func (c *Client) OwnerOf(ctx context.Context, contract string, tokenId uint64) (api.TokenResponse, error) {
	var resp api.TokenResponse
	return resp, c.get(ctx, tokenPath("/sandbox/tokens", contract, tokenId), &resp)
}

func (c *Client) Approve(ctx context.Context, contract string, tokenId uint64, operator string) error {
	return c.write(ctx, "POST", "/sandbox/approvals", api.ApprovalRequest{Contract: contract, TokenId: tokenId, Operator: operator}, nil)
}

func (c *Client) ApproveAll(ctx context.Context, contract, operator string, approved bool) error {
	return c.write(ctx, "POST", "/sandbox/operators", api.OperatorRequest{Contract: contract, Operator: operator, Approved: approved}, nil)
}

func (c *Client) Fund(ctx context.Context, principal, amount string) (api.BalanceResponse, error) {
	var resp api.BalanceResponse
	return resp, c.write(ctx, "POST", "/sandbox/balances", api.FundRequest{Principal: principal, Amount: amount}, &resp)
}

func (c *Client) Balance(ctx context.Context, principal string) (api.BalanceResponse, error) {
	var resp api.BalanceResponse
	return resp, c.get(ctx, "/sandbox/balances/"+url.PathEscape(principal), &resp)
}

func (c *Client) SetRejecting(ctx context.Context, principal string, rejecting bool) error {
	return c.write(ctx, "PUT", "/sandbox/rejecting", api.RejectingRequest{Principal: principal, Rejecting: rejecting}, nil)
}

func tokenPath(prefix, contract string, tokenId uint64) string {
	return fmt.Sprintf("%s/%s/%d", prefix, url.PathEscape(contract), tokenId)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, c.reads, "GET", path, nil, out)
}

func (c *Client) write(ctx context.Context, method, path string, body, out interface{}) error {
	return c.do(ctx, c.writes, method, path, body, out)
}

func (c *Client) do(ctx context.Context, httpClient *retryablehttp.Client, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.url+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.caller != "" {
		req.Header.Set(api.CallerHeader, c.caller)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("method", method), zap.String("path", path)).Error("Client: Request failed")
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

		var e api.ErrorResponse
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Category = e.Error, e.Category
		}

		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	return json.Unmarshal(b, out)
}
