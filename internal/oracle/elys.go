package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gogo/protobuf/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"

	"github.com/elys-network/clm/internal/config"
	"github.com/elys-network/clm/internal/logger"
	assetprofiletypes "github.com/elys-network/elys/v6/x/assetprofile/types"
	tier "github.com/elys-network/elys/v6/x/tier/types"
)

var oracleLogger = logger.GetForComponent("oracle_client")

// legacyDecScale is the fixed decimal scale of sdkmath.LegacyDec raw values.
const legacyDecScale = 18

// JSON-RPC Structures for the abci_query fallback path

// JSONRPCRequest defines the structure of a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  ABCIQueryParams `json:"params"`
}

// ABCIQueryParams defines the parameters for the "abci_query" method.
type ABCIQueryParams struct {
	Path   string `json:"path"`
	Data   string `json:"data"` // Hex-encoded string
	Height string `json:"height,omitempty"`
	Prove  bool   `json:"prove,omitempty"`
}

// JSONRPCResponse defines the structure of a JSON-RPC response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  ABCIQueryResult `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// ABCIQueryResult defines the structure of the "result" field for "abci_query".
type ABCIQueryResult struct {
	Response struct {
		Log    string `json:"log"`
		Key    string `json:"key"`   // Base64 encoded
		Value  string `json:"value"` // Base64 encoded
		Height string `json:"height"`
		Code   uint32 `json:"code"`
	} `json:"response"`
}

// JSONRPCError defines the structure of a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// ElysFeed serves USD prices from the Elys tier module and token metadata from
// the assetprofile module. Readings are cached and refreshed when older than
// the staleness window; a reading that cannot be refreshed is reported stale
// rather than served.
type ElysFeed struct {
	grpcConn    *grpc.ClientConn
	tierClient  tier.QueryClient
	assetClient assetprofiletypes.QueryClient

	staleAfter time.Duration
	clock      func() time.Time

	prices      map[string]*tier.Price
	decimals    map[string]uint8
	lastRefresh time.Time
}

// NewElysFeed creates a feed over an established gRPC connection.
func NewElysFeed(grpcConn *grpc.ClientConn, staleAfter time.Duration) (*ElysFeed, error) {
	if grpcConn == nil {
		return nil, errors.Join(ErrFeedFailure, errors.New("gRPC connection cannot be nil"))
	}
	if state := grpcConn.GetState(); state == connectivity.Shutdown {
		return nil, errors.Join(ErrFeedFailure, errors.New("gRPC connection is shutdown"))
	}
	if staleAfter <= 0 {
		return nil, errors.Join(ErrFeedFailure, errors.New("staleness window must be positive"))
	}

	feed := &ElysFeed{
		grpcConn:    grpcConn,
		tierClient:  tier.NewQueryClient(grpcConn),
		assetClient: assetprofiletypes.NewQueryClient(grpcConn),
		staleAfter:  staleAfter,
		clock:       time.Now,
		prices:      make(map[string]*tier.Price),
		decimals:    make(map[string]uint8),
	}

	oracleLogger.Info().
		Dur("staleAfter", staleAfter).
		Msg("ElysFeed initialized")

	return feed, nil
}

// GetPriceUSD implements PriceFeed. Prices are LegacyDec values from the tier
// module, exposed at the fixed 18-decimal scale of their raw representation.
func (f *ElysFeed) GetPriceUSD(ctx context.Context, denom string) (PriceQuote, error) {
	if err := f.ensureFresh(ctx); err != nil {
		return PriceQuote{}, err
	}

	price, ok := f.prices[denom]
	if !ok {
		return PriceQuote{}, errors.Join(ErrNoPrice, fmt.Errorf("tier module has no price for %s", denom))
	}

	// Prefer the oracle-sourced price; fall back to the AMM spot price the
	// same way the tier module consumers do.
	var dec sdkmath.LegacyDec
	switch {
	case price.OraclePrice.IsPositive():
		dec = price.OraclePrice
	case price.AmmPrice.IsPositive():
		dec = price.AmmPrice
	default:
		return PriceQuote{}, errors.Join(ErrNoPrice, fmt.Errorf("no positive price for %s: oracle=%s amm=%s",
			denom, price.OraclePrice.String(), price.AmmPrice.String()))
	}

	raw := sdkmath.NewIntFromBigInt(dec.BigInt())
	if !raw.IsPositive() {
		return PriceQuote{}, errors.Join(ErrBadPriceData, fmt.Errorf("price for %s truncated to zero", denom))
	}

	return PriceQuote{
		Price:     raw,
		Decimals:  legacyDecScale,
		Timestamp: f.lastRefresh,
	}, nil
}

// Decimals implements MetadataSource using the assetprofile entries.
func (f *ElysFeed) Decimals(denom string) (uint8, error) {
	decimals, ok := f.decimals[denom]
	if !ok {
		return 0, errors.Join(ErrBadPriceData, fmt.Errorf("assetprofile has no entry for %s", denom))
	}
	return decimals, nil
}

// ensureFresh refreshes the cached readings when they exceed the staleness
// window. A refresh failure surfaces as ErrStalePrice so callers never consume
// outdated data silently.
func (f *ElysFeed) ensureFresh(ctx context.Context) error {
	if !f.lastRefresh.IsZero() && f.clock().Sub(f.lastRefresh) <= f.staleAfter {
		return nil
	}
	if err := f.Refresh(ctx); err != nil {
		if f.lastRefresh.IsZero() {
			return err
		}
		return errors.Join(ErrStalePrice, err)
	}
	return nil
}

// Refresh fetches all prices and token metadata. The gRPC path is primary;
// the JSON-RPC abci_query path is the fallback when the connection is
// unavailable.
func (f *ElysFeed) Refresh(ctx context.Context) error {
	prices, err := f.fetchPricesGRPC(ctx)
	if err != nil {
		oracleLogger.Warn().Err(err).Msg("gRPC price fetch failed, trying JSON-RPC fallback")
		prices, err = f.fetchPricesJSONRPC()
		if err != nil {
			return errors.Join(ErrFeedFailure, err)
		}
	}

	entries, err := f.fetchEntries(ctx)
	if err != nil {
		return errors.Join(ErrFeedFailure, err)
	}

	priceMap := make(map[string]*tier.Price, len(prices))
	for i := range prices {
		price := prices[i]
		if price == nil || price.Denom == "" {
			return errors.Join(ErrBadPriceData, errors.New("tier module returned an empty price entry"))
		}
		priceMap[price.Denom] = price
	}

	decimalMap := make(map[string]uint8, len(entries))
	for _, entry := range entries {
		if entry.Denom == "" || entry.Decimals == 0 || entry.Decimals > 18 {
			continue
		}
		decimalMap[entry.Denom] = uint8(entry.Decimals)
	}

	f.prices = priceMap
	f.decimals = decimalMap
	f.lastRefresh = f.clock()

	oracleLogger.Info().
		Int("priceCount", len(priceMap)).
		Int("entryCount", len(decimalMap)).
		Msg("Oracle cache refreshed")

	return nil
}

// fetchPricesGRPC pages through the tier module's price set.
func (f *ElysFeed) fetchPricesGRPC(ctx context.Context) ([]*tier.Price, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := f.tierClient.GetAllPrices(queryCtx, &tier.QueryGetAllPricesRequest{})
	if err != nil {
		return nil, fmt.Errorf("tier module price query failed: %w", err)
	}
	if response == nil || len(response.Prices) == 0 {
		return nil, errors.New("no token prices available from tier module")
	}
	return response.Prices, nil
}

// fetchEntries pages through the assetprofile entries for token decimals.
func (f *ElysFeed) fetchEntries(ctx context.Context) ([]assetprofiletypes.Entry, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := f.assetClient.EntryAll(queryCtx, &assetprofiletypes.QueryAllEntryRequest{})
	if err != nil {
		return nil, fmt.Errorf("assetprofile query failed: %w", err)
	}
	if response == nil || len(response.Entry) == 0 {
		return nil, errors.New("no token entries available from assetprofile module")
	}
	return response.Entry, nil
}

// fetchPricesJSONRPC runs the same tier query over the node's JSON-RPC
// abci_query endpoint.
func (f *ElysFeed) fetchPricesJSONRPC() ([]*tier.Price, error) {
	if config.NodeRPC == "" {
		return nil, errors.New("node RPC endpoint is not configured")
	}

	protoBytes, err := proto.Marshal(&tier.QueryGetAllPricesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tier price request: %w", err)
	}

	abciPath := "/elys.tier.Query/GetAllPrices"
	jsonRPCReq := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "abci_query",
		Params: ABCIQueryParams{
			Path: abciPath,
			Data: hex.EncodeToString(protoBytes),
		},
	}

	jsonData, err := json.Marshal(jsonRPCReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON-RPC request: %w", err)
	}

	httpClient := http.Client{Timeout: 20 * time.Second}
	req, err := http.NewRequest("POST", config.NodeRPC, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	oracleLogger.Debug().
		Str("endpoint", config.NodeRPC).
		Str("abciPath", abciPath).
		Msg("Executing JSON-RPC price query")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed with status: %d %s", resp.StatusCode, resp.Status)
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var jsonRPCResp JSONRPCResponse
	if err := json.Unmarshal(respBodyBytes, &jsonRPCResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON-RPC response: %w", err)
	}
	if jsonRPCResp.Error != nil {
		return nil, fmt.Errorf("RPC error (code %d): %s", jsonRPCResp.Error.Code, jsonRPCResp.Error.Message)
	}
	if jsonRPCResp.Result.Response.Code != 0 {
		return nil, fmt.Errorf("ABCI error (code %d): %s", jsonRPCResp.Result.Response.Code, jsonRPCResp.Result.Response.Log)
	}
	if jsonRPCResp.Result.Response.Value == "" {
		return nil, errors.New("response value is empty")
	}

	decodedValueBytes, err := base64.StdEncoding.DecodeString(jsonRPCResp.Result.Response.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response value: %w", err)
	}

	var grpcResponse tier.QueryGetAllPricesResponse
	if err := proto.Unmarshal(decodedValueBytes, &grpcResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protobuf response: %w", err)
	}
	if len(grpcResponse.Prices) == 0 {
		return nil, errors.New("no token prices in JSON-RPC response")
	}

	return grpcResponse.Prices, nil
}
