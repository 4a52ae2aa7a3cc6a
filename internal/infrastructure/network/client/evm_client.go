package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/infrastructure/network/rpc"
	"chain_provider/internal/pkg/utils"
)

// EVMClient implements port.ChainClient for EVM-compatible chains.
type EVMClient struct {
	rpc    *rpc.Client
	def    entity.ChainDefinition
	logger port.Logger
	now    func() time.Time
}

// NewEVMClient creates a client for def that sends requests through transport.
func NewEVMClient(def entity.ChainDefinition, transport *rpc.Client, log port.Logger) *EVMClient {
	initABIs()
	return &EVMClient{rpc: transport, def: def, logger: log, now: time.Now}
}

// Definition returns the chain definition for this client.
func (c *EVMClient) Definition() entity.ChainDefinition {
	return c.def
}

type callArgs struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

func ethCall(to common.Address, data []byte, out *hexutil.Bytes) rpc.BatchElem {
	return rpc.BatchElem{
		Method: "eth_call",
		Params: []any{callArgs{To: to, Data: data}, "latest"},
		Result: out,
	}
}

// FetchBalance returns the native or ERC20 balance of q.Address.
func (c *EVMClient) FetchBalance(ctx context.Context, endpointURL string, q entity.BalanceQuery) (*entity.Balance, error) {
	wallet := common.HexToAddress(q.Address)
	if q.IsNative() {
		var bal hexutil.Big
		if err := c.rpc.Call(ctx, endpointURL, &bal, "eth_getBalance", wallet, "latest"); err != nil {
			return nil, classify(err)
		}
		return c.newBalance(q, entity.ZeroAddress, c.def.NativeSymbol, c.def.Decimals, true, bal.ToInt()), nil
	}

	token := common.HexToAddress(q.Token)
	data, err := erc20ABI.Pack("balanceOf", wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: pack balanceOf: %v", entity.ErrInvalidRequest, err)
	}
	var rawBalance, rawDecimals, rawSymbol hexutil.Bytes
	batch := []rpc.BatchElem{
		ethCall(token, data, &rawBalance),
		ethCall(token, erc20ABI.Methods["decimals"].ID, &rawDecimals),
		ethCall(token, erc20ABI.Methods["symbol"].ID, &rawSymbol),
	}
	if err := c.rpc.BatchCall(ctx, endpointURL, batch); err != nil {
		return nil, classify(err)
	}
	if err := firstTransient(batch); err != nil {
		return nil, err
	}
	if batch[0].Error != nil {
		return nil, classify(batch[0].Error)
	}
	if len(rawBalance) == 0 {
		return nil, fmt.Errorf("%w: token %s has no contract code on %s", entity.ErrNotFound, q.Token, c.def.Identifier)
	}
	out, err := erc20ABI.Unpack("balanceOf", rawBalance)
	if err != nil || len(out) == 0 {
		return nil, fmt.Errorf("%w: token %s: cannot decode balanceOf", entity.ErrNotFound, q.Token)
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: token %s: unexpected balanceOf type %T", entity.ErrNotFound, q.Token, out[0])
	}

	var decimals uint8
	if batch[1].Error == nil {
		if d, err := unpackDecimals(rawDecimals); err == nil {
			decimals = d
		}
	}
	var symbol string
	if batch[2].Error == nil && len(rawSymbol) > 0 {
		symbol, _ = unpackString("symbol", rawSymbol)
	}
	return c.newBalance(q, entity.NormalizeAddress(q.Token), symbol, decimals, false, amount), nil
}

func (c *EVMClient) newBalance(q entity.BalanceQuery, token, symbol string, decimals uint8, native bool, amount *big.Int) *entity.Balance {
	if amount == nil {
		amount = new(big.Int)
	}
	return &entity.Balance{
		ChainID:          c.def.Identifier,
		WalletAddress:    entity.NormalizeAddress(q.Address),
		TokenAddress:     token,
		TokenSymbol:      symbol,
		Decimals:         decimals,
		IsNative:         native,
		Amount:           amount,
		RawAmount:        amount.String(),
		FormattedBalance: utils.FormatBigInt(amount, decimals),
		FetchedAt:        c.now(),
	}
}

// FetchTokenMetadata reads name, symbol, decimals and total supply in one batch.
func (c *EVMClient) FetchTokenMetadata(ctx context.Context, endpointURL string, q entity.TokenMetadataQuery) (*entity.TokenMetadata, error) {
	if entity.IsNativeToken(q.Token) {
		return &entity.TokenMetadata{
			ChainID:   c.def.Identifier,
			Address:   entity.ZeroAddress,
			Name:      c.def.NativeSymbol,
			Symbol:    c.def.NativeSymbol,
			Decimals:  c.def.Decimals,
			FetchedAt: c.now(),
		}, nil
	}

	token := common.HexToAddress(q.Token)
	var rawName, rawSymbol, rawDecimals, rawSupply hexutil.Bytes
	batch := []rpc.BatchElem{
		ethCall(token, erc20ABI.Methods["name"].ID, &rawName),
		ethCall(token, erc20ABI.Methods["symbol"].ID, &rawSymbol),
		ethCall(token, erc20ABI.Methods["decimals"].ID, &rawDecimals),
		ethCall(token, erc20ABI.Methods["totalSupply"].ID, &rawSupply),
	}
	if err := c.rpc.BatchCall(ctx, endpointURL, batch); err != nil {
		return nil, classify(err)
	}
	if err := firstTransient(batch); err != nil {
		return nil, err
	}
	if batch[2].Error != nil {
		return nil, classify(batch[2].Error)
	}
	if len(rawDecimals) == 0 {
		return nil, fmt.Errorf("%w: token %s has no contract code on %s", entity.ErrNotFound, q.Token, c.def.Identifier)
	}
	decimals, err := unpackDecimals(rawDecimals)
	if err != nil {
		return nil, fmt.Errorf("%w: token %s: %v", entity.ErrNotFound, q.Token, err)
	}

	md := &entity.TokenMetadata{
		ChainID:   c.def.Identifier,
		Address:   entity.NormalizeAddress(q.Token),
		Decimals:  decimals,
		FetchedAt: c.now(),
	}
	if batch[0].Error == nil && len(rawName) > 0 {
		md.Name, _ = unpackString("name", rawName)
	}
	if batch[1].Error == nil && len(rawSymbol) > 0 {
		md.Symbol, _ = unpackString("symbol", rawSymbol)
	}
	if batch[3].Error == nil && len(rawSupply) > 0 {
		if out, err := erc20ABI.Unpack("totalSupply", rawSupply); err == nil && len(out) == 1 {
			if supply, ok := out[0].(*big.Int); ok {
				md.TotalSupply = supply
				md.RawSupply = supply.String()
			}
		}
	}
	return md, nil
}

// FetchQuote asks the chain's router for getAmountsOut along the direct path and,
// when that has no liquidity, through the wrapped native token.
func (c *EVMClient) FetchQuote(ctx context.Context, endpointURL string, q entity.QuoteQuery) (*entity.Quote, error) {
	if !c.def.SupportsQuotes() {
		return nil, fmt.Errorf("%w: quotes are not supported on %s", entity.ErrInvalidRequest, c.def.Identifier)
	}
	if q.AmountIn == nil || q.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", entity.ErrInvalidRequest)
	}

	in := c.routable(q.TokenIn)
	out := c.routable(q.TokenOut)
	if in == out {
		return nil, fmt.Errorf("%w: tokenIn and tokenOut resolve to the same asset", entity.ErrInvalidRequest)
	}

	paths := [][]common.Address{{in, out}}
	if c.def.WrappedNativeTokenAddress != "" {
		wrapped := common.HexToAddress(c.def.WrappedNativeTokenAddress)
		if in != wrapped && out != wrapped {
			paths = append(paths, []common.Address{in, wrapped, out})
		}
	}

	var lastErr error
	for _, path := range paths {
		amountOut, err := c.getAmountsOut(ctx, endpointURL, q.AmountIn, path)
		if err == nil {
			return &entity.Quote{
				ChainID:   c.def.Identifier,
				TokenIn:   entity.NormalizeToken(q.TokenIn),
				TokenOut:  entity.NormalizeToken(q.TokenOut),
				AmountIn:  new(big.Int).Set(q.AmountIn),
				AmountOut: amountOut,
				Route:     pathStrings(path),
				Router:    entity.NormalizeAddress(c.def.QuoteRouterAddress),
				FetchedAt: c.now(),
			}, nil
		}
		if !errors.Is(err, entity.ErrNotFound) {
			return nil, err
		}
		c.logger.Debug("No liquidity on route", "chain", c.def.Identifier, "route", pathStrings(path))
		lastErr = err
	}
	return nil, lastErr
}

func (c *EVMClient) getAmountsOut(ctx context.Context, endpointURL string, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	data, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("%w: pack getAmountsOut: %v", entity.ErrInvalidRequest, err)
	}
	var raw hexutil.Bytes
	router := common.HexToAddress(c.def.QuoteRouterAddress)
	if err := c.rpc.Call(ctx, endpointURL, &raw, "eth_call", callArgs{To: router, Data: data}, "latest"); err != nil {
		return nil, classify(err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: router returned no data", entity.ErrNotFound)
	}
	res, err := routerABI.Unpack("getAmountsOut", raw)
	if err != nil || len(res) == 0 {
		return nil, fmt.Errorf("%w: cannot decode getAmountsOut", entity.ErrNotFound)
	}
	amounts, ok := res[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, fmt.Errorf("%w: unexpected getAmountsOut result", entity.ErrNotFound)
	}
	amountOut := amounts[len(amounts)-1]
	if amountOut == nil || amountOut.Sign() == 0 {
		return nil, fmt.Errorf("%w: no liquidity", entity.ErrNotFound)
	}
	return amountOut, nil
}

// routable maps the native asset to the wrapped token the router understands.
func (c *EVMClient) routable(token string) common.Address {
	if entity.IsNativeToken(token) && c.def.WrappedNativeTokenAddress != "" {
		return common.HexToAddress(c.def.WrappedNativeTokenAddress)
	}
	return common.HexToAddress(token)
}

func pathStrings(path []common.Address) []string {
	out := make([]string, len(path))
	for i, a := range path {
		out[i] = strings.ToLower(a.Hex())
	}
	return out
}

func unpackDecimals(data []byte) (uint8, error) {
	out, err := erc20ABI.Unpack("decimals", data)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unpack decimals: unexpected type %T", out[0])
	}
	return d, nil
}

// firstTransient surfaces the first retryable element error so the dispatcher can retry the batch.
func firstTransient(batch []rpc.BatchElem) error {
	for _, el := range batch {
		if el.Error != nil && entity.IsTransientRPC(el.Error) {
			return el.Error
		}
	}
	return nil
}

// classify turns chain rejections into caller-facing kinds and leaves transport errors alone.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case rpc.IsRevert(err):
		return fmt.Errorf("%w: %v", entity.ErrNotFound, err)
	case rpc.IsInvalidParams(err):
		return fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err)
	default:
		return err
	}
}
