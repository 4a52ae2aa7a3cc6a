package rpctest

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Function selectors understood by Chain.
const (
	SelectorBalanceOf     = "0x70a08231"
	SelectorName          = "0x06fdde03"
	SelectorSymbol        = "0x95d89b41"
	SelectorDecimals      = "0x313ce567"
	SelectorTotalSupply   = "0x18160ddd"
	SelectorGetAmountsOut = "0xd06ca61f"
)

// Token is an ERC20 contract known to Chain.
type Token struct {
	Name     string
	Symbol   string
	Decimals uint8
	Supply   *big.Int
	Balances map[string]*big.Int // lowercased holder -> balance
}

// Chain is a Handler simulating native balances, ERC20 tokens and a UniswapV2-style router
// pricing every hop at Rate (amountOut = amountIn * Rate for each hop).
type Chain struct {
	mu     sync.Mutex
	Native map[string]*big.Int
	Tokens map[string]*Token
	Router string
	Rate   int64
	// Pools lists hops with liquidity as "tokenA>tokenB"; empty means every hop is liquid.
	Pools map[string]bool
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{
		Native: make(map[string]*big.Int),
		Tokens: make(map[string]*Token),
		Rate:   2,
	}
}

// AddToken registers a token contract at address.
func (c *Chain) AddToken(address string, t *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Balances == nil {
		t.Balances = make(map[string]*big.Int)
	}
	c.Tokens[strings.ToLower(address)] = t
}

// SetNative sets the native balance of holder.
func (c *Chain) SetNative(holder string, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Native[strings.ToLower(holder)] = v
}

// Handle implements Handler.
func (c *Chain) Handle(call Call) (any, *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch call.Method {
	case "eth_chainId":
		return "0x1", nil
	case "eth_getBalance":
		var holder string
		if len(call.Params) > 0 {
			_ = json.Unmarshal(call.Params[0], &holder)
		}
		v := c.Native[strings.ToLower(holder)]
		if v == nil {
			v = new(big.Int)
		}
		return hexutil.EncodeBig(v), nil
	case "eth_call":
		return c.ethCall(call)
	}
	return nil, &Error{Code: -32601, Message: "method not found"}
}

func (c *Chain) ethCall(call Call) (any, *Error) {
	to, data := call.CallTarget()
	if len(data) < 10 {
		return nil, &Error{Code: -32602, Message: "invalid params"}
	}
	selector, args := data[:10], data[10:]

	if c.Router != "" && to == strings.ToLower(c.Router) && selector == SelectorGetAmountsOut {
		return c.getAmountsOut(args)
	}

	tok, ok := c.Tokens[to]
	if !ok {
		return "0x", nil
	}
	switch selector {
	case SelectorBalanceOf:
		holder := "0x" + args[len(args)-40:]
		v := tok.Balances[holder]
		if v == nil {
			v = new(big.Int)
		}
		return pack("uint256", v), nil
	case SelectorName:
		return pack("string", tok.Name), nil
	case SelectorSymbol:
		return pack("string", tok.Symbol), nil
	case SelectorDecimals:
		return pack("uint8", tok.Decimals), nil
	case SelectorTotalSupply:
		v := tok.Supply
		if v == nil {
			v = new(big.Int)
		}
		return pack("uint256", v), nil
	}
	return nil, &Error{Code: 3, Message: "execution reverted"}
}

func (c *Chain) getAmountsOut(args string) (any, *Error) {
	raw, err := hexutil.Decode("0x" + args)
	if err != nil {
		return nil, &Error{Code: -32602, Message: "invalid params"}
	}
	uintT, _ := abi.NewType("uint256", "", nil)
	addrsT, _ := abi.NewType("address[]", "", nil)
	vals, err := abi.Arguments{{Type: uintT}, {Type: addrsT}}.Unpack(raw)
	if err != nil {
		return nil, &Error{Code: -32602, Message: "invalid params"}
	}
	amountIn := vals[0].(*big.Int)
	path := vals[1].([]common.Address)

	amounts := []*big.Int{new(big.Int).Set(amountIn)}
	cur := new(big.Int).Set(amountIn)
	for i := 0; i+1 < len(path); i++ {
		hop := strings.ToLower(path[i].Hex()) + ">" + strings.ToLower(path[i+1].Hex())
		if len(c.Pools) > 0 && !c.Pools[hop] {
			return nil, &Error{Code: 3, Message: "execution reverted: UniswapV2Library: INSUFFICIENT_LIQUIDITY"}
		}
		cur = new(big.Int).Mul(cur, big.NewInt(c.Rate))
		amounts = append(amounts, cur)
	}
	return pack("uint256[]", amounts), nil
}

func pack(typ string, v any) string {
	t, err := abi.NewType(typ, "", nil)
	if err != nil {
		panic(err)
	}
	out, err := abi.Arguments{{Type: t}}.Pack(v)
	if err != nil {
		panic(err)
	}
	return hexutil.Encode(out)
}
