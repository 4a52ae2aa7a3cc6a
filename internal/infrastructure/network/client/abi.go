package client

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIJSON = `[
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Some early tokens (MKR, SAI) return name and symbol as bytes32.
const erc20Bytes32ABIJSON = `[
{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}
]`

const routerABIJSON = `[
{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

var (
	erc20ABI        abi.ABI
	erc20Bytes32ABI abi.ABI
	routerABI       abi.ABI
	parseABIOnce    sync.Once
)

func initABIs() {
	parseABIOnce.Do(func() {
		erc20ABI = mustParseABI("ERC20", erc20ABIJSON)
		erc20Bytes32ABI = mustParseABI("ERC20 bytes32", erc20Bytes32ABIJSON)
		routerABI = mustParseABI("router", routerABIJSON)
	})
}

func mustParseABI(name, def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s ABI: %v", name, err))
	}
	return parsed
}

// unpackString decodes a string return value, falling back to bytes32.
func unpackString(method string, data []byte) (string, error) {
	if out, err := erc20ABI.Unpack(method, data); err == nil && len(out) == 1 {
		if s, ok := out[0].(string); ok {
			return s, nil
		}
	}
	out, err := erc20Bytes32ABI.Unpack(method, data)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", method, err)
	}
	b, ok := out[0].([32]byte)
	if !ok {
		return "", fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return string(bytes.TrimRight(b[:], "\x00")), nil
}
