package tokenloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenInfo is one entry of a token list file.
type TokenInfo struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// TokenLists holds the default tokens of each chain, keyed by chain identifier.
type TokenLists struct {
	byChain map[string][]string
}

// Load reads <dir>/<identifier>.json for every chain in defs. Files for inactive chains
// are ignored, as are entries whose chainId does not match the file's chain or whose
// address is malformed. A missing dir yields empty lists.
func Load(dir string, defs []entity.ChainDefinition, log port.Logger) (*TokenLists, error) {
	lists := &TokenLists{byChain: make(map[string][]string)}
	if dir == "" {
		return lists, nil
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Token list directory does not exist, no default tokens loaded", "path", dir)
			return lists, nil
		}
		return nil, fmt.Errorf("failed to read token directory %s: %w", dir, err)
	}

	active := make(map[string]entity.ChainDefinition, len(defs))
	for _, def := range defs {
		active[def.Identifier] = def
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".json") {
			continue
		}
		id := strings.ToLower(strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())))
		def, ok := active[id]
		if !ok {
			log.Debug("Token file for inactive chain, skipping", "file", file.Name())
			continue
		}

		path := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read token file %s: %w", path, err)
		}
		var tokens []TokenInfo
		if err := json.Unmarshal(data, &tokens); err != nil {
			return nil, fmt.Errorf("parse token file %s: %w", path, err)
		}

		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			addr := strings.ToLower(strings.TrimSpace(t.Address))
			if t.ChainID != def.ChainID || !common.IsHexAddress(addr) {
				log.Warn("Skipping token list entry",
					"file", path, "symbol", t.Symbol, "address", t.Address,
					"tokenChainId", t.ChainID, "expectedChainId", def.ChainID)
				continue
			}
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			lists.byChain[id] = append(lists.byChain[id], addr)
		}
		log.Info("Loaded token list", "chain", id, "count", len(lists.byChain[id]))
	}
	return lists, nil
}

// TokensFor returns a copy of the default tokens of chain.
func (l *TokenLists) TokensFor(chain string) []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.byChain[strings.ToLower(chain)]...)
}
