package walletloader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"chain_provider/internal/app/port"
)

// Load reads one wallet address per line from path. Blank lines and lines starting
// with '#' are skipped, as are malformed addresses. Duplicates are dropped.
func Load(path string, log port.Logger) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet file %s: %w", path, err)
	}
	defer file.Close()

	var wallets []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !common.IsHexAddress(line) || !strings.HasPrefix(line, "0x") {
			log.Warn("Skipping invalid wallet address", "file", path, "line", lineNum, "address", line)
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		wallets = append(wallets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning wallet file %s: %w", path, err)
	}

	log.Debug("Wallets loaded", "count", len(wallets), "path", path)
	return wallets, nil
}
