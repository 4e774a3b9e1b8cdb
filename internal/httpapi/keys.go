package httpapi

import (
	"encoding/hex"
	"fmt"

	"github.com/merl-labs/clob/pkg/types"
)

func hexKey(k types.TraderKey) string { return hex.EncodeToString(k[:]) }

func parseTraderKey(s string) (types.TraderKey, error) {
	var k types.TraderKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("httpapi: decode trader key: %w", err)
	}
	if len(raw) != len(k) {
		return k, fmt.Errorf("httpapi: trader key must be %d bytes, got %d", len(k), len(raw))
	}
	copy(k[:], raw)
	return k, nil
}
