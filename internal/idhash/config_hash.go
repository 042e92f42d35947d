package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"swing-backtest-lab/internal/domain"
)

// ComputeConfigHash computes a deterministic hash of run parameters.
// Formula: SHA256(json(params)) where json uses the struct field order.
// Equal parameter sets always hash equal.
func ComputeConfigHash(params domain.RunParams) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
