// Package wallet loads the treasury signing keypair.
package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"
)

// Load parses a signing keypair from its secret representation. Two formats
// are accepted: a base58 string, or a JSON byte array as exported by
// solana-keygen ("[12,34,...]").
func Load(secret string) (solana.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("wallet secret is empty")
	}
	if strings.HasPrefix(secret, "[") {
		var arr []int
		if err := json.Unmarshal([]byte(secret), &arr); err != nil {
			return nil, fmt.Errorf("parse keypair byte array: %w", err)
		}
		if len(arr) != 64 {
			return nil, fmt.Errorf("keypair byte array has %d bytes, want 64", len(arr))
		}
		raw := make([]byte, len(arr))
		for i, b := range arr {
			if b < 0 || b > 255 {
				return nil, fmt.Errorf("keypair byte array entry %d out of range: %d", i, b)
			}
			raw[i] = byte(b)
		}
		return solana.PrivateKey(raw), nil
	}
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("parse base58 keypair: %w", err)
	}
	return key, nil
}
