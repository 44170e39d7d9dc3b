package wallet

import (
	"encoding/json"
	"strings"
	"testing"

	solana "github.com/gagliardetto/solana-go"
)

func TestLoad_Base58(t *testing.T) {
	want := solana.NewWallet().PrivateKey
	got, err := Load(want.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.PublicKey().Equals(want.PublicKey()) {
		t.Errorf("public key mismatch: got %s, want %s", got.PublicKey(), want.PublicKey())
	}
}

func TestLoad_JSONByteArray(t *testing.T) {
	want := solana.NewWallet().PrivateKey
	arr := make([]int, len(want))
	for i, b := range want {
		arr[i] = int(b)
	}
	raw, err := json.Marshal(arr)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Load(string(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.PublicKey().Equals(want.PublicKey()) {
		t.Errorf("public key mismatch: got %s, want %s", got.PublicKey(), want.PublicKey())
	}
}

func TestLoad_TrimsWhitespace(t *testing.T) {
	want := solana.NewWallet().PrivateKey
	if _, err := Load("  " + want.String() + "\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"garbage base58", "not!!valid!!base58"},
		{"short byte array", "[1,2,3]"},
		{"out of range entry", `[300` + strings.Repeat(",1", 63) + `]`},
		{"malformed json", "[1,2,"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(c.secret); err == nil {
				t.Errorf("expected error for %q", c.secret)
			}
		})
	}
}
