// Package treasury reads the on-chain holdings of the rebalancer wallet.
package treasury

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"CorridorBot/internal/model"
)

// Reader snapshots SPL balances for the owner across all token accounts.
type Reader struct {
	rpc   *rpc.Client
	owner solana.PublicKey
	gc    solana.PublicKey
	usdc  solana.PublicKey
	usdt  solana.PublicKey
}

// NewReader builds a Reader for the three treasury mints.
func NewReader(client *rpc.Client, owner solana.PublicKey, gcMint, usdcMint, usdtMint string) (*Reader, error) {
	gc, err := solana.PublicKeyFromBase58(gcMint)
	if err != nil {
		return nil, fmt.Errorf("parse gc mint: %w", err)
	}
	usdc, err := solana.PublicKeyFromBase58(usdcMint)
	if err != nil {
		return nil, fmt.Errorf("parse usdc mint: %w", err)
	}
	usdt, err := solana.PublicKeyFromBase58(usdtMint)
	if err != nil {
		return nil, fmt.Errorf("parse usdt mint: %w", err)
	}
	return &Reader{rpc: client, owner: owner, gc: gc, usdc: usdc, usdt: usdt}, nil
}

// Snapshot reads all three balances fresh. Nothing is cached across cycles.
func (r *Reader) Snapshot(ctx context.Context) (model.Balances, error) {
	gc, err := r.mintBalance(ctx, r.gc)
	if err != nil {
		return model.Balances{}, fmt.Errorf("gc balance: %w", err)
	}
	usdc, err := r.mintBalance(ctx, r.usdc)
	if err != nil {
		return model.Balances{}, fmt.Errorf("usdc balance: %w", err)
	}
	usdt, err := r.mintBalance(ctx, r.usdt)
	if err != nil {
		return model.Balances{}, fmt.Errorf("usdt balance: %w", err)
	}
	return model.Balances{
		TreasuryGC: gc,
		VaultUSDC:  usdc,
		VaultUSDT:  usdt,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// parsedTokenAccount is the jsonParsed shape of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			TokenAmount struct {
				UIAmountString string `json:"uiAmountString"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

func (r *Reader) mintBalance(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error) {
	res, err := r.rpc.GetTokenAccountsByOwner(
		ctx,
		r.owner,
		&rpc.GetTokenAccountsConfig{Mint: &mint},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get token accounts: %w", err)
	}

	total := decimal.Zero
	for _, acc := range res.Value {
		raw := acc.Account.Data.GetRawJSON()
		var parsed parsedTokenAccount
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return decimal.Zero, fmt.Errorf("parse token account: %w", err)
		}
		amt, err := decimal.NewFromString(parsed.Parsed.Info.TokenAmount.UIAmountString)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse token amount: %w", err)
		}
		total = total.Add(amt)
	}
	return total, nil
}
