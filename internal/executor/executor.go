// Package executor turns an approved decision into signed, submitted
// transactions.
package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CorridorBot/internal/model"
	"CorridorBot/internal/pricing"
)

// Router quotes, builds, signs, and submits swap transactions through
// exactly one of two paths: direct RPC broadcast, or a Jito-style relay when
// a relay URL is configured. The paths are never raced or combined.
type Router struct {
	Quotes   *pricing.Client
	RPC      *rpc.Client
	Owner    solana.PrivateKey
	GCMint   string
	USDCMint string
	SOLMint  string
	JitoURL  string
	JitoAuth string
	HTTP     *http.Client

	log zerolog.Logger
}

// NewRouter wires a Router. relayURL empty selects the direct path.
func NewRouter(quotes *pricing.Client, rpcClient *rpc.Client, owner solana.PrivateKey,
	gcMint, usdcMint, solMint, jitoURL, jitoAuth string, log zerolog.Logger) *Router {
	return &Router{
		Quotes:   quotes,
		RPC:      rpcClient,
		Owner:    owner,
		GCMint:   gcMint,
		USDCMint: usdcMint,
		SOLMint:  solMint,
		JitoURL:  jitoURL,
		JitoAuth: jitoAuth,
		HTTP:     &http.Client{Timeout: 20 * time.Second},
		log:      log,
	}
}

// Execute runs the full pipeline for an approved decision with positive
// size. Submission is sequential and not retried: the first failure aborts
// the remainder and is fatal for the cycle. Transactions already submitted
// are not rolled back.
func (r *Router) Execute(ctx context.Context, dec model.Decision) ([]string, error) {
	inputMint, outputMint, size := r.tradeLeg(dec)
	if !size.IsPositive() {
		return nil, fmt.Errorf("execute called with non-positive size")
	}

	quote, err := r.Quotes.ComputeSwap(ctx, inputMint, outputMint, size)
	if err != nil {
		return nil, fmt.Errorf("execution quote: %w", err)
	}

	payloads, err := r.buildTransactions(ctx, quote, inputMint == r.SOLMint, outputMint == r.SOLMint)
	if err != nil {
		return nil, err
	}

	sigs := make([]string, 0, len(payloads))
	for i, payload := range payloads {
		sig, err := r.signAndSubmit(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("submit tx %d/%d: %w", i+1, len(payloads), err)
		}
		r.log.Info().Str("sig", sig).Int("tx", i+1).Int("of", len(payloads)).Msg("transaction submitted")
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

func (r *Router) tradeLeg(dec model.Decision) (inputMint, outputMint string, size decimal.Decimal) {
	if dec.Action == model.ActionSell {
		return r.GCMint, r.USDCMint, dec.SizeGC
	}
	return dec.StableMint, r.GCMint, dec.StableSize()
}

// buildTransactions asks the trade API to construct the unsigned swap
// transactions. There may be more than one (setup + swap).
func (r *Router) buildTransactions(ctx context.Context, quote pricing.Quote, wrapSol, unwrapSol bool) ([]string, error) {
	fee := r.Quotes.PriorityFee(ctx)
	body, err := json.Marshal(map[string]any{
		"computeUnitPriceMicroLamports": fmt.Sprintf("%d", fee),
		"swapResponse":                  json.RawMessage(quote.Raw),
		"txVersion":                     "V0",
		"wallet":                        r.Owner.PublicKey().String(),
		"wrapSol":                       wrapSol,
		"unwrapSol":                     unwrapSol,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.Quotes.SwapHost+"/transaction/swap-base-in", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("build transactions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("build transactions: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		Data []struct {
			Transaction string `json:"transaction"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode build response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("build transactions: empty transaction list")
	}
	payloads := make([]string, len(out.Data))
	for i, d := range out.Data {
		payloads[i] = d.Transaction
	}
	return payloads, nil
}

func (r *Router) signAndSubmit(ctx context.Context, payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode tx: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("unmarshal tx: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(r.Owner.PublicKey()) {
			return &r.Owner
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	if r.JitoURL != "" {
		return r.submitRelay(ctx, tx)
	}
	return r.submitDirect(ctx, tx)
}

func (r *Router) submitDirect(ctx context.Context, tx *solana.Transaction) (string, error) {
	sig, err := r.RPC.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("rpc send: %w", err)
	}
	return sig.String(), nil
}

// submitRelay broadcasts through the relay's JSON-RPC sendTransaction with
// the optional auth header.
func (r *Router) submitRelay(ctx context.Context, tx *solana.Transaction) (string, error) {
	signed, err := tx.ToBase64()
	if err != nil {
		return "", fmt.Errorf("encode signed tx: %w", err)
	}
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "sendTransaction",
		"params":  []any{signed, map[string]string{"encoding": "base64"}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.JitoURL+"/api/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.JitoAuth != "" {
		req.Header.Set("x-jito-auth", r.JitoAuth)
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("relay send: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		Result string `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode relay response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("relay send: %s", out.Error.Message)
	}
	return out.Result, nil
}
