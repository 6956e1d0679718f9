// internal/blockchain/blockchain.go
package blockchain

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound marks a lookup of an address the cluster has no account
// for. Implementations wrap it so callers can distinguish missing accounts
// from transport failures.
var ErrAccountNotFound = errors.New("account not found")

// ProgramAccount is one (address, raw data) pair from a program scan.
type ProgramAccount struct {
	Pubkey solana.PublicKey
	Data   []byte
}

// SignatureInfo is a confirmed-signature listing entry for an address.
type SignatureInfo struct {
	Signature solana.Signature
	BlockTime *time.Time
	Failed    bool
}

// SimulationResult is the outcome of a transaction simulation.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// SignatureStatus reports the confirmation state of a submitted transaction.
type SignatureStatus struct {
	Confirmed bool
	Err       interface{}
}

// Client is the transport consumed by the pricing and trading components.
// Implementations never retry; callers decide their own retry policy.
type Client interface {
	// GetAccountData returns the raw data of a single account.
	GetAccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
	// GetMultipleAccountsData returns raw data for each address; a missing
	// account yields a nil slice at its position.
	GetMultipleAccountsData(ctx context.Context, addresses []solana.PublicKey) ([][]byte, error)
	// GetProgramAccounts scans all accounts owned by a program.
	GetProgramAccounts(ctx context.Context, programID solana.PublicKey) ([]ProgramAccount, error)
	// GetTokenAccountsByMint lists SPL token accounts holding the given mint.
	GetTokenAccountsByMint(ctx context.Context, mint solana.PublicKey) ([]ProgramAccount, error)
	// GetSignaturesForAddress lists recent transaction signatures touching an
	// address, newest first, up to limit.
	GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]SignatureInfo, error)
	// GetTransactionBlockTime resolves the wall-clock time of a transaction,
	// or nil when the ledger carries no timestamp for it.
	GetTransactionBlockTime(ctx context.Context, signature solana.Signature) (*time.Time, error)
	// SimulateTransaction runs the transaction against current cluster state.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	// SendTransaction submits a signed transaction.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// GetSignatureStatus returns the confirmation status of a signature, or
	// nil when the cluster does not know it yet.
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*SignatureStatus, error)
	// GetLatestBlockhash fetches a recent blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	// GetFeeForMessage estimates the network fee for a compiled message.
	GetFeeForMessage(ctx context.Context, msg *solana.Message) (uint64, error)
}
