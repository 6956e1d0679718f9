// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain"
)

// Client — тонкий адаптер над RPC solana-go. Он не делает ретраев: каждый
// вызов — один запрос к следующему эндпоинту пула.
type Client struct {
	pool       *RPCPool
	logger     *zap.Logger
	commitment rpc.CommitmentType
}

// NewClient создаёт новый клиент над одним или несколькими RPC-эндпоинтами
// на уровне подтверждения confirmed.
func NewClient(rpcList []string, logger *zap.Logger) (*Client, error) {
	return NewClientWithCommitment(rpcList, rpc.CommitmentConfirmed, logger)
}

// NewClientWithCommitment создаёт клиент, читающий на заданном уровне
// подтверждения.
func NewClientWithCommitment(rpcList []string, commitment rpc.CommitmentType, logger *zap.Logger) (*Client, error) {
	if len(rpcList) == 0 {
		return nil, errors.New("empty RPC list")
	}
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Client{
		pool:       NewRPCPool(rpcList),
		logger:     logger.Named("solbc-client"),
		commitment: commitment,
	}, nil
}

// GetAccountData получает сырые данные одного аккаунта.
func (c *Client) GetAccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	result, err := c.pool.GetClient().GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", blockchain.ErrAccountNotFound, address)
		}
		c.logger.Debug("GetAccountData error", zap.String("address", address.String()), zap.Error(err))
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("%w: %s", blockchain.ErrAccountNotFound, address)
	}
	return result.Value.Data.GetBinary(), nil
}

// GetMultipleAccountsData получает данные нескольких аккаунтов за один
// запрос. Отсутствующие аккаунты возвращаются как nil на своих позициях.
func (c *Client) GetMultipleAccountsData(ctx context.Context, addresses []solana.PublicKey) ([][]byte, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	resp, err := c.pool.GetClient().GetMultipleAccountsWithOpts(ctx, addresses, &rpc.GetMultipleAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetMultipleAccountsData error", zap.Int("count", len(addresses)), zap.Error(err))
		return nil, err
	}
	data := make([][]byte, len(addresses))
	for i, info := range resp.Value {
		if info != nil {
			data[i] = info.Data.GetBinary()
		}
	}
	return data, nil
}

// GetProgramAccounts получает все аккаунты, принадлежащие программе.
func (c *Client) GetProgramAccounts(ctx context.Context, programID solana.PublicKey) ([]blockchain.ProgramAccount, error) {
	accounts, err := c.pool.GetClient().GetProgramAccountsWithOpts(ctx, programID, &rpc.GetProgramAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetProgramAccounts error", zap.String("program_id", programID.String()), zap.Error(err))
		return nil, err
	}
	return keyedAccounts(accounts), nil
}

// GetTokenAccountsByMint получает SPL токен-аккаунты, держащие данный минт.
func (c *Client) GetTokenAccountsByMint(ctx context.Context, mint solana.PublicKey) ([]blockchain.ProgramAccount, error) {
	accounts, err := c.pool.GetClient().GetProgramAccountsWithOpts(ctx, solana.TokenProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{DataSize: 165},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: mint.Bytes()}},
		},
	})
	if err != nil {
		c.logger.Debug("GetTokenAccountsByMint error", zap.String("mint", mint.String()), zap.Error(err))
		return nil, err
	}
	return keyedAccounts(accounts), nil
}

func keyedAccounts(accounts rpc.GetProgramAccountsResult) []blockchain.ProgramAccount {
	out := make([]blockchain.ProgramAccount, 0, len(accounts))
	for _, acc := range accounts {
		var data []byte
		if acc.Account != nil {
			data = acc.Account.Data.GetBinary()
		}
		out = append(out, blockchain.ProgramAccount{Pubkey: acc.Pubkey, Data: data})
	}
	return out
}

// GetSignaturesForAddress получает недавние сигнатуры транзакций адреса.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]blockchain.SignatureInfo, error) {
	opts := &rpc.GetSignaturesForAddressOpts{Commitment: rpc.CommitmentConfirmed}
	if limit > 0 {
		opts.Limit = &limit
	}
	signatures, err := c.pool.GetClient().GetSignaturesForAddressWithOpts(ctx, address, opts)
	if err != nil {
		c.logger.Debug("GetSignaturesForAddress error", zap.String("address", address.String()), zap.Error(err))
		return nil, err
	}
	out := make([]blockchain.SignatureInfo, 0, len(signatures))
	for _, sig := range signatures {
		info := blockchain.SignatureInfo{
			Signature: sig.Signature,
			Failed:    sig.Err != nil,
		}
		if sig.BlockTime != nil {
			t := time.Unix(int64(*sig.BlockTime), 0)
			info.BlockTime = &t
		}
		out = append(out, info)
	}
	return out, nil
}

// GetTransactionBlockTime получает время блока подтверждённой транзакции.
func (c *Client) GetTransactionBlockTime(ctx context.Context, signature solana.Signature) (*time.Time, error) {
	tx, err := c.pool.GetClient().GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		c.logger.Debug("GetTransaction error", zap.String("signature", signature.String()), zap.Error(err))
		return nil, err
	}
	if tx == nil || tx.BlockTime == nil {
		return nil, nil
	}
	t := time.Unix(int64(*tx.BlockTime), 0)
	return &t, nil
}

// SimulateTransaction симулирует транзакцию и возвращает результат симуляции.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	result, err := c.pool.GetClient().SimulateTransaction(ctx, tx)
	if err != nil {
		c.logger.Debug("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	units := uint64(0)
	if result.Value.UnitsConsumed != nil {
		units = *result.Value.UnitsConsumed
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: units,
	}, nil
}

// SendTransaction отправляет транзакцию.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.pool.GetClient().SendTransaction(ctx, tx)
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetSignatureStatus получает статус подтверждения сигнатуры, либо nil,
// когда кластер её ещё не знает.
func (c *Client) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*blockchain.SignatureStatus, error) {
	result, err := c.pool.GetClient().GetSignatureStatuses(ctx, false, signature)
	if err != nil {
		c.logger.Debug("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return nil, nil
	}
	status := result.Value[0]
	confirmed := status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized
	return &blockchain.SignatureStatus{Confirmed: confirmed, Err: status.Err}, nil
}

// GetLatestBlockhash получает последний blockhash для сборки транзакции.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.pool.GetClient().GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Debug("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// GetFeeForMessage оценивает сетевую комиссию для скомпилированного сообщения.
func (c *Client) GetFeeForMessage(ctx context.Context, msg *solana.Message) (uint64, error) {
	raw, err := msg.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("failed to serialize message: %w", err)
	}
	result, err := c.pool.GetClient().GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(raw), c.commitment)
	if err != nil {
		c.logger.Debug("GetFeeForMessage error", zap.Error(err))
		return 0, err
	}
	if result.Value == nil {
		return 0, errors.New("fee not available for message")
	}
	return *result.Value, nil
}

var _ blockchain.Client = (*Client)(nil)
