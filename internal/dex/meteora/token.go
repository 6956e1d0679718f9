// ==================================
// File: internal/dex/meteora/token.go
// ==================================
package meteora

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain"
)

// TokenManager читает состояние минта, число держателей и метаданные Metaplex.
type TokenManager struct {
	client blockchain.Client
	logger *zap.Logger
}

func NewTokenManager(client blockchain.Client, logger *zap.Logger) *TokenManager {
	return &TokenManager{
		client: client,
		logger: logger.Named("token_manager"),
	}
}

// GetTokenInfo собирает supply, decimals, число держателей и метаданные
// одного токена. Метаданные опциональны: минт без аккаунта Metaplex все
// равно резолвится, Metadata остается nil.
func (tm *TokenManager) GetTokenInfo(ctx context.Context, mint solana.PublicKey) (*TokenInfo, error) {
	data, err := tm.client.GetAccountData(ctx, mint)
	if err != nil {
		if errors.Is(err, blockchain.ErrAccountNotFound) {
			return nil, errAccountNotFound("mint " + mint.String())
		}
		return nil, errRPC(err)
	}
	decimals, supply, err := decodeMint(data)
	if err != nil {
		return nil, err
	}

	holders, err := tm.HolderCount(ctx, mint)
	if err != nil {
		tm.logger.Debug("holder count unavailable", zap.Stringer("mint", mint), zap.Error(err))
		holders = 0
	}

	info := &TokenInfo{
		Mint:        mint,
		Decimals:    decimals,
		Supply:      supply,
		HolderCount: holders,
	}
	meta, err := tm.GetTokenMetadata(ctx, mint)
	if err != nil {
		if !IsCode(err, ErrCodeAccountNotFound) {
			return nil, err
		}
		tm.logger.Debug("mint has no metadata account", zap.Stringer("mint", mint))
	} else {
		info.Metadata = meta
	}
	return info, nil
}

// HolderCount считает токен-аккаунты с ненулевым балансом минта.
func (tm *TokenManager) HolderCount(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	accounts, err := tm.client.GetTokenAccountsByMint(ctx, mint)
	if err != nil {
		return 0, errRPC(err)
	}
	var holders uint64
	for _, acc := range accounts {
		amount, err := decodeTokenAmount(acc.Data)
		if err != nil {
			continue
		}
		if amount > 0 {
			holders++
		}
	}
	return holders, nil
}

// GetTokenMetadata читает и парсит аккаунт метаданных Metaplex,
// производный от минта.
func (tm *TokenManager) GetTokenMetadata(ctx context.Context, mint solana.PublicKey) (*TokenMetadata, error) {
	metadataAddr, err := metadataAddress(mint)
	if err != nil {
		return nil, err
	}
	data, err := tm.client.GetAccountData(ctx, metadataAddr)
	if err != nil {
		if errors.Is(err, blockchain.ErrAccountNotFound) {
			return nil, errAccountNotFound("metadata account " + metadataAddr.String())
		}
		return nil, errRPC(err)
	}
	return parseTokenMetadata(data)
}

func metadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("metadata"), MetaplexProgramID[:], mint[:]},
		MetaplexProgramID)
	if err != nil {
		return solana.PublicKey{}, errCalculation("derive metadata address: " + err.Error())
	}
	return addr, nil
}

// parseTokenMetadata декодирует borsh-голову аккаунта метаданных Metaplex:
// однобайтовый ключ, два pubkey, затем строки name, symbol и uri с
// префиксом длины. Строки в чейне дополнены нулями.
func parseTokenMetadata(data []byte) (*TokenMetadata, error) {
	const headerLen = 1 + 32 + 32
	offset := headerLen

	name, offset, err := readBorshString(data, offset)
	if err != nil {
		return nil, err
	}
	symbol, offset, err := readBorshString(data, offset)
	if err != nil {
		return nil, err
	}
	uri, _, err := readBorshString(data, offset)
	if err != nil {
		return nil, err
	}
	return &TokenMetadata{
		Name:   strings.TrimRight(name, "\x00"),
		Symbol: strings.TrimRight(symbol, "\x00"),
		URI:    strings.TrimRight(uri, "\x00"),
	}, nil
}

func readBorshString(data []byte, offset int) (string, int, error) {
	if offset+4 > len(data) {
		return "", 0, newError(ErrCodeInvalidAccountData, "metadata string length out of bounds", nil)
	}
	strLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if strLen < 0 || offset+strLen > len(data) {
		return "", 0, newError(ErrCodeInvalidAccountData, "metadata string body out of bounds", nil)
	}
	return string(data[offset : offset+strLen]), offset + strLen, nil
}
