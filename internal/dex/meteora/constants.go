// =============================
// File: internal/dex/meteora/constants.go
// =============================
package meteora

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Известные адреса программ и минтов.
var (
	// MeteoraProgramID — AMM-программа Meteora.
	MeteoraProgramID = solana.MustPublicKeyFromBase58("Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB")

	// MetaplexProgramID — программа токен-метаданных Metaplex.
	MetaplexProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	// USDCMint — канонический минт USDC в мейннете.
	USDCMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	// WSOLMint — минт обернутого SOL.
	WSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

const (
	// DefaultTradeFeeBps — стандартная LP-комиссия Meteora (0.3%). Комиссия
	// не хранится в декодируемом нами лейауте аккаунта, поэтому каждый пул
	// несет ее.
	DefaultTradeFeeBps uint64 = 30

	// MaxSlippageBps — максимальный допуск проскальзывания для сделки (50%).
	MaxSlippageBps uint16 = 5000

	// MinPoolLiquidity — пылевой фильтр: пулы с суммарным резервом на этом
	// уровне и ниже исключаются из взвешенного ценообразования.
	MinPoolLiquidity uint64 = 1000

	// FallbackSolUSDPrice используется, когда пул WSOL/USDC не найден.
	FallbackSolUSDPrice = 100.0

	// DefaultPoolCacheTTL ограничивает доверие к кешированным данным пула.
	DefaultPoolCacheTTL = 5 * time.Minute

	// HistoryRefreshInterval ограничивает частоту пересборки истории свечей
	// на минт.
	HistoryRefreshInterval = 5 * time.Minute

	// MaxCachedCandles ограничивает серию свечей на (минт, таймфрейм).
	MaxCachedCandles = 1000

	// PoolAccountMinLen — минимальный размер аккаунта с лейаутом пула.
	PoolAccountMinLen = 300

	// Смещения полей лейаута пула: шесть 32-байтовых pubkey после
	// 8-байтового дискриминатора.
	poolLayoutStart = 8
	poolLayoutEnd   = 200

	// Поле amount SPL токен-аккаунта (u64 LE).
	tokenAccountAmountOffset = 64
	tokenAccountMinLen       = 72

	// Лейаут SPL-минта: supply u64 LE по смещению 36, decimals u8 по 44.
	mintSupplyOffset = 36
	mintDecimalsByte = 44
	mintAccountLen   = 82
)
