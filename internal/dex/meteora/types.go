// =============================
// File: internal/dex/meteora/types.go
// =============================
package meteora

import (
	"github.com/gagliardetto/solana-go"
)

// TimeFrame — поддерживаемый интервал свечи.
type TimeFrame string

const (
	TimeFrameM1  TimeFrame = "1m"
	TimeFrameM5  TimeFrame = "5m"
	TimeFrameM15 TimeFrame = "15m"
	TimeFrameH1  TimeFrame = "1h"
	TimeFrameH4  TimeFrame = "4h"
	TimeFrameD1  TimeFrame = "1d"
)

// Seconds возвращает длительность фрейма в секундах, 0 для неизвестного.
func (tf TimeFrame) Seconds() int64 {
	switch tf {
	case TimeFrameM1:
		return 60
	case TimeFrameM5:
		return 300
	case TimeFrameM15:
		return 900
	case TimeFrameH1:
		return 3600
	case TimeFrameH4:
		return 14400
	case TimeFrameD1:
		return 86400
	}
	return 0
}

// Valid проверяет, что tf — один из поддерживаемых интервалов.
func (tf TimeFrame) Valid() bool {
	return tf.Seconds() > 0
}

func (tf TimeFrame) String() string {
	return string(tf)
}

// PoolInfo — снимок одного пула ликвидности. Резервы и decimals читаются
// вместе и корректны только на момент загрузки.
type PoolInfo struct {
	Address             solana.PublicKey
	TokenAMint          solana.PublicKey
	TokenBMint          solana.PublicKey
	TokenAReserve       solana.PublicKey
	TokenBReserve       solana.PublicKey
	LPMint              solana.PublicKey
	FeeAccount          solana.PublicKey
	TradeFeeBps         uint64
	TokenADecimals      uint8
	TokenBDecimals      uint8
	TokenAReserveAmount uint64
	TokenBReserveAmount uint64
	LPSupply            uint64
}

// Liquidity возвращает суммарный сырой резерв, используемый как вес пула.
func (p *PoolInfo) Liquidity() uint64 {
	return p.TokenAReserveAmount + p.TokenBReserveAmount
}

// HasMint проверяет, содержит ли пул токен с любой стороны.
func (p *PoolInfo) HasMint(mint solana.PublicKey) bool {
	return p.TokenAMint.Equals(mint) || p.TokenBMint.Equals(mint)
}

// TokenPrice представляет цену токена на момент времени.
type TokenPrice struct {
	TokenMint solana.PublicKey `json:"token_mint"`
	SolPrice  float64          `json:"sol_price"`
	USDPrice  float64          `json:"usd_price"`
	Timestamp int64            `json:"timestamp"`
	Liquidity uint64           `json:"liquidity"`
}

// CandleStick — запись OHLCV фиксированного интервала. Timestamp всегда
// кратен длительности фрейма в секундах.
type CandleStick struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp int64     `json:"timestamp"`
	TimeFrame TimeFrame `json:"time_frame"`
}

// TokenInfo описывает минт токена и его держателей.
type TokenInfo struct {
	Mint        solana.PublicKey
	Decimals    uint8
	Supply      uint64
	HolderCount uint64
	Metadata    *TokenMetadata
}

// TokenMetadata — он-чейн метаданные Metaplex для минта.
type TokenMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri"`
}

// TradeParams содержит параметры запрошенного свапа.
type TradeParams struct {
	InputMint   solana.PublicKey
	OutputMint  solana.PublicKey
	AmountIn    uint64
	SlippageBps uint16
	User        solana.PublicKey
}

// TradeQuote — ответ на запрос TradeParams. Котировка корректна только
// относительно снимка резервов, который ее породил.
type TradeQuote struct {
	AmountOut    uint64
	MinAmountOut uint64
	PriceImpact  float64
	FeeAmount    uint64
	Route        []solana.PublicKey
}

// SwapSimulation — результат симуляции построенных свап-инструкций.
type SwapSimulation struct {
	Success       bool
	Logs          []string
	UnitsConsumed uint64
	PriceImpact   float64
	ActualOutput  uint64
}

// swapEvent — одно синтетическое торговое наблюдение для построения свечей.
type swapEvent struct {
	timestamp    int64
	inputMint    solana.PublicKey
	outputMint   solana.PublicKey
	inputAmount  uint64
	outputAmount uint64
	price        float64
	volumeUSD    float64
}
