// ==================================
// File: internal/dex/meteora/trade.go
// ==================================
package meteora

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain"
	"github.com/rovshanmuradov/meteora-client/internal/wallet"
)

// Фолбэчные оценки комиссии (в лампортах), когда кластер не может оценить
// сообщение.
const (
	fallbackFeeLamports        = 5000
	fallbackFeeNoBlockhash     = 10000
	confirmationPollInterval   = time.Second
	defaultConfirmationTimeout = 60 * time.Second
)

// Trade котирует и исполняет свапы по формуле постоянного произведения против
// пулов, найденных общим PoolManager.
type Trade struct {
	client blockchain.Client
	pools  *PoolManager
	logger *zap.Logger
}

func NewTrade(client blockchain.Client, pools *PoolManager, logger *zap.Logger) *Trade {
	return &Trade{
		client: client,
		pools:  pools,
		logger: logger.Named("trade"),
	}
}

func validateTradeParams(params *TradeParams) error {
	if params.AmountIn == 0 {
		return errInvalidInput("swap amount must be positive")
	}
	if params.SlippageBps > MaxSlippageBps {
		return errInvalidInput(fmt.Sprintf("slippage %d bps exceeds maximum %d", params.SlippageBps, MaxSlippageBps))
	}
	if params.InputMint.Equals(params.OutputMint) {
		return errInvalidInput("input and output mints must differ")
	}
	if params.User.IsZero() {
		return errInvalidInput("user public key is required")
	}
	return nil
}

// CalculateSwapOutput применяет формулу постоянного произведения с комиссией,
// вычитаемой из входной стороны. Вся арифметика — точная целочисленная.
func CalculateSwapOutput(amountIn uint64, pool *PoolInfo, inputMint solana.PublicKey) (uint64, error) {
	reserveIn := pool.TokenAReserveAmount
	reserveOut := pool.TokenBReserveAmount
	if !pool.TokenAMint.Equals(inputMint) {
		reserveIn, reserveOut = reserveOut, reserveIn
	}

	feeBps := new(big.Int).SetUint64(pool.TradeFeeBps)
	scale := big.NewInt(10000)

	withFee := new(big.Int).SetUint64(amountIn)
	withFee.Mul(withFee, new(big.Int).Sub(scale, feeBps))
	withFee.Div(withFee, scale)

	num := new(big.Int).Mul(withFee, new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), scale)
	den.Add(den, withFee)
	if den.Sign() == 0 {
		return 0, errCalculation("swap denominator is zero: pool has no input reserve")
	}

	out := new(big.Int).Div(num, den)
	if !out.IsUint64() {
		return 0, errCalculation("swap output overflows uint64")
	}
	return out.Uint64(), nil
}

// CalculatePriceImpact вычисляет долю входного резерва после сделки, которую
// занимает сама сделка, в процентах. Пустой резерв считается полным
// воздействием.
func CalculatePriceImpact(amountIn uint64, pool *PoolInfo, inputMint solana.PublicKey) float64 {
	reserveIn := pool.TokenAReserveAmount
	if !pool.TokenAMint.Equals(inputMint) {
		reserveIn = pool.TokenBReserveAmount
	}
	if reserveIn == 0 {
		return 100.0
	}
	return float64(amountIn) / float64(reserveIn+amountIn) * 100.0
}

// selectBestPool оценивает каждый пул ликвидностью с дисконтом на комиссию и
// выбирает наибольший. Ничья разрешается в пользу лексикографически меньшего
// адреса, чтобы выбор был детерминированным.
func selectBestPool(pools []PoolInfo) *PoolInfo {
	var best *PoolInfo
	var bestScore float64
	for i := range pools {
		p := &pools[i]
		score := float64(p.Liquidity()) * (1 - float64(p.TradeFeeBps)/10000.0)
		switch {
		case best == nil, score > bestScore:
			best = p
			bestScore = score
		case score == bestScore && bytes.Compare(p.Address[:], best.Address[:]) < 0:
			best = p
		}
	}
	return best
}

// GetQuote котирует свап против первого найденного пула пары без валидации
// запроса.
func (t *Trade) GetQuote(ctx context.Context, params *TradeParams) (*TradeQuote, error) {
	pools, err := t.pools.FindPoolsForPair(ctx, params.InputMint, params.OutputMint)
	if err != nil {
		return nil, err
	}
	if len(pools) == 0 {
		return nil, newError(ErrCodeNoLiquidityPool, "no pool for requested pair", nil)
	}
	return t.quoteAgainstPool(params, &pools[0])
}

// GetQuoteWithValidation валидирует запрос, маршрутизирует через лучший
// доступный пул и отклоняет котировки, чье ценовое воздействие превышает
// допуск проскальзывания.
func (t *Trade) GetQuoteWithValidation(ctx context.Context, params *TradeParams) (*TradeQuote, error) {
	if err := validateTradeParams(params); err != nil {
		return nil, err
	}
	pools, err := t.pools.FindPoolsForPair(ctx, params.InputMint, params.OutputMint)
	if err != nil {
		return nil, err
	}
	if len(pools) == 0 {
		return nil, newError(ErrCodeNoLiquidityPool, "no pool for requested pair", nil)
	}
	best := selectBestPool(pools)

	impact := CalculatePriceImpact(params.AmountIn, best, params.InputMint)
	if impact > float64(params.SlippageBps)/100.0 {
		return nil, newError(ErrCodeSlippageExceeded,
			fmt.Sprintf("price impact %.2f%% exceeds slippage tolerance %.2f%%",
				impact, float64(params.SlippageBps)/100.0), nil)
	}

	quote, err := t.quoteAgainstPool(params, best)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("quote built",
		zap.Stringer("pool", best.Address),
		zap.Uint64("amount_in", params.AmountIn),
		zap.Uint64("amount_out", quote.AmountOut),
		zap.Float64("price_impact", quote.PriceImpact))
	return quote, nil
}

func (t *Trade) quoteAgainstPool(params *TradeParams, pool *PoolInfo) (*TradeQuote, error) {
	amountOut, err := CalculateSwapOutput(params.AmountIn, pool, params.InputMint)
	if err != nil {
		return nil, err
	}
	// GetQuote не валидирует параметры, поэтому допуск выше 100%
	// зажимается здесь, а не переполняется.
	slip := int64(params.SlippageBps)
	if slip > 10000 {
		slip = 10000
	}
	minOut := new(big.Int).SetUint64(amountOut)
	minOut.Mul(minOut, big.NewInt(10000-slip))
	minOut.Div(minOut, big.NewInt(10000))

	return &TradeQuote{
		AmountOut:    amountOut,
		MinAmountOut: minOut.Uint64(),
		PriceImpact:  CalculatePriceImpact(params.AmountIn, pool, params.InputMint),
		FeeAmount:    params.AmountIn * pool.TradeFeeBps / 10000,
		Route:        []solana.PublicKey{pool.Address},
	}, nil
}

// CheckUserBalance проверяет, что токен-аккаунт пользователя покрывает
// запрошенную входную сумму.
func (t *Trade) CheckUserBalance(ctx context.Context, user, mint solana.PublicKey, required uint64) error {
	ata, _, err := solana.FindAssociatedTokenAddress(user, mint)
	if err != nil {
		return errCalculation("derive associated token address: " + err.Error())
	}
	data, err := t.client.GetAccountData(ctx, ata)
	if err != nil {
		if errors.Is(err, blockchain.ErrAccountNotFound) {
			return errAccountNotFound("token account " + ata.String())
		}
		return errRPC(err)
	}
	balance, err := decodeTokenAmount(data)
	if err != nil {
		return err
	}
	if balance < required {
		return newError(ErrCodeInsufficientBalance,
			fmt.Sprintf("balance %d below required %d", balance, required), nil)
	}
	return nil
}

// EstimateTransactionFees просит кластер оценить пустое сообщение против
// свежего блокхеша, деградируя до фиксированных фолбэков, когда RPC-слой не
// может ответить.
func (t *Trade) EstimateTransactionFees(ctx context.Context) uint64 {
	blockhash, err := t.client.GetLatestBlockhash(ctx)
	if err != nil {
		t.logger.Warn("blockhash unavailable for fee estimate, using fallback",
			zap.Uint64("fallback", fallbackFeeNoBlockhash), zap.Error(err))
		return fallbackFeeNoBlockhash
	}
	msg := solana.Message{RecentBlockhash: blockhash}
	fee, err := t.client.GetFeeForMessage(ctx, &msg)
	if err != nil || fee == 0 {
		t.logger.Debug("fee lookup failed, using fallback",
			zap.Uint64("fallback", fallbackFeeLamports), zap.Error(err))
		return fallbackFeeLamports
	}
	return fee
}

// SimulateSwap строит свап-транзакцию для котировки и прогоняет ее против
// текущего состояния кластера без отправки.
func (t *Trade) SimulateSwap(ctx context.Context, params *TradeParams, quote *TradeQuote) (*SwapSimulation, error) {
	instrs, err := t.BuildSwapInstructions(ctx, params, quote)
	if err != nil {
		return nil, err
	}
	blockhash, err := t.client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, errRPC(err)
	}
	tx, err := solana.NewTransaction(instrs, blockhash, solana.TransactionPayer(params.User))
	if err != nil {
		return nil, errDeserialization(err)
	}
	result, err := t.client.SimulateTransaction(ctx, tx)
	if err != nil {
		return nil, errRPC(err)
	}
	return &SwapSimulation{
		Success:       result.Err == nil,
		Logs:          result.Logs,
		UnitsConsumed: result.UnitsConsumed,
		PriceImpact:   quote.PriceImpact,
		ActualOutput:  quote.AmountOut,
	}, nil
}

// ExecuteSwapSafe выполняет полный защищенный пайплайн: валидированная
// котировка, симуляция, повторная проверка выхода против нижней границы
// проскальзывания, проверка баланса, оценка комиссии, затем подпись,
// отправка и подтверждение.
func (t *Trade) ExecuteSwapSafe(ctx context.Context, params *TradeParams, w *wallet.Wallet, timeout time.Duration) (solana.Signature, error) {
	if timeout <= 0 {
		timeout = defaultConfirmationTimeout
	}

	quote, err := t.GetQuoteWithValidation(ctx, params)
	if err != nil {
		return solana.Signature{}, err
	}

	sim, err := t.SimulateSwap(ctx, params, quote)
	if err != nil {
		return solana.Signature{}, err
	}
	if !sim.Success {
		return solana.Signature{}, newError(ErrCodeSimulationFailed,
			"swap simulation failed against current cluster state", nil)
	}
	if sim.ActualOutput < quote.MinAmountOut {
		return solana.Signature{}, newError(ErrCodeSlippageExceeded,
			fmt.Sprintf("simulated output %d below minimum %d", sim.ActualOutput, quote.MinAmountOut), nil)
	}

	if err := t.CheckUserBalance(ctx, params.User, params.InputMint, params.AmountIn); err != nil {
		return solana.Signature{}, err
	}

	fee := t.EstimateTransactionFees(ctx)
	t.logger.Info("executing swap",
		zap.Stringer("input_mint", params.InputMint),
		zap.Stringer("output_mint", params.OutputMint),
		zap.Uint64("amount_in", params.AmountIn),
		zap.Uint64("min_amount_out", quote.MinAmountOut),
		zap.Uint64("fee_estimate", fee))

	instrs, err := t.BuildSwapInstructions(ctx, params, quote)
	if err != nil {
		return solana.Signature{}, err
	}
	blockhash, err := t.client.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, errRPC(err)
	}
	tx, err := solana.NewTransaction(instrs, blockhash, solana.TransactionPayer(w.PublicKey))
	if err != nil {
		return solana.Signature{}, errDeserialization(err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	}); err != nil {
		return solana.Signature{}, newError(ErrCodeTransactionFailed, "sign transaction", err)
	}

	sig, err := t.client.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, newError(ErrCodeTransactionFailed, "submit transaction", err)
	}
	t.logger.Info("swap submitted", zap.Stringer("signature", sig))

	if err := t.ConfirmTransactionWithTimeout(ctx, sig, timeout); err != nil {
		return sig, err
	}
	t.logger.Info("swap confirmed", zap.Stringer("signature", sig))
	return sig, nil
}

// ConfirmTransaction выполняет одну проверку подтверждения.
func (t *Trade) ConfirmTransaction(ctx context.Context, sig solana.Signature) (bool, error) {
	status, err := t.client.GetSignatureStatus(ctx, sig)
	if err != nil {
		return false, errRPC(err)
	}
	if status == nil {
		return false, nil
	}
	if status.Err != nil {
		return false, newError(ErrCodeTransactionFailed,
			fmt.Sprintf("transaction failed on chain: %v", status.Err), nil)
	}
	return status.Confirmed, nil
}

// ConfirmTransactionWithTimeout опрашивает статус сигнатуры с постоянным
// интервалом, пока она не подтвердится, не упадет он-чейн или не истечет
// таймаут.
func (t *Trade) ConfirmTransactionWithTimeout(ctx context.Context, sig solana.Signature, timeout time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	operation := func() (bool, error) {
		confirmed, err := t.ConfirmTransaction(cctx, sig)
		if err != nil {
			if IsCode(err, ErrCodeTransactionFailed) {
				return false, backoff.Permanent(err)
			}
			return false, err
		}
		if !confirmed {
			return false, errors.New("transaction not yet confirmed")
		}
		return true, nil
	}

	_, err := backoff.Retry(cctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(confirmationPollInterval)))
	if err == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code == ErrCodeTransactionFailed {
		return domainErr
	}
	if cctx.Err() != nil {
		return newError(ErrCodeTransactionTimeout,
			fmt.Sprintf("transaction %s not confirmed within %s", sig, timeout), cctx.Err())
	}
	return newError(ErrCodeTransactionFailed, "confirmation polling failed", err)
}
