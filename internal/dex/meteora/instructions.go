// ==================================
// File: internal/dex/meteora/instructions.go
// ==================================
package meteora

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain"
)

// swapInstructionTag идентифицирует точку входа свапа в диспетчере
// инструкций программы пула.
const swapInstructionTag = 9

// BuildSwapInstructions собирает список инструкций для котированного свапа:
// создание ассоциированного токен-аккаунта выходного минта, если у
// пользователя его еще нет, затем сам свап пула.
func (t *Trade) BuildSwapInstructions(ctx context.Context, params *TradeParams, quote *TradeQuote) ([]solana.Instruction, error) {
	if len(quote.Route) == 0 {
		return nil, errInvalidInput("quote carries no route")
	}
	pool, err := t.pools.GetPoolInfoCached(ctx, quote.Route[0])
	if err != nil {
		return nil, err
	}

	userIn, _, err := solana.FindAssociatedTokenAddress(params.User, params.InputMint)
	if err != nil {
		return nil, errCalculation("derive input token address: " + err.Error())
	}
	userOut, _, err := solana.FindAssociatedTokenAddress(params.User, params.OutputMint)
	if err != nil {
		return nil, errCalculation("derive output token address: " + err.Error())
	}

	var instrs []solana.Instruction
	if _, err := t.client.GetAccountData(ctx, userOut); err != nil {
		if !errors.Is(err, blockchain.ErrAccountNotFound) {
			return nil, errRPC(err)
		}
		instrs = append(instrs,
			associatedtokenaccount.NewCreateInstruction(params.User, params.User, params.OutputMint).Build())
	}

	swapIx, err := buildPoolSwapInstruction(pool, params, quote, userIn, userOut)
	if err != nil {
		return nil, err
	}
	return append(instrs, swapIx), nil
}

// buildPoolSwapInstruction кодирует вызов свапа против одного пула.
// Порядок аккаунтов зафиксирован программой: состояние пула, authority
// свапа, пользователь, источник пользователя, входной резерв пула,
// выходной резерв пула, получатель пользователя, аккаунт комиссии,
// токен-программа.
func buildPoolSwapInstruction(pool *PoolInfo, params *TradeParams, quote *TradeQuote, userIn, userOut solana.PublicKey) (solana.Instruction, error) {
	authority, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("amm"), pool.Address[:]}, MeteoraProgramID)
	if err != nil {
		return nil, errCalculation("derive pool authority: " + err.Error())
	}

	reserveIn, reserveOut := pool.TokenAReserve, pool.TokenBReserve
	if !pool.TokenAMint.Equals(params.InputMint) {
		reserveIn, reserveOut = reserveOut, reserveIn
	}

	data := make([]byte, 17)
	data[0] = swapInstructionTag
	binary.LittleEndian.PutUint64(data[1:9], params.AmountIn)
	binary.LittleEndian.PutUint64(data[9:17], quote.MinAmountOut)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(pool.Address, true, false),
		solana.NewAccountMeta(authority, false, false),
		solana.NewAccountMeta(params.User, false, true),
		solana.NewAccountMeta(userIn, true, false),
		solana.NewAccountMeta(reserveIn, true, false),
		solana.NewAccountMeta(reserveOut, true, false),
		solana.NewAccountMeta(userOut, true, false),
		solana.NewAccountMeta(pool.FeeAccount, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(MeteoraProgramID, accounts, data), nil
}

// BuildApproveInstruction делегирует право расходования amount токенов на
// аккаунте source.
func BuildApproveInstruction(source, delegate, owner solana.PublicKey, amount uint64) (solana.Instruction, error) {
	ix, err := token.NewApproveInstruction(amount, source, delegate, owner, nil).ValidateAndBuild()
	if err != nil {
		return nil, errDeserialization(err)
	}
	return ix, nil
}

// BuildTransferInstruction переводит amount токенов между двумя
// токен-аккаунтами владельца owner.
func BuildTransferInstruction(source, destination, owner solana.PublicKey, amount uint64) (solana.Instruction, error) {
	ix, err := token.NewTransferInstruction(amount, source, destination, owner, nil).ValidateAndBuild()
	if err != nil {
		return nil, errDeserialization(err)
	}
	return ix, nil
}
