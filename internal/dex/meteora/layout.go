// =============================
// File: internal/dex/meteora/layout.go
// =============================
package meteora

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// poolLayout holds the account references decoded from a raw pool account.
// The layout is six 32-byte pubkeys at [8..200) after the discriminator.
type poolLayout struct {
	tokenAMint    solana.PublicKey
	tokenBMint    solana.PublicKey
	tokenAReserve solana.PublicKey
	tokenBReserve solana.PublicKey
	lpMint        solana.PublicKey
	feeAccount    solana.PublicKey
}

// parsePoolAccount decodes the fixed pool layout. Accounts shorter than
// PoolAccountMinLen cannot be pools.
func parsePoolAccount(data []byte) (*poolLayout, error) {
	if len(data) < PoolAccountMinLen {
		return nil, newError(ErrCodeInvalidPoolData, "account too short for pool layout", nil)
	}
	fields := make([]solana.PublicKey, 0, 6)
	for off := poolLayoutStart; off < poolLayoutEnd; off += 32 {
		fields = append(fields, solana.PublicKeyFromBytes(data[off:off+32]))
	}
	return &poolLayout{
		tokenAMint:    fields[0],
		tokenBMint:    fields[1],
		tokenAReserve: fields[2],
		tokenBReserve: fields[3],
		lpMint:        fields[4],
		feeAccount:    fields[5],
	}, nil
}

// decodeTokenAmount reads the u64 balance of an SPL token account.
func decodeTokenAmount(data []byte) (uint64, error) {
	if len(data) < tokenAccountMinLen {
		return 0, newError(ErrCodeInvalidAccountData, "token account too short", nil)
	}
	return binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8]), nil
}

// decodeMint reads decimals and supply from an SPL mint account.
func decodeMint(data []byte) (decimals uint8, supply uint64, err error) {
	if len(data) < mintAccountLen {
		return 0, 0, newError(ErrCodeInvalidAccountData, "mint account too short", nil)
	}
	supply = binary.LittleEndian.Uint64(data[mintSupplyOffset : mintSupplyOffset+8])
	decimals = data[mintDecimalsByte]
	return decimals, supply, nil
}
