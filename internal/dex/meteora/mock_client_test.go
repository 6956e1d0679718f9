// ==================================
// File: internal/dex/meteora/mock_client_test.go
// ==================================
package meteora

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain"
)

// mockClient is an in-memory blockchain.Client with per-method call counters.
type mockClient struct {
	mu sync.Mutex

	accounts        map[solana.PublicKey][]byte
	programAccounts map[solana.PublicKey][]blockchain.ProgramAccount
	tokenAccounts   map[solana.PublicKey][]blockchain.ProgramAccount
	signatures      map[solana.PublicKey][]blockchain.SignatureInfo
	blockTimes      map[solana.Signature]time.Time

	simResult *blockchain.SimulationResult
	sendSig   solana.Signature
	sendErr   error
	statuses  []*blockchain.SignatureStatus
	statusIdx int
	fee       uint64

	calls map[string]int
}

var _ blockchain.Client = (*mockClient)(nil)

func newMockClient() *mockClient {
	return &mockClient{
		accounts:        make(map[solana.PublicKey][]byte),
		programAccounts: make(map[solana.PublicKey][]blockchain.ProgramAccount),
		tokenAccounts:   make(map[solana.PublicKey][]blockchain.ProgramAccount),
		signatures:      make(map[solana.PublicKey][]blockchain.SignatureInfo),
		blockTimes:      make(map[solana.Signature]time.Time),
		calls:           make(map[string]int),
	}
}

func (m *mockClient) count(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

func (m *mockClient) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockClient) GetAccountData(_ context.Context, address solana.PublicKey) ([]byte, error) {
	m.count("GetAccountData")
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.accounts[address]
	if !ok {
		return nil, blockchain.ErrAccountNotFound
	}
	return data, nil
}

func (m *mockClient) GetMultipleAccountsData(_ context.Context, addresses []solana.PublicKey) ([][]byte, error) {
	m.count("GetMultipleAccountsData")
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(addresses))
	for i, addr := range addresses {
		out[i] = m.accounts[addr]
	}
	return out, nil
}

func (m *mockClient) GetProgramAccounts(_ context.Context, programID solana.PublicKey) ([]blockchain.ProgramAccount, error) {
	m.count("GetProgramAccounts")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.programAccounts[programID], nil
}

func (m *mockClient) GetTokenAccountsByMint(_ context.Context, mint solana.PublicKey) ([]blockchain.ProgramAccount, error) {
	m.count("GetTokenAccountsByMint")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenAccounts[mint], nil
}

func (m *mockClient) GetSignaturesForAddress(_ context.Context, address solana.PublicKey, limit int) ([]blockchain.SignatureInfo, error) {
	m.count("GetSignaturesForAddress")
	m.mu.Lock()
	defer m.mu.Unlock()
	sigs := m.signatures[address]
	if len(sigs) > limit {
		sigs = sigs[:limit]
	}
	return sigs, nil
}

func (m *mockClient) GetTransactionBlockTime(_ context.Context, signature solana.Signature) (*time.Time, error) {
	m.count("GetTransactionBlockTime")
	m.mu.Lock()
	defer m.mu.Unlock()
	if bt, ok := m.blockTimes[signature]; ok {
		return &bt, nil
	}
	return nil, nil
}

func (m *mockClient) SimulateTransaction(_ context.Context, _ *solana.Transaction) (*blockchain.SimulationResult, error) {
	m.count("SimulateTransaction")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.simResult != nil {
		return m.simResult, nil
	}
	return &blockchain.SimulationResult{}, nil
}

func (m *mockClient) SendTransaction(_ context.Context, _ *solana.Transaction) (solana.Signature, error) {
	m.count("SendTransaction")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendSig, m.sendErr
}

func (m *mockClient) GetSignatureStatus(_ context.Context, _ solana.Signature) (*blockchain.SignatureStatus, error) {
	m.count("GetSignatureStatus")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusIdx >= len(m.statuses) {
		return nil, nil
	}
	status := m.statuses[m.statusIdx]
	m.statusIdx++
	return status, nil
}

func (m *mockClient) GetLatestBlockhash(_ context.Context) (solana.Hash, error) {
	m.count("GetLatestBlockhash")
	return solana.Hash{1}, nil
}

func (m *mockClient) GetFeeForMessage(_ context.Context, _ *solana.Message) (uint64, error) {
	m.count("GetFeeForMessage")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fee, nil
}

// testKey derives a distinct deterministic public key from a seed byte.
func testKey(seed byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = seed
	}
	pk[31] = seed + 1
	return pk
}

// poolAccountData lays six pubkeys into a minimal raw pool account.
func poolAccountData(mintA, mintB, reserveA, reserveB, lpMint, feeAccount solana.PublicKey) []byte {
	data := make([]byte, PoolAccountMinLen)
	fields := []solana.PublicKey{mintA, mintB, reserveA, reserveB, lpMint, feeAccount}
	off := poolLayoutStart
	for _, f := range fields {
		copy(data[off:off+32], f[:])
		off += 32
	}
	return data
}

func mintAccountData(decimals uint8, supply uint64) []byte {
	data := make([]byte, mintAccountLen)
	binary.LittleEndian.PutUint64(data[mintSupplyOffset:mintSupplyOffset+8], supply)
	data[mintDecimalsByte] = decimals
	return data
}

func tokenAccountData(amount uint64) []byte {
	data := make([]byte, tokenAccountMinLen)
	binary.LittleEndian.PutUint64(data[tokenAccountAmountOffset:tokenAccountAmountOffset+8], amount)
	return data
}

// testPool describes one pool to install into the mock cluster.
type testPool struct {
	address   solana.PublicKey
	mintA     solana.PublicKey
	mintB     solana.PublicKey
	decimalsA uint8
	decimalsB uint8
	reserveA  uint64
	reserveB  uint64
}

// installPool writes all accounts backing one pool into the mock and
// registers it under the program scan.
func (m *mockClient) installPool(p testPool) {
	reserveAAcc := testKey(p.address[0] + 100)
	reserveBAcc := testKey(p.address[0] + 101)
	lpMint := testKey(p.address[0] + 102)
	feeAccount := testKey(p.address[0] + 103)

	poolData := poolAccountData(p.mintA, p.mintB, reserveAAcc, reserveBAcc, lpMint, feeAccount)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[p.address] = poolData
	m.accounts[p.mintA] = mintAccountData(p.decimalsA, 1_000_000_000)
	m.accounts[p.mintB] = mintAccountData(p.decimalsB, 1_000_000_000)
	m.accounts[reserveAAcc] = tokenAccountData(p.reserveA)
	m.accounts[reserveBAcc] = tokenAccountData(p.reserveB)
	m.accounts[lpMint] = mintAccountData(0, 500_000)
	m.programAccounts[MeteoraProgramID] = append(m.programAccounts[MeteoraProgramID],
		blockchain.ProgramAccount{Pubkey: p.address, Data: poolData})
}
