// internal/blockchain/solbc/rpc_pool.go
package solbc

import (
	"sync"

	"github.com/gagliardetto/solana-go/rpc"
)

// RPCPool ротирует запросы по списку RPC-эндпоинтов round-robin.
type RPCPool struct {
	clients []*rpc.Client
	mutex   sync.Mutex
	index   int
}

// NewRPCPool создает пул из URL эндпоинтов. Список должен быть непустым;
// это гарантирует валидация конфигурации.
func NewRPCPool(rpcList []string) *RPCPool {
	clients := make([]*rpc.Client, 0, len(rpcList))
	for _, url := range rpcList {
		clients = append(clients, rpc.New(url))
	}
	return &RPCPool{clients: clients}
}

// GetClient возвращает следующий клиент в ротации.
func (p *RPCPool) GetClient() *rpc.Client {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	client := p.clients[p.index]
	p.index = (p.index + 1) % len(p.clients)
	return client
}

// Size возвращает число эндпоинтов в пуле.
func (p *RPCPool) Size() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.clients)
}
