package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const checkpointerABIJSON = `[
	{"constant":true,"inputs":[],"name":"inventory_checkpoint_nonce","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"signature","type":"bytes"},{"name":"nonce","type":"uint256"},{"name":"inventoryState","type":"bytes"},{"name":"settlementOrders","type":"string[]"}],"name":"checkpoint","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":false,"name":"orders","type":"string[]"}],"name":"SettlementOrders","type":"event"}
]`

// Checkpointer is a bound instance of the auxiliary-chain ("Toliman")
// Checkpointer contract.
type Checkpointer struct {
	address common.Address
	contract *bind.BoundContract
}

// NewCheckpointer binds address using backend for both calls and
// transactions.
func NewCheckpointer(address common.Address, backend bind.ContractBackend) (*Checkpointer, error) {
	parsed, err := abi.JSON(strings.NewReader(checkpointerABIJSON))
	if err != nil {
		return nil, err
	}
	return &Checkpointer{
		address: address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// InventoryCheckpointNonce reads the contract's current checkpoint nonce.
func (c *Checkpointer) InventoryCheckpointNonce(opts *bind.CallOpts) (*big.Int, error) {
	var raw []interface{}
	if err := c.contract.Call(opts, &raw, "inventory_checkpoint_nonce"); err != nil {
		return nil, err
	}
	return raw[0].(*big.Int), nil
}

// Checkpoint submits the signed checkpoint and returns the sent
// transaction as soon as the node accepts it; it does not wait for the
// transaction to be mined, and no caller waits for a receipt.
func (c *Checkpointer) Checkpoint(opts *bind.TransactOpts, signature []byte, nonce *big.Int, inventoryState []byte, settlementOrders []string) (*types.Transaction, error) {
	return c.contract.Transact(opts, "checkpoint", signature, nonce, inventoryState, settlementOrders)
}

// Address returns the bound contract address.
func (c *Checkpointer) Address() common.Address { return c.address }
