// Package chain holds hand-trimmed abigen-style bindings for the two
// contracts the enclave talks to on mainnet (DepositRegistry,
// Checkpointer), plus the local enclave secret-endpoint client.
//
// These are not full `abigen` output - only the methods names
// are bound - but follow the same shape: a minimal ABI JSON parsed once,
// a *bind.BoundContract wrapping caller/transactor/filterer, typed Go
// methods over Call/Transact.
package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const depositRegistryABIJSON = `[
	{"constant":true,"inputs":[{"name":"nonce","type":"uint256"},{"name":"user","type":"address"}],"name":"get_deposits","outputs":[{"name":"","type":"uint256[2][]"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"ethAmount","type":"uint256"},{"name":"usdcAmount","type":"uint256"},{"name":"signature","type":"bytes"}],"name":"pull_settlement_funds","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[],"name":"settlement_nonce","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"hash","type":"bytes32"},{"name":"signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"name":"","type":"bytes4"}],"stateMutability":"view","type":"function"}
]`

// Deposit is one (eth, usdc) pair returned by get_deposits.
type Deposit struct {
	EthAmount *big.Int
	UsdcAmount *big.Int
}

// DepositRegistry is a bound instance of the on-chain DepositRegistry
// contract.
type DepositRegistry struct {
	address common.Address
	contract *bind.BoundContract
}

// NewDepositRegistry binds address using backend for both calls and
// transactions.
func NewDepositRegistry(address common.Address, backend bind.ContractBackend) (*DepositRegistry, error) {
	parsed, err := abi.JSON(strings.NewReader(depositRegistryABIJSON))
	if err != nil {
		return nil, err
	}
	return &DepositRegistry{
		address: address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// GetDeposits returns every deposit posted for user since nonce.
func (d *DepositRegistry) GetDeposits(opts *bind.CallOpts, nonce *big.Int, user common.Address) ([]Deposit, error) {
	var raw []interface{}
	err := d.contract.Call(opts, &raw, "get_deposits", nonce, user)
	if err != nil {
		return nil, err
	}
	pairs, ok := raw[0].([][2]*big.Int)
	if !ok {
		return nil, nil
	}
	deposits := make([]Deposit, len(pairs))
	for i, p := range pairs {
		deposits[i] = Deposit{EthAmount: p[0], UsdcAmount: p[1]}
	}
	return deposits, nil
}

// SettlementNonce reads the contract's current settlement nonce, used to
// scope a taker's FunctionCallApproval pre-hook.
func (d *DepositRegistry) SettlementNonce(opts *bind.CallOpts) (*big.Int, error) {
	var raw []interface{}
	if err := d.contract.Call(opts, &raw, "settlement_nonce"); err != nil {
		return nil, err
	}
	return raw[0].(*big.Int), nil
}

// PullSettlementFundsCalldata ABI-encodes the pre-hook call the
// settlement-order builder wraps into the exchange's app-data envelope
// as a hook's calldata. Returns calldata rather than submitting a
// transaction, since the enclave never calls this directly - the
// exchange's solver does, as the CoW pre-hook.
func (d *DepositRegistry) PullSettlementFundsCalldata(ethAmount, usdcAmount *big.Int, signature []byte) ([]byte, error) {
	parsed, err := abi.JSON(strings.NewReader(depositRegistryABIJSON))
	if err != nil {
		return nil, err
	}
	return parsed.Pack("pull_settlement_funds", ethAmount, usdcAmount, signature)
}

// Address returns the bound contract address.
func (d *DepositRegistry) Address() common.Address { return d.address }
