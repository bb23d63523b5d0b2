package enclave

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperclob/pkg/chain"
	"github.com/uhyunpark/hyperclob/pkg/crypto"
)

// settlementValidity is how long a staged CoW order remains fillable
// after construction (validTo = now + 300s).
const settlementValidity = 300 * time.Second

// hookGasLimit is the gas limit attached to the pull_settlement_funds
// pre-hook; 100000 covers one ERC-20 transfer plus bookkeeping with
// margin.
const hookGasLimit = "100000"

// SettlementBuilder wires the settlement-order construction step
// onto a Service: it verifies the taker's intent, re-checks solvency
// under the same lock as order admission, signs the enclave's own
// pull_settlement_funds approval, and stages a CowSwapOrder into the
// warehouse outbox for the next checkpoint to flush.
type SettlementBuilder struct {
	service *Service
	registry *chain.DepositRegistry
	signer *crypto.Signer
	mainnet *crypto.EIP712Signer
	clock interface{ Now() time.Time }
	logger *zap.Logger
}

// NewSettlementBuilder wires a SettlementBuilder. signer is the enclave's
// own secp256k1 key, used to produce the hook_signature; mainnetDomain
// scopes both the taker's intent and the enclave's hook approval so
// neither can be replayed as a CLOB order or a checkpoint.
func NewSettlementBuilder(service *Service, registry *chain.DepositRegistry, signer *crypto.Signer, mainnetDomain crypto.EIP712Domain, clock interface{ Now() time.Time }, logger *zap.Logger) *SettlementBuilder {
	return &SettlementBuilder{
		service: service,
		registry: registry,
		signer: signer,
		mainnet: crypto.NewEIP712Signer(mainnetDomain),
		clock: clock,
		logger: logger,
	}
}

// CreateSettlementOrder builds and stages one CowSwapOrder for a taker's
// signed settlement intent. The taker's signature
// authorizes the trade; the enclave's own hook_signature separately
// authorizes the pull_settlement_funds call CoW will invoke as a
// pre-hook before filling it.
func (b *SettlementBuilder) CreateSettlementOrder(ctx context.Context, envelope *crypto.SettlementIntentEnvelope, takerSignature []byte) (*CowSwapOrder, error) {
	valid, err := b.mainnet.VerifySettlementIntentSignature(envelope, takerSignature)
	if err != nil {
		return nil, New(KindSignatureRecovery)
	}
	if !valid {
		return nil, New(KindInvalidSignature)
	}

	ethAmount, ok := parseQty(envelope.EthAmount)
	if !ok {
		return nil, New(KindInvalidOrderParams)
	}
	usdcAmount, ok := parseQty(envelope.UsdcAmount)
	if !ok {
		return nil, New(KindInvalidOrderParams)
	}

	b.service.Lock()
	defer b.service.Unlock()

	if !b.service.warehouse.IsTaker(envelope.User) {
		return nil, New(KindNotTaker)
	}

	inv, ok := b.service.warehouse.Inventory(envelope.User)
	if !ok {
		return nil, Insufficient("ETH_OR_USDC")
	}
	if envelope.IsBid {
		if usdcAmount.Cmp(inv.NetUSDC()) > 0 {
			return nil, Insufficient("USDC")
		}
	} else {
		if ethAmount.Cmp(inv.NetETH()) > 0 {
			return nil, Insufficient("ETH")
		}
	}

	settlementNonce, err := b.registry.SettlementNonce(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, New(KindTransaction)
	}

	hookApproval := &crypto.HookApprovalEnvelope{
		EthAmount: ethAmount.String(),
		UsdcAmount: usdcAmount.String(),
		SettlementNonce: settlementNonce.String(),
		Timestamp: uint64(b.clock.Now().UnixMilli()),
	}
	hookHash, err := b.mainnet.HashHookApproval(hookApproval)
	if err != nil {
		return nil, New(KindSigning)
	}
	// The hook approval is signed before CoW has a final order; nothing
	// here prevents the taker from abandoning the order once the signed
	// pre-hook has been returned.
	hookSignature, err := b.signer.Sign(hookHash)
	if err != nil {
		return nil, New(KindSigning)
	}

	ethBig, _ := new(big.Int).SetString(ethAmount.String(), 10)
	usdcBig, _ := new(big.Int).SetString(usdcAmount.String(), 10)
	preHookCalldata, err := b.registry.PullSettlementFundsCalldata(ethBig, usdcBig, hookSignature)
	if err != nil {
		return nil, New(KindTransaction)
	}

	hook := &CowSwapHook{
		Target: b.registry.Address(),
		CallData: preHookCalldata,
		GasLimit: hookGasLimit,
	}
	appDataJSON, _, err := hook.ToAppData()
	if err != nil {
		return nil, New(KindEncryption)
	}

	sellToken, buyToken, sellAmount, buyAmount := USDCAddress, WETHAddress, usdcAmount, ethAmount
	if envelope.IsBid {
		sellToken, buyToken, sellAmount, buyAmount = WETHAddress, USDCAddress, ethAmount, usdcAmount
	}

	order := &CowSwapOrder{
		SellToken: sellToken,
		BuyToken: buyToken,
		Receiver: b.registry.Address().Hex(),
		SellAmount: sellAmount.String(),
		BuyAmount: buyAmount.String(),
		ValidTo: uint64(b.clock.Now().Add(settlementValidity).Unix()),
		FeeAmount: "0",
		Kind: "buy",
		PartiallyFillable: false,
		SellTokenBalance: "erc20",
		BuyTokenBalance: "erc20",
		SigningScheme: "presign",
		Signature: fmt.Sprintf("0x%x", takerSignature),
		From: envelope.User.Hex(),
		AppData: appDataJSON,
		SettlementContract: SettlementContract,
	}

	b.service.warehouse.AddSettlementOrder(order)

	b.logger.Info("settlement order staged",
		zap.String("user", envelope.User.Hex()),
		zap.Bool("is_bid", envelope.IsBid),
		zap.String("eth_amount", ethAmount.String()),
		zap.String("usdc_amount", usdcAmount.String()),
	)

	return order, nil
}

// OutboxLength reports how many settlement orders are waiting for the
// next checkpoint.
func (b *SettlementBuilder) OutboxLength() int {
	b.service.RLock()
	defer b.service.RUnlock()
	return len(b.service.warehouse.SettlementOrders())
}
