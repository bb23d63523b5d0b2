package enclave

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperclob/pkg/chain"
	"github.com/uhyunpark/hyperclob/pkg/num"
)

// DepositGulper implements deposit ingestion: read the registry's
// confirmed deposits since the user's last-seen nonce, sum them, and
// credit the warehouse.
type DepositGulper struct {
	service *Service
	registry *chain.DepositRegistry
	logger *zap.Logger
}

// NewDepositGulper wires a DepositGulper over an existing Service and
// bound DepositRegistry.
func NewDepositGulper(service *Service, registry *chain.DepositRegistry, logger *zap.Logger) *DepositGulper {
	return &DepositGulper{service: service, registry: registry, logger: logger}
}

// GulpDeposits reads every deposit posted for user since their last-seen
// nonce, sums the (eth, usdc) pairs, advances the nonce by one, and
// credits the sum to the user's balance. Returns the
// summed deltas.
func (g *DepositGulper) GulpDeposits(ctx context.Context, user common.Address) (num.U256, num.U256, error) {
	g.service.Lock()
	nonce := g.service.warehouse.DepositNonce(user)
	g.service.Unlock()

	deposits, err := g.registry.GetDeposits(&bind.CallOpts{Context: ctx}, big.NewInt(int64(nonce)), user)
	if err != nil {
		return num.Zero(), num.Zero(), Gulp(err.Error())
	}

	ethTotal, usdcTotal := num.Zero(), num.Zero()
	for _, d := range deposits {
		eth, ok := num.FromString(d.EthAmount.String())
		if !ok {
			continue
		}
		usdc, ok := num.FromString(d.UsdcAmount.String())
		if !ok {
			continue
		}
		ethTotal = ethTotal.Add(eth)
		usdcTotal = usdcTotal.Add(usdc)
	}

	g.service.Lock()
	defer g.service.Unlock()
	g.service.warehouse.CreditDeposit(user, ethTotal, usdcTotal)

	g.logger.Info("deposits gulped",
		zap.String("user", user.Hex()),
		zap.String("eth", ethTotal.String()),
		zap.String("usdc", usdcTotal.String()),
	)

	return ethTotal, usdcTotal, nil
}
