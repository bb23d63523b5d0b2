package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperclob/params"
	"github.com/uhyunpark/hyperclob/pkg/api"
	"github.com/uhyunpark/hyperclob/pkg/book"
	"github.com/uhyunpark/hyperclob/pkg/chain"
	"github.com/uhyunpark/hyperclob/pkg/crypto"
	"github.com/uhyunpark/hyperclob/pkg/enclave"
	"github.com/uhyunpark/hyperclob/pkg/ledger"
	"github.com/uhyunpark/hyperclob/pkg/storage"
	"github.com/uhyunpark/hyperclob/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/enclave.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("logger_initialized", zap.String("log_file", logFile))

	signer, err := loadEnclaveSigner()
	if err != nil {
		logger.Fatal("enclave_signer_failed", zap.Error(err))
	}
	logger.Info("enclave_signer_loaded", zap.String("address", signer.Address().Hex()))

	client, err := ethclient.Dial(cfg.Mainnet.RPCURL)
	if err != nil {
		logger.Fatal("ethclient_dial_failed", zap.Error(err))
	}

	volume, err := storage.NewVolume(cfg.Enclave.VolumePath)
	if err != nil {
		logger.Fatal("volume_open_failed", zap.Error(err))
	}

	depositAddr, checkpointerAddr, err := volume.LoadAddresses()
	if err != nil {
		logger.Fatal("load_addresses_failed", zap.Error(err))
	}
	if depositAddr == (common.Address{}) {
		depositAddr = cfg.Mainnet.DepositRegistry
	}
	if checkpointerAddr == (common.Address{}) {
		checkpointerAddr = cfg.Mainnet.Checkpointer
	}

	registry, err := chain.NewDepositRegistry(depositAddr, client)
	if err != nil {
		logger.Fatal("deposit_registry_bind_failed", zap.Error(err))
	}
	checkpointer, err := chain.NewCheckpointer(checkpointerAddr, client)
	if err != nil {
		logger.Fatal("checkpointer_bind_failed", zap.Error(err))
	}

	secretClient := chain.NewSecretClient(cfg.Enclave.SecretEndpoint)
	sharedSecret, err := secretClient.Fetch(context.Background())
	if err != nil {
		logger.Fatal("fetch_secret_failed", zap.Error(err))
	}

	warehouse := ledger.NewWarehouse()
	inventories, err := volume.LoadInventories()
	if err != nil {
		logger.Fatal("load_inventories_failed", zap.Error(err))
	}
	for _, inv := range inventories {
		warehouse.RestoreInventory(inv)
	}
	logger.Info("inventories_restored", zap.Int("count", len(inventories)))

	books := book.NewOrderBookManager()

	clobDomain := crypto.CLOBDomain(signer.Address())
	mainnetDomain := crypto.MainnetDomain(depositAddr)
	tolimanDomain := crypto.TolimanDomain(checkpointerAddr)

	service := enclave.NewService(warehouse, books, clobDomain, util.RealClock{}, logger)
	settlementBuilder := enclave.NewSettlementBuilder(service, registry, signer, mainnetDomain, util.RealClock{}, logger)
	gulper := enclave.NewDepositGulper(service, registry, logger)
	checkpointProducer, err := enclave.NewCheckpointProducer(service, checkpointer, signer, tolimanDomain, []byte(sharedSecret), logger)
	if err != nil {
		logger.Fatal("checkpoint_producer_init_failed", zap.Error(err))
	}

	server := api.NewServer(
		service,
		settlementBuilder,
		gulper,
		checkpointProducer,
		signer.Address(),
		func(deposit, checkpointer common.Address) error {
			return volume.PersistAddresses(deposit, checkpointer)
		},
		func(ctx context.Context) (*bind.TransactOpts, error) {
			return bind.NewKeyedTransactorWithChainID(signer.PrivateKey(), big.NewInt(cfg.Mainnet.ChainID))
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persistTicker := time.NewTicker(cfg.Enclave.CheckpointPeriod)
	defer persistTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-persistTicker.C:
				service.RLock()
				err := volume.PersistInventories(warehouse.Inventories())
				service.RUnlock()
				if err != nil {
					logger.Error("persist_inventories_failed", zap.Error(err))
				}
			}
		}
	}()

	logger.Info("enclave_starting", zap.String("addr", cfg.Enclave.ListenAddr))
	if err := server.Start(cfg.Enclave.ListenAddr); err != nil {
		logger.Fatal("server_failed", zap.Error(err))
	}
}

// loadEnclaveSigner loads the enclave's own signing key from
// ENCLAVE_PRIVATE_KEY, generating a fresh one (and printing a warning)
// when unset - convenient for local development, never for production.
func loadEnclaveSigner() (*crypto.Signer, error) {
	if hexKey := os.Getenv("ENCLAVE_PRIVATE_KEY"); hexKey != "" {
		return crypto.FromPrivateKeyHex(hexKey)
	}
	log.Println("[enclaved] WARNING: ENCLAVE_PRIVATE_KEY unset, generating an ephemeral key")
	return crypto.GenerateKey()
}
