package params

import (
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Chain holds the domain/contract wiring for one of the three EIP-712
// domains the enclave signs under (CLOB, mainnet, Toliman).
type Chain struct {
	RPCURL            string
	ChainID           int64
	DepositRegistry   common.Address
	Checkpointer      common.Address
	SettlementAddress common.Address // GPv2Settlement, fixed across chains
}

// Enclave holds the enclave's own runtime configuration: where its
// persisted state lives, where to fetch its shared secret, and how wide
// the request-timestamp acceptance window is.
type Enclave struct {
	VolumePath       string
	SecretEndpoint   string
	ListenAddr       string
	TimestampLowerMS int64
	TimestampSkewMS  int64
	CheckpointPeriod time.Duration
}

type Config struct {
	Mainnet Chain
	Enclave Enclave
}

func Default() Config {
	return Config{
		Mainnet: Chain{
			RPCURL:            "https://mainnet.infura.io/v3/YOUR-PROJECT-ID",
			ChainID:           1,
			SettlementAddress: common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
		},
		Enclave: Enclave{
			VolumePath:       "data/volume",
			SecretEndpoint:   "http://localhost:8090/secret",
			ListenAddr:       ":8080",
			TimestampLowerMS: 60_000,
			TimestampSkewMS:  5_000,
			CheckpointPeriod: 5 * time.Second,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Mainnet.RPCURL = v
	}
	if v := os.Getenv("MAINNET_CHAIN_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Mainnet.ChainID = n
		}
	}
	if v := os.Getenv("DEPOSIT_REGISTRY_ADDRESS"); v != "" && common.IsHexAddress(v) {
		cfg.Mainnet.DepositRegistry = common.HexToAddress(v)
	}
	if v := os.Getenv("CHECKPOINTER_ADDRESS"); v != "" && common.IsHexAddress(v) {
		cfg.Mainnet.Checkpointer = common.HexToAddress(v)
	}

	if v := os.Getenv("VOLUME_PATH"); v != "" {
		cfg.Enclave.VolumePath = v
	}
	if v := os.Getenv("SECRET_ENDPOINT"); v != "" {
		cfg.Enclave.SecretEndpoint = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Enclave.ListenAddr = v
	}
	if v := os.Getenv("CHECKPOINT_PERIOD_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Enclave.CheckpointPeriod = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
