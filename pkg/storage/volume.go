package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperclob/pkg/ledger"
	"github.com/uhyunpark/hyperclob/pkg/num"
)

// Volume layout: three files under the encrypted filesystem volume -
// inventories (newline-delimited JSON), deposit-contract address,
// checkpointer address - plus one file outside the encrypted volume,
// the RPC API key.
const (
	inventoriesFile = "inventories.ndjson"
	depositAddrFile = "deposit_contract_address"
	checkpointerFile = "checkpointer_address"
)

// inventoryRecord is the on-disk JSON shape for one NDJSON line;
// num.U256 round-trips through its decimal string form.
type inventoryRecord struct {
	Address string `json:"address"`
	EthBalance string `json:"eth_balance"`
	EthLiabilities string `json:"eth_liabilities"`
	UsdcBalance string `json:"usdc_balance"`
	UsdcLiabilities string `json:"usdc_liabilities"`
	DepositNonce uint32 `json:"deposit_nonce"`
	IsTaker bool `json:"is_taker"`
}

// Volume is the durable store backing the Warehouse: everything the
// enclave needs to reload on restart. It writes plaintext NDJSON
// inside the path given - encryption is the volume mount's job, not
// this package's.
type Volume struct {
	dir string
}

// NewVolume points a Volume at dir, creating it if necessary.
func NewVolume(dir string) (*Volume, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Volume{dir: dir}, nil
}

func (v *Volume) path(name string) string { return filepath.Join(v.dir, name) }

// PersistInventories overwrites the inventories file with the current
// contents of inventories, one JSON record per line.
func (v *Volume) PersistInventories(inventories []*ledger.Inventory) error {
	f, err := os.Create(v.path(inventoriesFile))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, inv := range inventories {
		record := inventoryRecord{
			Address: inv.Address.Hex(),
			EthBalance: inv.EthBalance.String(),
			EthLiabilities: inv.EthLiabilities.String(),
			UsdcBalance: inv.UsdcBalance.String(),
			UsdcLiabilities: inv.UsdcLiabilities.String(),
			DepositNonce: inv.DepositNonce,
			IsTaker: inv.IsTaker,
		}
		raw, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// LoadInventories reads every record back, returning nil if the file
// doesn't exist yet (fresh volume).
func (v *Volume) LoadInventories() ([]*ledger.Inventory, error) {
	f, err := os.Open(v.path(inventoriesFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []*ledger.Inventory
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record inventoryRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, err
		}
		inv := ledger.NewInventory(common.HexToAddress(record.Address))
		if v, ok := num.FromString(record.EthBalance); ok {
			inv.EthBalance = v
		}
		if v, ok := num.FromString(record.EthLiabilities); ok {
			inv.EthLiabilities = v
		}
		if v, ok := num.FromString(record.UsdcBalance); ok {
			inv.UsdcBalance = v
		}
		if v, ok := num.FromString(record.UsdcLiabilities); ok {
			inv.UsdcLiabilities = v
		}
		inv.DepositNonce = record.DepositNonce
		inv.IsTaker = record.IsTaker
		out = append(out, inv)
	}
	return out, scanner.Err()
}

// PersistAddresses writes the deposit-registry and checkpointer contract
// addresses as their own single-line files.
func (v *Volume) PersistAddresses(deposit, checkpointer common.Address) error {
	if err := os.WriteFile(v.path(depositAddrFile), []byte(deposit.Hex()), 0o644); err != nil {
		return err
	}
	return os.WriteFile(v.path(checkpointerFile), []byte(checkpointer.Hex()), 0o644)
}

// LoadAddresses reads the two contract-address files back, returning the
// zero address for either that doesn't exist yet.
func (v *Volume) LoadAddresses() (deposit, checkpointer common.Address, err error) {
	deposit, err = readAddressFile(v.path(depositAddrFile))
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	checkpointer, err = readAddressFile(v.path(checkpointerFile))
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return deposit, checkpointer, nil
}

func readAddressFile(path string) (common.Address, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(strings.TrimSpace(string(raw))), nil
}

// RPCKeyStore reads/writes the RPC API key file, kept outside the
// encrypted volume.
type RPCKeyStore struct {
	path string
}

// NewRPCKeyStore points at the key file's path directly (not a
// directory - this file lives outside the volume's own root).
func NewRPCKeyStore(path string) *RPCKeyStore {
	return &RPCKeyStore{path: path}
}

func (s *RPCKeyStore) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (s *RPCKeyStore) Save(key string) error {
	return os.WriteFile(s.path, []byte(key), 0o600)
}
