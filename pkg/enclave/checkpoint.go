package enclave

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"github.com/uhyunpark/hyperclob/pkg/chain"
	"github.com/uhyunpark/hyperclob/pkg/crypto"
	"github.com/uhyunpark/hyperclob/pkg/ledger"
)

// hkdfInfo is the HKDF context string distinguishing the checkpoint
// encryption key from any other key derived off the same shared secret.
const hkdfInfo = "aes-key"

// CheckpointEnvelope is the typed message the checkpoint producer signs
// under the Toliman domain before calling Checkpointer.checkpoint.
type CheckpointEnvelope struct {
	Nonce *big.Int
	InventoryState []byte
	SettlementOrders []string
}

// CheckpointProducer implements the checkpoint producer: encrypts
// every inventory record, serializes the settlement outbox, signs the
// pair under the Toliman domain, and submits it on-chain.
type CheckpointProducer struct {
	service *Service
	checkpointer *chain.Checkpointer
	signer *crypto.Signer
	toliman *crypto.EIP712Signer
	encKey [32]byte
	logger *zap.Logger
}

// NewCheckpointProducer derives the AES-256-GCM key from sharedSecret via
// HKDF-SHA256 and wires the producer. sharedSecret is the dstack app-key
// fetched once at startup through chain.SecretClient.
func NewCheckpointProducer(service *Service, checkpointer *chain.Checkpointer, signer *crypto.Signer, tolimanDomain crypto.EIP712Domain, sharedSecret []byte, logger *zap.Logger) (*CheckpointProducer, error) {
	kdf := hkdf.New(sha256.New, sharedSecret, nil, []byte(hkdfInfo))
	var key [32]byte
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return nil, err
	}
	return &CheckpointProducer{
		service: service,
		checkpointer: checkpointer,
		signer: signer,
		toliman: crypto.NewEIP712Signer(tolimanDomain),
		encKey: key,
		logger: logger,
	}, nil
}

// encryptRecord seals one 153-byte inventory record under AES-256-GCM,
// returning nonce || ciphertext || tag.
func (p *CheckpointProducer) encryptRecord(record [ledger.InventoryRecordSize]byte) ([]byte, error) {
	block, err := aes.NewCipher(p.encKey[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, nonce, record[:], nil)
	return append(nonce, sealed...), nil
}

// buildInventoryState encrypts every known inventory's checkpoint record
// and concatenates them, one after another, into a single blob.
func (p *CheckpointProducer) buildInventoryState() ([]byte, error) {
	var out []byte
	for _, inv := range p.service.warehouse.Inventories() {
		record := ledger.EncodeInventory(inv)
		sealed, err := p.encryptRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, sealed...)
	}
	return out, nil
}

// Checkpoint runs one full checkpoint cycle: read the
// contract's current nonce, encrypt the inventory state, serialize the
// settlement outbox, sign the envelope under the Toliman domain, submit
// it, and clear the outbox once the transaction is accepted for
// submission. The receipt is not awaited, so a transaction that later
// reverts still leaves the outbox cleared.
func (p *CheckpointProducer) Checkpoint(ctx context.Context, opts *bind.TransactOpts) error {
	nonce, err := p.checkpointer.InventoryCheckpointNonce(&bind.CallOpts{Context: ctx})
	if err != nil {
		return Snapshot(err.Error())
	}

	p.service.RLock()
	inventoryState, err := p.buildInventoryState()
	orders := p.service.warehouse.SettlementOrders()
	ordersJSON := make([]string, 0, len(orders))
	for _, order := range orders {
		raw, marshalErr := json.Marshal(order)
		if marshalErr != nil {
			p.service.RUnlock()
			return Snapshot(marshalErr.Error())
		}
		ordersJSON = append(ordersJSON, string(raw))
	}
	p.service.RUnlock()
	if err != nil {
		return Snapshot(err.Error())
	}

	envelope := &CheckpointEnvelope{
		Nonce: nonce,
		InventoryState: inventoryState,
		SettlementOrders: ordersJSON,
	}
	hash, err := p.hashCheckpoint(envelope)
	if err != nil {
		return Snapshot(err.Error())
	}
	signature, err := p.signer.Sign(hash)
	if err != nil {
		return Snapshot(err.Error())
	}

	if _, err := p.checkpointer.Checkpoint(opts, signature, nonce, inventoryState, ordersJSON); err != nil {
		return Snapshot(err.Error())
	}

	p.service.Lock()
	p.service.warehouse.ClearSettlementOrders()
	p.service.Unlock()

	p.logger.Info("checkpoint submitted",
		zap.String("nonce", nonce.String()),
		zap.Int("settlement_orders", len(ordersJSON)),
		zap.Int("inventory_bytes", len(inventoryState)),
	)
	return nil
}

// hashCheckpoint computes the Toliman-domain digest over the checkpoint
// envelope, mirroring the other envelope types' digest shape even though
// Checkpoint itself lives outside pkg/crypto (it needs access to
// ledger-sized byte blobs the generic envelope types don't carry).
func (p *CheckpointProducer) hashCheckpoint(envelope *CheckpointEnvelope) ([]byte, error) {
	return p.toliman.HashCheckpoint(envelope.Nonce, envelope.InventoryState, envelope.SettlementOrders)
}
