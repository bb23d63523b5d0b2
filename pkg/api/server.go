// Package api exposes the enclave's request layer over HTTP, via
// gorilla/mux path-parameter routes and rs/cors: router setup,
// respondJSON/respondError helpers, an NDJSON transaction log, and a
// WebSocket broadcast Hub for orderbook updates.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/uhyunpark/hyperclob/pkg/book"
	"github.com/uhyunpark/hyperclob/pkg/crypto"
	"github.com/uhyunpark/hyperclob/pkg/enclave"
)

// Server wires the enclave's request layer (Service, SettlementBuilder,
// DepositGulper, CheckpointProducer) onto the HTTP surface.
type Server struct {
	service *enclave.Service
	settlement *enclave.SettlementBuilder
	gulper *enclave.DepositGulper
	checkpoint *enclave.CheckpointProducer
	volumeAddr func(deposit, checkpointer common.Address) error
	transactOpts func(ctx context.Context) (*bind.TransactOpts, error)
	enclaveKey common.Address

	router *mux.Router
	hub *Hub
	txLog *os.File
}

// NewServer wires a Server. volumeAddr is called by
// PUT /contract-addresses to persist the two contract addresses;
// transactOpts builds the signed transactor used to submit the
// checkpoint transaction from POST /take_snapshot; enclaveKey is
// returned by GET /public-key.
func NewServer(service *enclave.Service, settlement *enclave.SettlementBuilder, gulper *enclave.DepositGulper, checkpoint *enclave.CheckpointProducer, enclaveKey common.Address, volumeAddr func(deposit, checkpointer common.Address) error, transactOpts func(ctx context.Context) (*bind.TransactOpts, error)) *Server {
	txLogPath := os.Getenv("TX_LOG_FILE")
	if txLogPath == "" {
		txLogPath = "data/requests.log"
	}
	os.MkdirAll("data", 0o755)

	txLog, err := os.OpenFile(txLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[api] WARNING: failed to open request log file %s: %v", txLogPath, err)
		txLog = nil
	}

	s := &Server{
		service: service,
		settlement: settlement,
		gulper: gulper,
		checkpoint: checkpoint,
		enclaveKey: enclaveKey,
		volumeAddr: volumeAddr,
		transactOpts: transactOpts,
		router: mux.NewRouter(),
		hub: NewHub(),
		txLog: txLog,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/public-key", s.handlePublicKey).Methods("GET")
	s.router.HandleFunc("/contract-addresses/{deposit}/{checkpointer}", s.handleContractAddresses).Methods("PUT")
	s.router.HandleFunc("/new-settlement-order/{user}/{taker_sig}", s.handleNewSettlementOrder).Methods("POST")
	s.router.HandleFunc("/get-settlement-order-length", s.handleSettlementOrderLength).Methods("GET")
	s.router.HandleFunc("/send-order/{user}/{sig}", s.handleSendOrder).Methods("POST")
	s.router.HandleFunc("/cancel-order/{user}/{sig}", s.handleCancelOrder).Methods("DELETE")
	s.router.HandleFunc("/modify-order/{user}/{sig}/{oid}", s.handleModifyOrder).Methods("PUT")
	s.router.HandleFunc("/get-orders/{user}/{sig}", s.handleGetOrders).Methods("GET")
	s.router.HandleFunc("/get-inventory/{user}/{sig}", s.handleGetInventory).Methods("GET")
	s.router.HandleFunc("/gulp-deposits/{user}", s.handleGulpDeposits).Methods("PUT")
	s.router.HandleFunc("/take_snapshot", s.handleTakeSnapshot).Methods("POST")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Start runs the WebSocket hub and begins serving addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "https://github.com/uhyunpark/hyperclob", http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Healthy!"))
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(s.enclaveKey.Hex()))
}

func (s *Server) handleContractAddresses(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	depositStr, checkpointerStr := vars["deposit"], vars["checkpointer"]

	if !common.IsHexAddress(depositStr) || !common.IsHexAddress(checkpointerStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	deposit := common.HexToAddress(depositStr)
	checkpointer := common.HexToAddress(checkpointerStr)

	if err := s.volumeAddr(deposit, checkpointer); err != nil {
		respondError(w, http.StatusBadRequest, "persist failed", err.Error())
		return
	}

	s.logRequest("CONTRACT_ADDRESSES", map[string]interface{}{
		"deposit": deposit.Hex(),
		"checkpointer": checkpointer.Hex(),
	})
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSendOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, sig, ok := parseUserSig(w, vars["user"], vars["sig"])
	if !ok {
		return
	}

	var req OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	envelope := &crypto.OrderEnvelope{
		Price: req.Price,
		Qty: req.Qty,
		IsBid: req.IsBid,
		Timestamp: req.Timestamp,
		Owner: owner,
	}

	result, err := s.service.SendOrder(envelope, sig)
	if err != nil {
		respondEnclaveError(w, err)
		return
	}

	var newOID *uint32
	if result.NewRestingOID != nil {
		v := uint32(*result.NewRestingOID)
		newOID = &v
	}

	s.broadcastOrderbook()
	s.logRequest("SEND_ORDER", map[string]interface{}{"owner": owner.Hex(), "is_bid": req.IsBid})

	respondJSON(w, OrderResponse{
		ExecutedQty: result.ExecutedQty.String(),
		Volume: result.Volume.String(),
		NewRestingOID: newOID,
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, sig, ok := parseUserSig(w, vars["user"], vars["sig"])
	if !ok {
		return
	}

	var req CancelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	envelope := &crypto.CancelEnvelope{
		OID: req.OID,
		Timestamp: req.Timestamp,
		Owner: owner,
	}

	if err := s.service.CancelOrder(envelope, sig); err != nil {
		respondEnclaveError(w, err)
		return
	}

	s.broadcastOrderbook()
	s.logRequest("CANCEL_ORDER", map[string]interface{}{"owner": owner.Hex(), "oid": req.OID})
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleModifyOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, sig, ok := parseUserSig(w, vars["user"], vars["sig"])
	if !ok {
		return
	}
	oidRaw, err := strconv.ParseUint(vars["oid"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid oid", "")
		return
	}

	var req OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	envelope := &crypto.OrderEnvelope{
		Price: req.Price,
		Qty: req.Qty,
		IsBid: req.IsBid,
		Timestamp: req.Timestamp,
		Owner: owner,
	}

	newOID, err := s.service.ModifyOrder(envelope, sig, book.OrderId(oidRaw))
	if err != nil {
		respondEnclaveError(w, err)
		return
	}

	s.broadcastOrderbook()
	s.logRequest("MODIFY_ORDER", map[string]interface{}{"owner": owner.Hex(), "old_oid": oidRaw, "new_oid": uint32(newOID)})
	respondJSON(w, map[string]uint32{"oid": uint32(newOID)})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, sig, ok := parseUserSig(w, vars["user"], vars["sig"])
	if !ok {
		return
	}

	var req UserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	envelope := &crypto.UserRequestEnvelope{
		User: owner,
		Timestamp: req.Timestamp,
		RequestType: "orders",
		Owner: owner,
	}

	views, err := s.service.GetOrders(envelope, sig)
	if err != nil {
		respondEnclaveError(w, err)
		return
	}

	out := make([]OrderView, len(views))
	for i, v := range views {
		out[i] = OrderView{OID: uint32(v.OID), Price: v.Price.String(), IsBid: v.IsBid, Qty: v.Qty.String()}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, sig, ok := parseUserSig(w, vars["user"], vars["sig"])
	if !ok {
		return
	}

	var req UserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	envelope := &crypto.UserRequestEnvelope{
		User: owner,
		Timestamp: req.Timestamp,
		RequestType: "inventory",
		Owner: owner,
	}

	inv, err := s.service.GetInventory(envelope, sig)
	if err != nil {
		respondEnclaveError(w, err)
		return
	}

	respondJSON(w, InventoryView{
		Address: inv.Address.Hex(),
		EthBalance: inv.EthBalance.String(),
		EthLiabilities: inv.EthLiabilities.String(),
		UsdcBalance: inv.UsdcBalance.String(),
		UsdcLiabilities: inv.UsdcLiabilities.String(),
		DepositNonce: inv.DepositNonce,
		IsTaker: inv.IsTaker,
	})
}

func (s *Server) handleNewSettlementOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userStr, sigStr := vars["user"], vars["taker_sig"]
	if !common.IsHexAddress(userStr) {
		respondError(w, http.StatusBadRequest, "invalid user address", "")
		return
	}
	sig, err := hexSignature(sigStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}
	user := common.HexToAddress(userStr)

	var req SettlementIntentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	envelope := &crypto.SettlementIntentEnvelope{
		User: user,
		IsBid: req.IsBid,
		EthAmount: req.EthAmount,
		UsdcAmount: req.UsdcAmount,
		Timestamp: req.Timestamp,
		Owner: user,
	}

	order, err := s.settlement.CreateSettlementOrder(r.Context(), envelope, sig)
	if err != nil {
		respondEnclaveError(w, err)
		return
	}

	s.logRequest("NEW_SETTLEMENT_ORDER", map[string]interface{}{"user": user.Hex(), "is_bid": req.IsBid})
	respondJSON(w, order)
}

func (s *Server) handleSettlementOrderLength(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, SettlementOrderLengthResponse{Count: s.settlement.OutboxLength()})
}

func (s *Server) handleGulpDeposits(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userStr := vars["user"]
	if !common.IsHexAddress(userStr) {
		respondError(w, http.StatusBadRequest, "invalid user address", "")
		return
	}
	user := common.HexToAddress(userStr)

	eth, usdc, err := s.gulper.GulpDeposits(r.Context(), user)
	if err != nil {
		respondEnclaveError(w, err)
		return
	}

	s.logRequest("GULP_DEPOSITS", map[string]interface{}{"user": user.Hex()})
	respondJSON(w, GulpResponse{eth.String(), usdc.String()})
}

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	opts, err := s.transactOpts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build transactor", err.Error())
		return
	}
	if err := s.checkpoint.Checkpoint(r.Context(), opts); err != nil {
		respondEnclaveError(w, err)
		return
	}
	s.logRequest("TAKE_SNAPSHOT", nil)
	respondJSON(w, map[string]string{"status": "submitted"})
}

// ==============================
// Helpers
// ==============================

func parseUserSig(w http.ResponseWriter, userStr, sigStr string) (common.Address, []byte, bool) {
	if !common.IsHexAddress(userStr) {
		respondError(w, http.StatusBadRequest, "invalid user address", "")
		return common.Address{}, nil, false
	}
	sig, err := hexSignature(sigStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return common.Address{}, nil, false
	}
	return common.HexToAddress(userStr), sig, true
}

func hexSignature(s string) ([]byte, error) {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}

// respondEnclaveError maps an *enclave.Error to its HTTP status via enclave.StatusCode.
func respondEnclaveError(w http.ResponseWriter, err error) {
	enclaveErr, ok := err.(*enclave.Error)
	if !ok {
		respondError(w, http.StatusBadRequest, "internal error", err.Error())
		return
	}
	respondError(w, enclave.StatusCode(enclaveErr), string(enclaveErr.Kind), enclaveErr.Error())
}

// logRequest writes one NDJSON line per admitted request.
func (s *Server) logRequest(eventType string, data map[string]interface{}) {
	if s.txLog == nil {
		return
	}
	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"event": eventType,
		"data": data,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[api] failed to marshal request log entry: %v", err)
		return
	}
	s.txLog.Write(raw)
	s.txLog.Write([]byte("\n"))
}

// broadcastOrderbook pushes the current best levels to every "orderbook"
// subscriber after an admitting mutation.
func (s *Server) broadcastOrderbook() {
	s.service.RLock()
	bidLevels := s.service.Books().BidLevels(book.GlobalBook)
	askLevels := s.service.Books().AskLevels(book.GlobalBook)
	s.service.RUnlock()

	bids := make([]PriceLevel, len(bidLevels))
	for i, lvl := range bidLevels {
		bids[i] = PriceLevel{Price: lvl.Price.String(), Size: lvl.Size.String()}
	}
	asks := make([]PriceLevel, len(askLevels))
	for i, lvl := range askLevels {
		asks[i] = PriceLevel{Price: lvl.Price.String(), Size: lvl.Size.String()}
	}

	update := OrderbookUpdate{
		Type: "orderbook",
		Bids: bids,
		Asks: asks,
		Timestamp: time.Now().UnixMilli(),
	}
	s.hub.BroadcastToChannel("orderbook", update)
}
