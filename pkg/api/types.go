package api

// Request/response DTOs for the HTTP surface.
// Envelope fields mirror pkg/crypto's EIP-712 types one-for-one since
// these are exactly what callers sign and POST/PUT/GET as JSON bodies.

// OrderRequest is the body for send-order and modify-order.
type OrderRequest struct {
	Price string `json:"price"`
	Qty string `json:"qty"`
	IsBid bool `json:"isBid"`
	Timestamp uint64 `json:"timestamp"`
	Owner string `json:"owner"`
}

// OrderResponse is the send-order response:
// (executed_qty, volume, new_oid?). modify-order responds with {"oid": n}.
type OrderResponse struct {
	ExecutedQty string `json:"executedQty"`
	Volume string `json:"volume"`
	NewRestingOID *uint32 `json:"newOid,omitempty"`
}

// CancelRequest is the body for cancel-order.
type CancelRequest struct {
	OID uint32 `json:"oid"`
	Timestamp uint64 `json:"timestamp"`
	Owner string `json:"owner"`
}

// UserRequest is the body for get-orders and get-inventory.
type UserRequest struct {
	User string `json:"user"`
	Timestamp uint64 `json:"timestamp"`
	RequestType string `json:"requestType"`
	Owner string `json:"owner"`
}

// OrderView is one resting order in a get-orders response.
type OrderView struct {
	OID uint32 `json:"oid"`
	Price string `json:"price"`
	IsBid bool `json:"isBid"`
	Qty string `json:"qty"`
}

// InventoryView is the get-inventory response shape.
type InventoryView struct {
	Address string `json:"address"`
	EthBalance string `json:"ethBalance"`
	EthLiabilities string `json:"ethLiabilities"`
	UsdcBalance string `json:"usdcBalance"`
	UsdcLiabilities string `json:"usdcLiabilities"`
	DepositNonce uint32 `json:"depositNonce"`
	IsTaker bool `json:"isTaker"`
}

// SettlementIntentRequest is the body for new-settlement-order.
type SettlementIntentRequest struct {
	User string `json:"user"`
	IsBid bool `json:"isBid"`
	EthAmount string `json:"ethAmount"`
	UsdcAmount string `json:"usdcAmount"`
	Timestamp uint64 `json:"timestamp"`
	Owner string `json:"owner"`
}

// GulpResponse is the gulp-deposits response: [eth_delta, usdc_delta].
type GulpResponse [2]string

// SettlementOrderLengthResponse is the get-settlement-order-length
// response.
type SettlementOrderLengthResponse struct {
	Count int `json:"count"`
}

// ErrorResponse is returned for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket message types
// ==============================

// WSSubscribeRequest is sent by a client to subscribe to channels.
type WSSubscribeRequest struct {
	Op string `json:"op"`
	Channels []string `json:"channels"`
}

// OrderbookUpdate is broadcast on the "orderbook" channel after every
// successful send-order, cancel-order and modify-order.
type OrderbookUpdate struct {
	Type string `json:"type"`
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
	Timestamp int64 `json:"timestamp"`
}

// PriceLevel is a (price, size) pair.
type PriceLevel struct {
	Price string `json:"price"`
	Size string `json:"size"`
}
