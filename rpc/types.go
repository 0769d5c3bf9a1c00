// Package rpc exposes chain and ledger state via a JSON-RPC 2.0 HTTP endpoint.
package rpc

import "encoding/json"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC error codes, plus server-defined ones in -32000..-32099.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeNotStaked      = -32001
	CodeNotFound       = -32002
)

// BalanceResult is returned by getBalance. Amounts are decimal strings.
type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`

	// NextNonce counts the sender's queued transactions on top of Nonce.
	NextNonce uint64 `json:"next_nonce"`
}

// PositionResult is returned by getStakingPosition.
type PositionResult struct {
	Address         string `json:"address"`
	StakeAmount     string `json:"stake_amount"`
	LastActionBlock uint64 `json:"last_action_block"`
}

// AmountResult wraps a single decimal amount.
type AmountResult struct {
	Amount string `json:"amount"`
}

// RewardPreviewResult is returned by calculateRewardsForUser.
type RewardPreviewResult struct {
	Address string `json:"address"`
	Block   uint64 `json:"block"`
	Reward  string `json:"reward"`
}

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}
