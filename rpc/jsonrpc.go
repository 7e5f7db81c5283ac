package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core"
	"primenumbers/crypto"
	"primenumbers/native/bounty"
	nativecommon "primenumbers/native/common"
	"primenumbers/native/compounder"
	"primenumbers/native/mfd"
	"primenumbers/native/token"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeForbidden      = -32002
	codeRateLimited    = -32020
	codePaused         = -32030
	codeReverted       = -32040
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	status  int
}

func (e *RPCError) Error() string { return e.Message }

func newError(status, code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data, status: status}
}

func invalidParams(format string, args ...interface{}) *RPCError {
	return newError(http.StatusBadRequest, codeInvalidParams, fmt.Sprintf(format, args...), nil)
}

func writeError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	status := rpcErr.status
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// toRPCError maps a failed operation onto a JSON-RPC error. Reverted
// operations keep their error text so callers can tell conditions apart.
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	switch {
	case errors.Is(err, nativecommon.ErrNotOwner),
		errors.Is(err, nativecommon.ErrInsufficientPermission),
		errors.Is(err, nativecommon.ErrNotWhitelisted),
		errors.Is(err, bounty.ErrHunterNotEligible):
		return newError(http.StatusForbidden, codeForbidden, err.Error(), nil)
	case errors.Is(err, nativecommon.ErrModulePaused):
		return newError(http.StatusServiceUnavailable, codePaused, err.Error(), nil)
	case errors.Is(err, nativecommon.ErrInvalidNumber),
		errors.Is(err, nativecommon.ErrInvalidRatio),
		errors.Is(err, nativecommon.ErrAmountTooSmall),
		errors.Is(err, nativecommon.ErrAddressZero),
		errors.Is(err, bounty.ErrActionTypeIndexOutOfBounds),
		errors.Is(err, mfd.ErrInvalidType),
		errors.Is(err, mfd.ErrInvalidSlippage),
		errors.Is(err, compounder.ErrInvalidSlippage),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, core.ErrUnknownFeed):
		return newError(http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
	default:
		return newError(http.StatusUnprocessableEntity, codeReverted, err.Error(), nil)
	}
}

// decodeParams unmarshals the single object parameter of req into dst.
func decodeParams(req *RPCRequest, dst interface{}) *RPCError {
	if len(req.Params) != 1 {
		return invalidParams("expected a single parameter object")
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		return invalidParams("invalid parameter object: %v", err)
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, *RPCError) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return common.Address{}, invalidParams("%s: %v", field, err)
	}
	return addr, nil
}

// parseAmount reads a positive integer amount in base units.
func parseAmount(field, raw string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidParams("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, invalidParams("%s must be a positive integer", field)
	}
	return amount, nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
