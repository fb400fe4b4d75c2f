package model

import "errors"

// Validation error codes surfaced to callers. Stable strings: the API layer
// forwards them verbatim in the error_code response field.
const (
	CodeUnknownField         = "UNKNOWN_FIELD"
	CodeUnknownOperator      = "UNKNOWN_OPERATOR"
	CodeInvalidCondition     = "INVALID_CONDITION"
	CodeInvalidCandle        = "INVALID_CANDLE"
	CodeUnsupportedTimeframe = "UNSUPPORTED_TIMEFRAME"
	CodeUnsupportedSymbol    = "UNSUPPORTED_SYMBOL"
	CodeOutOfOrderCandle     = "OUT_OF_ORDER_CANDLE"
	CodeDuplicateRule        = "DUPLICATE_RULE"
	CodeInvalidRule          = "INVALID_RULE"
)

// ValidationError rejects malformed input synchronously; it is never
// partially applied.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ErrRuleNotFound is the state error for operations on a missing rule ID.
// Reported with no side effect.
var ErrRuleNotFound = errors.New("alert rule not found")
