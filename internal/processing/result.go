// Package processing holds what the move-in and change of supplier processes
// share: the transaction result, application-level validation codes and the
// ports the processes depend on.
package processing

import (
	"marketroles/internal/accountingpoint/models"
	id "marketroles/pkg/domain"
)

// Application checks that run before the aggregate rules.
const (
	CodeUnknownAccountingPoint     models.ValidationErrorCode = "UnknownAccountingPoint"
	CodeUnknownEnergySupplier      models.ValidationErrorCode = "UnknownEnergySupplier"
	CodeInvalidGsrnNumber          models.ValidationErrorCode = "InvalidGsrnNumber"
	CodeInvalidGlnNumber           models.ValidationErrorCode = "InvalidGlnNumber"
	CodeInvalidConsumerIdentity    models.ValidationErrorCode = "InvalidConsumerIdentity"
	CodeConsumerNameIsRequired     models.ValidationErrorCode = "ConsumerNameIsRequired"
	CodeTransactionIDIsRequired    models.ValidationErrorCode = "TransactionIDIsRequired"
	CodeEffectiveDateIsRequired    models.ValidationErrorCode = "EffectiveDateIsRequired"
	CodeSupplierDoesNotMatchSender models.ValidationErrorCode = "EnergySupplierDoesNotMatchSender"
	CodeUnsupportedBusinessProcess models.ValidationErrorCode = "UnsupportedBusinessProcess"
)

// Result is the outcome of one transaction. A failed result is a business
// rejection and is answered with a reject document, never with a Go error.
type Result struct {
	TransactionID id.TransactionID
	Success       bool
	Errors        []models.ValidationError
}

func Succeeded(transactionID id.TransactionID) Result {
	return Result{TransactionID: transactionID, Success: true}
}

func Failed(transactionID id.TransactionID, errs ...models.ValidationError) Result {
	return Result{TransactionID: transactionID, Errors: errs}
}

// FromValidation turns a rules result into a transaction result.
func FromValidation(transactionID id.TransactionID, result models.RulesValidationResult) Result {
	if result.Success() {
		return Succeeded(transactionID)
	}
	return Failed(transactionID, result.Errors...)
}

// Invalid is shorthand for a single failed check.
func Invalid(transactionID id.TransactionID, code models.ValidationErrorCode, msg string) Result {
	return Failed(transactionID, models.ValidationError{Code: code, Message: msg})
}

// Codes lists the validation error codes of a failed result.
func (r Result) Codes() []string {
	codes := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		codes = append(codes, string(e.Code))
	}
	return codes
}
