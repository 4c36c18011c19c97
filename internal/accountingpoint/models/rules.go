package models

import (
	"fmt"
	"time"

	id "marketroles/pkg/domain"
)

// ValidationErrorCode identifies a broken business rule. Codes travel to the
// market actor in reject documents, so they are part of the external contract.
type ValidationErrorCode string

const (
	CodeClosedDownAccountingPoint          ValidationErrorCode = "ClosedDownAccountingPoint"
	CodeNoEnergySupplierAssociated         ValidationErrorCode = "NoEnergySupplierAssociated"
	CodeAlreadyCurrentSupplier             ValidationErrorCode = "EnergySupplierIsAlreadyCurrentSupplier"
	CodeChangeOfSupplierRegisteredSameDate ValidationErrorCode = "ChangeOfSupplierRegisteredOnSameDate"
	CodeMoveInRegisteredSameDate           ValidationErrorCode = "MoveInRegisteredOnSameDate"
	CodeEffectiveDateInThePast             ValidationErrorCode = "EffectiveDateIsInThePast"
	CodeConsumerIsAlreadyCurrentConsumer   ValidationErrorCode = "ConsumerIsAlreadyCurrentConsumer"
	CodeEffectiveDateNotStartOfDay         ValidationErrorCode = "EffectiveDateIsNotStartOfDay"
	CodeEffectiveDateOutsideAllowedRange   ValidationErrorCode = "EffectiveDateIsOutsideAllowedRange"
	CodeUnknownBusinessProcess             ValidationErrorCode = "UnknownBusinessProcess"
	CodeBusinessProcessNotChangeOfSupplier ValidationErrorCode = "BusinessProcessIsNotChangeOfSupplier"
	CodeBusinessProcessNotPending          ValidationErrorCode = "BusinessProcessIsNotPending"
	CodeCancellationByOtherSupplier        ValidationErrorCode = "CancellationRequestedByOtherSupplier"
	CodeCancellationDeadlinePassed         ValidationErrorCode = "CancellationDeadlinePassed"
)

// ValidationError describes one broken rule.
type ValidationError struct {
	Code    ValidationErrorCode
	Message string
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// BusinessRule is a guard evaluated before a state transition.
type BusinessRule interface {
	IsBroken() bool
	ValidationError() ValidationError
}

// RulesValidationResult collects every broken rule rather than stopping at the
// first one, so a reject document can list all reasons.
type RulesValidationResult struct {
	Errors []ValidationError
}

func (r RulesValidationResult) Success() bool {
	return len(r.Errors) == 0
}

// Validate evaluates rules in order.
func Validate(rules ...BusinessRule) RulesValidationResult {
	var result RulesValidationResult
	for _, rule := range rules {
		if rule.IsBroken() {
			result.Errors = append(result.Errors, rule.ValidationError())
		}
	}
	return result
}

func failed(code ValidationErrorCode, msg string) RulesValidationResult {
	return RulesValidationResult{Errors: []ValidationError{{Code: code, Message: msg}}}
}

type CannotBeInStateOfClosedDownRule struct {
	State PhysicalState
}

func (r CannotBeInStateOfClosedDownRule) IsBroken() bool {
	return r.State == PhysicalStateClosedDown
}

func (r CannotBeInStateOfClosedDownRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeClosedDownAccountingPoint, Message: "accounting point is closed down"}
}

type MustHaveEnergySupplierAssociatedRule struct {
	CurrentSupplier *SupplierRegistration
}

func (r MustHaveEnergySupplierAssociatedRule) IsBroken() bool {
	return r.CurrentSupplier == nil
}

func (r MustHaveEnergySupplierAssociatedRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeNoEnergySupplierAssociated, Message: "accounting point has no energy supplier"}
}

type CannotBeCurrentSupplierRule struct {
	RequestedSupplier id.EnergySupplierID
	CurrentSupplier   *SupplierRegistration
}

func (r CannotBeCurrentSupplierRule) IsBroken() bool {
	return r.CurrentSupplier != nil && r.CurrentSupplier.EnergySupplierID == r.RequestedSupplier
}

func (r CannotBeCurrentSupplierRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeAlreadyCurrentSupplier, Message: "energy supplier is already the current supplier"}
}

type ChangeOfSupplierRegisteredOnSameDateIsNotAllowedRule struct {
	Processes     []*BusinessProcess
	EffectiveDate time.Time
}

func (r ChangeOfSupplierRegisteredOnSameDateIsNotAllowedRule) IsBroken() bool {
	return hasPendingOnDate(r.Processes, ProcessChangeOfSupplier, r.EffectiveDate)
}

func (r ChangeOfSupplierRegisteredOnSameDateIsNotAllowedRule) ValidationError() ValidationError {
	return ValidationError{
		Code:    CodeChangeOfSupplierRegisteredSameDate,
		Message: "a change of supplier is already registered on " + danishDate(r.EffectiveDate),
	}
}

type MoveInRegisteredOnSameDateIsNotAllowedRule struct {
	Processes     []*BusinessProcess
	EffectiveDate time.Time
}

func (r MoveInRegisteredOnSameDateIsNotAllowedRule) IsBroken() bool {
	return hasPendingOnDate(r.Processes, ProcessMoveIn, r.EffectiveDate)
}

func (r MoveInRegisteredOnSameDateIsNotAllowedRule) ValidationError() ValidationError {
	return ValidationError{
		Code:    CodeMoveInRegisteredSameDate,
		Message: "a move-in is already registered on " + danishDate(r.EffectiveDate),
	}
}

type EffectiveDateCannotBeInThePastRule struct {
	EffectiveDate time.Time
	Now           time.Time
}

func (r EffectiveDateCannotBeInThePastRule) IsBroken() bool {
	return id.DanishDaysBetween(r.Now, r.EffectiveDate) < 0
}

func (r EffectiveDateCannotBeInThePastRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeEffectiveDateInThePast, Message: "effective date cannot be in the past"}
}

type ConsumerMustBeDifferentFromCurrentConsumerRule struct {
	Consumer        id.ConsumerID
	CurrentConsumer *ConsumerRegistration
}

func (r ConsumerMustBeDifferentFromCurrentConsumerRule) IsBroken() bool {
	return r.CurrentConsumer != nil && r.CurrentConsumer.ConsumerID == r.Consumer
}

func (r ConsumerMustBeDifferentFromCurrentConsumerRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeConsumerIsAlreadyCurrentConsumer, Message: "consumer is already registered on the accounting point"}
}

type EffectiveDateMustBeStartOfDayRule struct {
	EffectiveDate time.Time
}

func (r EffectiveDateMustBeStartOfDayRule) IsBroken() bool {
	return !id.IsStartOfDanishDay(r.EffectiveDate)
}

func (r EffectiveDateMustBeStartOfDayRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeEffectiveDateNotStartOfDay, Message: "effective date must be midnight Danish time"}
}

// EffectiveDatePolicy bounds how far back and ahead of today a retroactive or
// future effective date may be.
type EffectiveDatePolicy struct {
	AllowedDaysBeforeToday int
	AllowedDaysAfterToday  int
}

// DefaultMoveInPolicy accepts move-ins up to 5 days back and 60 days ahead.
var DefaultMoveInPolicy = EffectiveDatePolicy{AllowedDaysBeforeToday: 5, AllowedDaysAfterToday: 60}

func (p EffectiveDatePolicy) rules(effectiveDate, now time.Time) []BusinessRule {
	return []BusinessRule{
		EffectiveDateMustBeStartOfDayRule{EffectiveDate: effectiveDate},
		effectiveDateWithinPolicyRule{policy: p, effectiveDate: effectiveDate, now: now},
	}
}

type effectiveDateWithinPolicyRule struct {
	policy        EffectiveDatePolicy
	effectiveDate time.Time
	now           time.Time
}

func (r effectiveDateWithinPolicyRule) IsBroken() bool {
	days := id.DanishDaysBetween(r.now, r.effectiveDate)
	return days < -r.policy.AllowedDaysBeforeToday || days > r.policy.AllowedDaysAfterToday
}

func (r effectiveDateWithinPolicyRule) ValidationError() ValidationError {
	return ValidationError{
		Code: CodeEffectiveDateOutsideAllowedRange,
		Message: fmt.Sprintf("effective date must be between %d days before and %d days after today",
			r.policy.AllowedDaysBeforeToday, r.policy.AllowedDaysAfterToday),
	}
}

type BusinessProcessMustBeChangeOfSupplierRule struct {
	Process *BusinessProcess
}

func (r BusinessProcessMustBeChangeOfSupplierRule) IsBroken() bool {
	return r.Process.Type != ProcessChangeOfSupplier
}

func (r BusinessProcessMustBeChangeOfSupplierRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeBusinessProcessNotChangeOfSupplier, Message: "referenced transaction is not a change of supplier"}
}

type BusinessProcessMustBePendingRule struct {
	Process *BusinessProcess
}

func (r BusinessProcessMustBePendingRule) IsBroken() bool {
	return !r.Process.IsPending()
}

func (r BusinessProcessMustBePendingRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeBusinessProcessNotPending, Message: "referenced business process is " + string(r.Process.Status)}
}

type CancellationMustBeRequestedByRegisteredSupplierRule struct {
	Registration       *SupplierRegistration
	RequestingSupplier id.EnergySupplierID
}

func (r CancellationMustBeRequestedByRegisteredSupplierRule) IsBroken() bool {
	return r.Registration == nil || r.Registration.EnergySupplierID != r.RequestingSupplier
}

func (r CancellationMustBeRequestedByRegisteredSupplierRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeCancellationByOtherSupplier, Message: "only the requesting energy supplier may cancel the change of supplier"}
}

type CancellationDeadlineRule struct {
	Process *BusinessProcess
	Now     time.Time
}

func (r CancellationDeadlineRule) IsBroken() bool {
	return !r.Now.Before(r.Process.EffectiveDate)
}

func (r CancellationDeadlineRule) ValidationError() ValidationError {
	return ValidationError{Code: CodeCancellationDeadlinePassed, Message: "change of supplier cannot be cancelled on or after its effective date"}
}

func hasPendingOnDate(processes []*BusinessProcess, processType BusinessProcessType, date time.Time) bool {
	for _, p := range processes {
		if p.Type == processType && p.IsPending() && id.SameDanishDate(p.EffectiveDate, date) {
			return true
		}
	}
	return false
}

func danishDate(t time.Time) string {
	return t.In(id.Copenhagen).Format("2006-01-02")
}
