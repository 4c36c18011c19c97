package ingestion

import (
	apmodels "marketroles/internal/accountingpoint/models"
	"marketroles/internal/messaging/cim"
	"marketroles/internal/processing"
)

// Reason codes used in reject documents.
const (
	ReasonUnknownAccountingPoint = "E10"
	ReasonEnergySupplier         = "E16"
	ReasonEffectiveDate          = "E17"
	ReasonNotPossible            = "E22"
	ReasonBusinessProcess        = "E47"
	ReasonConsumer               = "D17"
	ReasonSchema                 = "E86"
)

var reasonByCode = map[apmodels.ValidationErrorCode]string{
	processing.CodeUnknownAccountingPoint: ReasonUnknownAccountingPoint,
	processing.CodeInvalidGsrnNumber:      ReasonUnknownAccountingPoint,

	processing.CodeUnknownEnergySupplier:      ReasonEnergySupplier,
	processing.CodeInvalidGlnNumber:           ReasonEnergySupplier,
	processing.CodeSupplierDoesNotMatchSender: ReasonEnergySupplier,
	apmodels.CodeCancellationByOtherSupplier:  ReasonEnergySupplier,

	processing.CodeEffectiveDateIsRequired:        ReasonEffectiveDate,
	apmodels.CodeEffectiveDateInThePast:           ReasonEffectiveDate,
	apmodels.CodeEffectiveDateNotStartOfDay:       ReasonEffectiveDate,
	apmodels.CodeEffectiveDateOutsideAllowedRange: ReasonEffectiveDate,
	apmodels.CodeCancellationDeadlinePassed:       ReasonEffectiveDate,

	apmodels.CodeClosedDownAccountingPoint:          ReasonNotPossible,
	apmodels.CodeNoEnergySupplierAssociated:         ReasonNotPossible,
	apmodels.CodeAlreadyCurrentSupplier:             ReasonNotPossible,
	apmodels.CodeChangeOfSupplierRegisteredSameDate: ReasonNotPossible,
	apmodels.CodeMoveInRegisteredSameDate:           ReasonNotPossible,

	apmodels.CodeUnknownBusinessProcess:             ReasonBusinessProcess,
	apmodels.CodeBusinessProcessNotChangeOfSupplier: ReasonBusinessProcess,
	apmodels.CodeBusinessProcessNotPending:          ReasonBusinessProcess,
	processing.CodeUnsupportedBusinessProcess:       ReasonBusinessProcess,

	processing.CodeInvalidConsumerIdentity:        ReasonConsumer,
	processing.CodeConsumerNameIsRequired:         ReasonConsumer,
	apmodels.CodeConsumerIsAlreadyCurrentConsumer: ReasonConsumer,
}

// reasonsForResult maps business validation errors to reject reasons.
// Unmapped codes fall back to E86.
func reasonsForResult(result processing.Result) []cim.Reason {
	reasons := make([]cim.Reason, 0, len(result.Errors))
	for _, e := range result.Errors {
		code, ok := reasonByCode[e.Code]
		if !ok {
			code = ReasonSchema
		}
		reasons = append(reasons, cim.Reason{Code: code, Text: e.Message})
	}
	return reasons
}

func reasonsForValidation(errs []cim.ValidationError) []cim.Reason {
	reasons := make([]cim.Reason, 0, len(errs))
	for _, e := range errs {
		reasons = append(reasons, cim.Reason{Code: ReasonSchema, Text: e.Message})
	}
	return reasons
}
