package domain

import (
	dErrors "marketroles/pkg/domain-errors"
)

// CprNumber is a Danish personal identification number (10 digits).
type CprNumber string

// CvrNumber is a Danish company registration number (8 digits).
type CvrNumber string

func ParseCprNumber(s string) (CprNumber, error) {
	if len(s) != 10 || !allDigits(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "cpr number must be 10 digits")
	}
	return CprNumber(s), nil
}

func ParseCvrNumber(s string) (CvrNumber, error) {
	if len(s) != 8 || !allDigits(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "cvr number must be 8 digits")
	}
	return CvrNumber(s), nil
}

// IdentityKind tells which register a consumer identity belongs to.
type IdentityKind string

const (
	IdentityCPR IdentityKind = "cpr"
	IdentityCVR IdentityKind = "cvr"
)

// ConsumerIdentity holds exactly one of a CPR or a CVR number.
type ConsumerIdentity struct {
	kind  IdentityKind
	value string
}

func NewCprIdentity(cpr CprNumber) ConsumerIdentity {
	return ConsumerIdentity{kind: IdentityCPR, value: string(cpr)}
}

func NewCvrIdentity(cvr CvrNumber) ConsumerIdentity {
	return ConsumerIdentity{kind: IdentityCVR, value: string(cvr)}
}

// ParseConsumerIdentity builds an identity from the kind/value pair used in
// storage and on the wire.
func ParseConsumerIdentity(kind IdentityKind, value string) (ConsumerIdentity, error) {
	switch kind {
	case IdentityCPR:
		cpr, err := ParseCprNumber(value)
		if err != nil {
			return ConsumerIdentity{}, err
		}
		return NewCprIdentity(cpr), nil
	case IdentityCVR:
		cvr, err := ParseCvrNumber(value)
		if err != nil {
			return ConsumerIdentity{}, err
		}
		return NewCvrIdentity(cvr), nil
	default:
		return ConsumerIdentity{}, dErrors.New(dErrors.CodeInvalidInput, "unknown consumer identity kind")
	}
}

func (c ConsumerIdentity) Kind() IdentityKind { return c.kind }
func (c ConsumerIdentity) Value() string      { return c.value }
func (c ConsumerIdentity) IsZero() bool       { return c.kind == "" }
