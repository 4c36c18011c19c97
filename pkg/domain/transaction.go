package domain

import (
	"strings"

	dErrors "marketroles/pkg/domain-errors"
)

const maxIdentifierLength = 36

// TransactionID is the sender-assigned mRID of one market activity record.
type TransactionID string

func ParseTransactionID(s string) (TransactionID, error) {
	v, err := parseIdentifier("transaction id", s)
	return TransactionID(v), err
}

func (t TransactionID) String() string { return string(t) }

// MessageID is the sender-assigned mRID of a market document header.
type MessageID string

func ParseMessageID(s string) (MessageID, error) {
	v, err := parseIdentifier("message id", s)
	return MessageID(v), err
}

func (m MessageID) String() string { return string(m) }

func parseIdentifier(kind, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	if len(s) > maxIdentifierLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, kind+" must be at most 36 characters")
	}
	return s, nil
}
