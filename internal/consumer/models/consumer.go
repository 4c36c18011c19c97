package models

import (
	"strings"

	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
)

// Consumer is the legal person occupying an accounting point, identified by
// exactly one of CPR or CVR.
type Consumer struct {
	ID       id.ConsumerID
	Identity id.ConsumerIdentity
	Name     string
}

func NewConsumer(identity id.ConsumerIdentity, name string) (*Consumer, error) {
	if identity.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consumer identity is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consumer name is required")
	}
	return &Consumer{
		ID:       id.NewConsumerID(),
		Identity: identity,
		Name:     name,
	}, nil
}
