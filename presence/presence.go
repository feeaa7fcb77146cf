// Package presence reports which operators the distributor has heard from.
package presence

import (
	"context"

	"github.com/JiscSD/ammolib/provider"
	"github.com/JiscSD/ammolib/schema"
	"github.com/JiscSD/ammolib/types"

	"github.com/sirupsen/logrus"
)

// Presence states, as codes.
var (
	Present = types.StatePresent.Code()
	Rare    = types.StateRare.Code()
	Missed  = types.StateMissed.Code()
	Lost    = types.StateLost.Code()
	Absent  = types.StateAbsent.Code()
)

// UnknownStatus is returned for operators without a presence row.
const UnknownStatus int32 = -1

// UserStatus is the presence of a single operator.
type UserStatus struct {
	UserID string
	Status int32
}

type Presence struct {
	resolver provider.Resolver
	logger   logrus.FieldLogger
}

func New(resolver provider.Resolver, logger logrus.FieldLogger) *Presence {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Presence{resolver: resolver, logger: logger}
}

// GetAllAvailableUsers lists every known operator and their decoded state.
// It returns nil when no operator is known or the relation is unavailable.
func (p *Presence) GetAllAvailableUsers(ctx context.Context) []UserStatus {
	cur, err := p.resolver.Query(ctx, schema.Presence.ContentURI(),
		[]string{schema.ColOperator, schema.ColState}, "", nil, "")
	if err != nil || cur == nil {
		p.logger.WithError(err).Debug("Presence relation unavailable")
		return nil
	}
	defer cur.Close()
	if cur.Count() < 1 {
		return nil
	}

	op, st := cur.ColumnIndex(schema.ColOperator), cur.ColumnIndex(schema.ColState)
	users := make([]UserStatus, 0, cur.Count())
	for cur.Next() {
		users = append(users, UserStatus{
			UserID: cur.String(op),
			Status: types.DecodeState(cur.Int(st)).Code(),
		})
	}
	return users
}

// GetUserPresenceStatus returns the decoded state code of the operator, or
// UnknownStatus.
func (p *Presence) GetUserPresenceStatus(ctx context.Context, user string) int32 {
	cur, err := p.resolver.Query(ctx, schema.Presence.ContentURI(),
		[]string{schema.ColState}, schema.ColOperator+"=?", []string{user}, "")
	if err != nil || cur == nil {
		p.logger.WithError(err).WithField("user", user).Debug("Presence relation unavailable")
		return UnknownStatus
	}
	defer cur.Close()
	if !cur.Next() {
		return UnknownStatus
	}
	return types.DecodeState(cur.Int(cur.ColumnIndex(schema.ColState))).Code()
}
