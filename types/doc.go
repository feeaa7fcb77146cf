/*
Package types provides the value types carried by requests: payloads,
topics, providers, notices, ordering, timing, limits, scopes, selections and
presence states.

Every value type writes itself to a parcel after a null flag and is read
back through a package-level Read function that checks the flag first.
Tagged unions write an int discriminant before the variant fields. An
unrecognized discriminant is logged and decoded as nil (or the type's NONE
sentinel) so that a malformed field never aborts the enclosing decode.
*/
package types

import (
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.WithField("component", "types")

// SetLogger replaces the logger used to report decode anomalies.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		return
	}
	logger = l
}
