// Package preference reads and writes the shared preferences kept by the
// preference provider.
package preference

import (
	"context"
	"strings"

	"github.com/JiscSD/ammolib/provider"
	"github.com/JiscSD/ammolib/schema"
	"github.com/JiscSD/ammolib/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// WriterPackagePrefix is the package name prefix of callers allowed to
// write preferences.
const WriterPackagePrefix = "edu.vu.isis.ammo.core"

// ErrReadOnlyAccess is returned when a caller without write permission
// tries to change a preference.
var ErrReadOnlyAccess = errors.New("preferences are read-only for this caller")

// Broadcaster delivers change notifications.
type Broadcaster interface {
	Broadcast(ctx context.Context, intent *types.Intent) error
}

type Preference struct {
	resolver    provider.Resolver
	writable    bool
	logger      logrus.FieldLogger
	broadcaster Broadcaster
}

type Option func(*Preference)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Preference) {
		p.logger = logger
	}
}

// WithBroadcaster sends a schema.PreferenceChangedAction intent after every
// successful write.
func WithBroadcaster(b Broadcaster) Option {
	return func(p *Preference) {
		p.broadcaster = b
	}
}

// New returns the preferences as seen by the named package.
func New(resolver provider.Resolver, packageName string, opts ...Option) *Preference {
	p := &Preference{
		resolver: resolver,
		writable: strings.HasPrefix(packageName, WriterPackagePrefix),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Writable reports whether the Put methods are allowed.
func (p *Preference) Writable() bool {
	return p.writable
}

// lookup returns the stored text of key, or ok false when the relation, the
// row or the column is missing.
func (p *Preference) lookup(ctx context.Context, key string, t schema.PrefType, def string) (string, bool) {
	cur, err := p.resolver.Query(ctx, schema.Preference.ContentURI(), []string{key}, string(t), []string{def}, "")
	if err != nil || cur == nil {
		p.logger.WithError(err).WithField("key", key).Debug("Preference provider unavailable")
		return "", false
	}
	defer cur.Close()
	if cur.Count() < 1 {
		return "", false
	}
	idx := cur.ColumnIndex(key)
	if idx < 0 || !cur.Next() {
		return "", false
	}
	return cur.String(idx), true
}

func (p *Preference) GetString(ctx context.Context, key, def string) string {
	s, ok := p.lookup(ctx, key, schema.PrefString, def)
	if !ok {
		return def
	}
	return s
}

func (p *Preference) GetBool(ctx context.Context, key string, def bool) bool {
	s, ok := p.lookup(ctx, key, schema.PrefBoolean, cast.ToString(def))
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(s)
	if err != nil {
		return def
	}
	return b
}

func (p *Preference) GetFloat(ctx context.Context, key string, def float32) float32 {
	s, ok := p.lookup(ctx, key, schema.PrefFloat, cast.ToString(def))
	if !ok {
		return def
	}
	f, err := cast.ToFloat32E(s)
	if err != nil {
		return def
	}
	return f
}

func (p *Preference) GetInt(ctx context.Context, key string, def int32) int32 {
	s, ok := p.lookup(ctx, key, schema.PrefInt, cast.ToString(def))
	if !ok {
		return def
	}
	i, err := cast.ToInt32E(s)
	if err != nil {
		return def
	}
	return i
}

func (p *Preference) GetLong(ctx context.Context, key string, def int64) int64 {
	s, ok := p.lookup(ctx, key, schema.PrefLong, cast.ToString(def))
	if !ok {
		return def
	}
	i, err := cast.ToInt64E(s)
	if err != nil {
		return def
	}
	return i
}

func (p *Preference) put(ctx context.Context, key string, t schema.PrefType, val string) error {
	if !p.writable {
		return ErrReadOnlyAccess
	}
	vals := types.NewValues().PutString(key, val)
	if _, err := p.resolver.Update(ctx, schema.Preference.ContentURI(), vals, string(t), []string{key}); err != nil {
		return errors.Wrapf(err, "error writing preference %s", key)
	}
	if p.broadcaster == nil {
		return nil
	}
	intent := &types.Intent{
		Action: schema.PreferenceChangedAction,
		Data:   schema.Preference.ContentURI(),
		Extras: map[string]string{
			schema.ExtraPrefChangedKey:   key,
			schema.ExtraPrefChangedValue: val,
		},
	}
	if err := p.broadcaster.Broadcast(ctx, intent); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Preference change notification failed")
	}
	return nil
}

func (p *Preference) PutString(ctx context.Context, key, val string) error {
	return p.put(ctx, key, schema.PrefString, val)
}

func (p *Preference) PutBool(ctx context.Context, key string, val bool) error {
	return p.put(ctx, key, schema.PrefBoolean, cast.ToString(val))
}

func (p *Preference) PutFloat(ctx context.Context, key string, val float32) error {
	return p.put(ctx, key, schema.PrefFloat, cast.ToString(val))
}

func (p *Preference) PutInt(ctx context.Context, key string, val int32) error {
	return p.put(ctx, key, schema.PrefInt, cast.ToString(val))
}

func (p *Preference) PutLong(ctx context.Context, key string, val int64) error {
	return p.put(ctx, key, schema.PrefLong, cast.ToString(val))
}
