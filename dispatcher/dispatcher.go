// Package dispatcher queues posts, pulls, subscriptions and publications in
// the distributor relations.
//
// Every operation reports failure as false and tells the user why through a
// Notifier; nothing is retried.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JiscSD/ammolib/provider"
	"github.com/JiscSD/ammolib/schema"
	"github.com/JiscSD/ammolib/types"

	"github.com/sirupsen/logrus"
)

const (
	// MaximumFieldSize is the largest payload, in bytes, stored inline in a
	// postal row.
	MaximumFieldSize = 9046

	DefaultExpiration = 120 * time.Second
	DefaultLifetime   = time.Hour

	postalUnit = 50
)

// Notifier shows a message to the user.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg string)

func (f NotifierFunc) Notify(ctx context.Context, msg string) {
	f(ctx, msg)
}

type logNotifier struct {
	logger logrus.FieldLogger
}

func (n logNotifier) Notify(ctx context.Context, msg string) {
	n.logger.Warn(msg)
}

type Dispatcher struct {
	resolver provider.Resolver
	notifier Notifier
	logger   logrus.FieldLogger
	now      func() time.Time
}

type Option func(*Dispatcher)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithNotifier replaces the default notifier, which logs a warning.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		d.notifier = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(resolver provider.Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver: resolver,
		logger:   logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = logNotifier{d.logger}
	}
	return d
}

type requestOptions struct {
	expiration time.Time
	lifetime   time.Duration
	worth      float64
	notice     *types.Notice
	mime       string
}

// RequestOption tunes a single operation.
type RequestOption func(*requestOptions)

// WithExpiration sets when the request stops being relevant.
func WithExpiration(t time.Time) RequestOption {
	return func(o *requestOptions) {
		o.expiration = t
	}
}

// WithLifetime sets the expiration relative to now.
func WithLifetime(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.lifetime = d
	}
}

func WithWorth(w float64) RequestOption {
	return func(o *requestOptions) {
		o.worth = w
	}
}

func WithNotice(n *types.Notice) RequestOption {
	return func(o *requestOptions) {
		o.notice = n
	}
}

// WithMIME overrides the type PostURI would otherwise ask the resolver for.
func WithMIME(mime string) RequestOption {
	return func(o *requestOptions) {
		o.mime = mime
	}
}

func (d *Dispatcher) options(lifetime time.Duration, opts []RequestOption) *requestOptions {
	o := &requestOptions{lifetime: lifetime}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

func (d *Dispatcher) expiration(o *requestOptions) int64 {
	if !o.expiration.IsZero() {
		return millis(o.expiration)
	}
	return millis(d.now().Add(o.lifetime))
}

func (d *Dispatcher) common(vals types.Values, o *requestOptions) types.Values {
	vals.PutLong(schema.ColExpiration, d.expiration(o))
	vals.PutLong(schema.ColCreatedDate, millis(d.now()))
	if o.notice != nil {
		vals.PutBytes(schema.ColNotice, o.notice.Pickle())
	}
	return vals
}

func (d *Dispatcher) fail(ctx context.Context, err error, msg string) bool {
	d.logger.WithError(err).Debug(msg)
	d.notifier.Notify(ctx, msg)
	return false
}

// PostString queues data for distribution under the given MIME type. Data
// shorter than MaximumFieldSize is stored in the row; larger data is written
// to the row's out-of-band stream.
func (d *Dispatcher) PostString(ctx context.Context, mime, data string, opts ...RequestOption) bool {
	return d.postBytes(ctx, mime, []byte(data), opts)
}

// PostValues queues the JSON encoding of vals.
func (d *Dispatcher) PostValues(ctx context.Context, mime string, vals types.Values, opts ...RequestOption) bool {
	data, err := json.Marshal(vals)
	if err != nil {
		return d.fail(ctx, err, "could not encode values")
	}
	return d.postBytes(ctx, mime, data, opts)
}

func (d *Dispatcher) postBytes(ctx context.Context, mime string, data []byte, opts []RequestOption) bool {
	o := d.options(DefaultExpiration, opts)
	vals := d.common(types.NewValues().
		PutString(schema.ColCPType, mime).
		PutInt(schema.ColDisposition, int32(schema.DispositionPending)).
		PutInt(schema.ColSerializeType, int32(schema.SerializeDirect)).
		PutInt(schema.ColUnit, postalUnit).
		PutDouble(schema.ColValue, o.worth), o)

	logger := d.logger.WithFields(logrus.Fields{"mime": mime, "size": len(data)})
	if len(data) < MaximumFieldSize {
		vals.PutBytes(schema.ColData, data)
		if _, err := d.resolver.Insert(ctx, schema.Postal.ContentURI(), vals); err != nil {
			return d.fail(ctx, err, "missing postal content provider")
		}
		logger.Debug("Posted inline")
		return true
	}

	rowURI, err := d.resolver.Insert(ctx, schema.Postal.ContentURI(), vals)
	if err != nil {
		return d.fail(ctx, err, "missing postal content provider")
	}
	w, err := d.resolver.OpenWriteStream(ctx, rowURI)
	if err != nil {
		return d.fail(ctx, err, "could not open postal data stream")
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return d.fail(ctx, err, "could not write postal data")
	}
	if err := w.Close(); err != nil {
		return d.fail(ctx, err, "could not write postal data")
	}
	logger.WithField("row", rowURI).Debug("Posted out-of-band")
	return true
}

// PostURI queues the item at uri, which is serialized when it is sent.
func (d *Dispatcher) PostURI(ctx context.Context, uri string, opts ...RequestOption) bool {
	if uri == "" {
		return false
	}
	if d.resolver.GetType(ctx, schema.Postal.ContentURI()) == "" {
		return false
	}
	o := d.options(DefaultExpiration, opts)
	mime := o.mime
	if mime == "" {
		mime = d.resolver.GetType(ctx, uri)
	}
	vals := d.common(types.NewValues().
		PutString(schema.ColCPType, mime).
		PutString(schema.ColURI, uri).
		PutInt(schema.ColSerializeType, int32(schema.SerializeIndirect)).
		PutInt(schema.ColDisposition, int32(schema.DispositionPending)).
		PutInt(schema.ColUnit, postalUnit).
		PutDouble(schema.ColValue, o.worth), o)

	return d.upsert(ctx, upsert{
		rel:       schema.Postal,
		label:     "postal",
		vals:      vals,
		selection: quoted(schema.ColURI) + " = ?",
		args:      []string{uri},
		deleteBy:  uri,
	})
}

// Pull asks for the items at uri matching query. The request lasts
// DefaultLifetime unless told otherwise.
func (d *Dispatcher) Pull(ctx context.Context, uri, mime, query string, opts ...RequestOption) bool {
	o := d.options(DefaultLifetime, opts)
	vals := d.common(types.NewValues().
		PutString(schema.ColMIME, mime).
		PutString(schema.ColURI, uri).
		PutInt(schema.ColDisposition, int32(schema.DispositionPending)).
		PutString(schema.ColSelection, query).
		PutString(schema.ColProjection, ""), o)

	return d.upsert(ctx, upsert{
		rel:       schema.Retrieval,
		label:     "pull",
		vals:      vals,
		selection: quoted(schema.ColURI) + " = ?",
		args:      []string{uri},
		deleteBy:  uri,
	})
}

// Subscribe registers interest in items of the given type published at
// uri. An existing subscription is refreshed; it becomes pending again
// only if it had been cancelled.
func (d *Dispatcher) Subscribe(ctx context.Context, uri, mime, filter string, opts ...RequestOption) bool {
	o := d.options(DefaultLifetime, opts)
	vals := d.common(types.NewValues().
		PutString(schema.ColMIME, mime).
		PutString(schema.ColURI, uri).
		PutString(schema.ColSelection, filter), o)

	return d.upsert(ctx, upsert{
		rel:        schema.Subscription,
		label:      "subscriber",
		vals:       vals,
		projection: []string{schema.ColID, schema.ColExpiration},
		selection:  quoted(schema.ColURI) + " = ? AND " + quoted(schema.ColMIME) + " = ?",
		args:       []string{uri, mime},
		deleteBy:   uri,
		existing: func(cur provider.Cursor, vals types.Values) {
			if cur.Long(cur.ColumnIndex(schema.ColExpiration)) == 0 {
				vals.PutInt(schema.ColDisposition, int32(schema.DispositionPending))
			}
		},
		fresh: func(vals types.Values) {
			vals.PutInt(schema.ColDisposition, int32(schema.DispositionPending))
		},
	})
}

// Unsubscribe cancels the subscriptions at uri, or only those of the given
// MIME type when one is passed.
func (d *Dispatcher) Unsubscribe(ctx context.Context, uri string, mime ...string) bool {
	vals := types.NewValues().PutLong(schema.ColExpiration, 0)
	selection := quoted(schema.ColURI) + " = ?"
	args := []string{uri}
	if len(mime) > 0 && mime[0] != "" {
		vals.PutString(schema.ColMIME, mime[0])
		selection += " AND " + quoted(schema.ColMIME) + " = ?"
		args = append(args, mime[0])
	}
	n, err := d.resolver.Update(ctx, schema.Subscription.ContentURI(), vals, selection, args)
	if err != nil {
		d.logger.WithError(err).WithField("uri", uri).Warn("Unsubscribe failed")
		return true
	}
	d.logger.WithFields(logrus.Fields{"uri": uri, "rows": n}).Debug("Unsubscribed")
	return true
}

// Publish announces that items of the given type are available at uri.
func (d *Dispatcher) Publish(ctx context.Context, uri, mime string, opts ...RequestOption) bool {
	o := d.options(DefaultExpiration, opts)
	vals := d.common(types.NewValues().
		PutString(schema.ColMIME, mime).
		PutString(schema.ColURI, uri).
		PutInt(schema.ColDisposition, int32(schema.DispositionPending)), o)

	return d.upsert(ctx, upsert{
		rel:       schema.Publication,
		label:     "publisher",
		vals:      vals,
		selection: quoted(schema.ColURI) + " = ?",
		args:      []string{uri},
		deleteBy:  uri,
	})
}

func quoted(col string) string {
	return `"` + col + `"`
}

type upsert struct {
	rel        schema.Relation
	label      string
	vals       types.Values
	projection []string
	selection  string
	args       []string
	deleteBy   string

	// existing adjusts vals before the single matching row is updated.
	existing func(provider.Cursor, types.Values)
	// fresh adjusts vals before a new row is inserted.
	fresh func(types.Values)
}

// upsert updates the one row matching u.selection, or inserts a row when
// none matches. Several matches mean the relation is corrupted: they are
// all removed before inserting. The lookup and the write do not share a
// transaction, so concurrent callers may both insert.
func (d *Dispatcher) upsert(ctx context.Context, u upsert) bool {
	projection := u.projection
	if projection == nil {
		projection = []string{schema.ColID}
	}
	cur, err := d.resolver.Query(ctx, u.rel.ContentURI(), projection, u.selection, u.args, "")
	if err != nil || cur == nil {
		return d.fail(ctx, err, fmt.Sprintf("missing %s content provider", u.label))
	}
	defer cur.Close()

	logger := d.logger.WithFields(logrus.Fields{"relation": u.rel.Name, "key": u.deleteBy})
	switch n := cur.Count(); {
	case n == 1:
		cur.Next()
		id := cur.Long(cur.ColumnIndex(schema.ColID))
		if u.existing != nil {
			u.existing(cur, u.vals)
		}
		logger.WithField("id", id).Debug("Updating existing request")
		if _, err := d.resolver.Update(ctx, u.rel.ItemURI(id), u.vals, "", nil); err != nil {
			return d.fail(ctx, err, fmt.Sprintf("could not update %s request", u.label))
		}
		return true
	case n > 1:
		d.notifier.Notify(ctx, fmt.Sprintf("corrupted %s content provider; removing offending tuples", u.label))
		if _, err := d.resolver.Delete(ctx, u.rel.ContentURI(), quoted(schema.ColURI)+" = ?", []string{u.deleteBy}); err != nil {
			return d.fail(ctx, err, fmt.Sprintf("could not repair %s content provider", u.label))
		}
	}
	if u.fresh != nil {
		u.fresh(u.vals)
	}
	logger.Debug("Inserting request")
	if _, err := d.resolver.Insert(ctx, u.rel.ContentURI(), u.vals); err != nil {
		return d.fail(ctx, err, fmt.Sprintf("could not insert %s request", u.label))
	}
	return true
}
