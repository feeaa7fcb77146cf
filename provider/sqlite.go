package provider

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JiscSD/ammolib/schema"
	"github.com/JiscSD/ammolib/schema/nevada"
	"github.com/JiscSD/ammolib/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	_ "modernc.org/sqlite"
)

// SQLiteResolver implements Resolver on top of a SQLite database.
type SQLiteResolver struct {
	db        *sql.DB
	logger    logrus.FieldLogger
	blobs     BlobStore
	now       func() time.Time
	relations map[string]schema.Relation
}

var _ Resolver = (*SQLiteResolver)(nil)

type Option func(*SQLiteResolver)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *SQLiteResolver) {
		r.logger = logger
	}
}

// WithBlobStore sets where out-of-band data is kept. The default is a
// FSBlobStore next to the database file.
func WithBlobStore(blobs BlobStore) Option {
	return func(r *SQLiteResolver) {
		r.blobs = blobs
	}
}

// WithRelations registers additional relations.
func WithRelations(rels ...schema.Relation) Option {
	return func(r *SQLiteResolver) {
		for _, rel := range rels {
			r.relations[rel.Authority+"/"+rel.Name] = rel
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *SQLiteResolver) {
		r.now = now
	}
}

// DefaultRelations returns the relations every resolver serves: the
// distributor relations, the preference relation and the Nevada tables.
func DefaultRelations() []schema.Relation {
	rels := make([]schema.Relation, 0, len(schema.Relations)+1+len(nevada.Tables))
	rels = append(rels, schema.Relations...)
	rels = append(rels, schema.Preference)
	for _, t := range nevada.Tables {
		rels = append(rels, t.Relation)
	}
	return rels
}

// NewSQLiteResolver opens or creates the database at path and migrates the
// relations.
func NewSQLiteResolver(ctx context.Context, path string, opts ...Option) (*SQLiteResolver, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create db dir")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}

	r := &SQLiteResolver{
		db:        db,
		logger:    logrus.StandardLogger(),
		now:       time.Now,
		relations: map[string]schema.Relation{},
	}
	WithRelations(DefaultRelations()...)(r)
	for _, opt := range opts {
		opt(r)
	}
	if r.blobs == nil {
		r.blobs = NewFSBlobStore(afero.NewOsFs(), filepath.Join(filepath.Dir(path), DefaultBlobDir))
	}

	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return r, nil
}

func (r *SQLiteResolver) Close() error {
	return r.db.Close()
}

func quote(name string) string {
	return `"` + strings.Replace(name, `"`, `""`, -1) + `"`
}

func createTable(rel schema.Relation) string {
	defs := make([]string, len(rel.Columns))
	for i, c := range rel.Columns {
		def := quote(c.Name) + " " + string(c.Affinity)
		switch {
		case c.Name == schema.ColID:
			def += " PRIMARY KEY AUTOINCREMENT"
		case rel.Name == schema.Preference.Name && c.Name == schema.ColPrefKey:
			def += " PRIMARY KEY"
		}
		defs[i] = def
	}
	if rel.HasColumn(schema.ColData) {
		defs = append(defs, quote(colBlob)+" "+string(schema.Text))
	}
	return "CREATE TABLE IF NOT EXISTS " + quote(rel.Name) + " (" + strings.Join(defs, ", ") + ")"
}

// migrate creates the relations. Databases written with a different schema
// version lose their tables, as queued requests cannot be carried across.
func (r *SQLiteResolver) migrate(ctx context.Context) error {
	var version int
	if err := r.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if version != 0 && version != schema.DatabaseVersion {
		r.logger.WithFields(logrus.Fields{
			"from": version,
			"to":   schema.DatabaseVersion,
		}).Warn("Upgrading database, which will destroy all old data")
		for _, rel := range r.relations {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(rel.Name)); err != nil {
				return err
			}
		}
	}
	for _, rel := range r.relations {
		if _, err := tx.ExecContext(ctx, createTable(rel)); err != nil {
			return errors.Wrapf(err, "create table %s", rel.Name)
		}
		if err := addBlobColumn(ctx, tx, rel); err != nil {
			return errors.Wrapf(err, "add blob column to %s", rel.Name)
		}
		if rel.PrioritySortOrder != "" {
			idx := "CREATE INDEX IF NOT EXISTS " + quote("idx_"+rel.Name+"_priority") +
				" ON " + quote(rel.Name) + "(" + quote(schema.ColExpiration) + ", " + quote(schema.ColModifiedDate) + ")"
			if _, err := tx.ExecContext(ctx, idx); err != nil {
				return err
			}
		}
	}
	if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(schema.DatabaseVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// addBlobColumn adds colBlob to tables created before it existed.
func addBlobColumn(ctx context.Context, tx *sql.Tx, rel schema.Relation) error {
	if !rel.HasColumn(schema.ColData) {
		return nil
	}
	rows, err := tx.QueryContext(ctx, "PRAGMA table_info("+quote(rel.Name)+")")
	if err != nil {
		return err
	}
	cur, err := readRows(rows)
	if err != nil {
		return err
	}
	name := cur.ColumnIndex("name")
	for cur.Next() {
		if cur.String(name) == colBlob {
			return nil
		}
	}
	_, err = tx.ExecContext(ctx, "ALTER TABLE "+quote(rel.Name)+" ADD COLUMN "+quote(colBlob)+" "+string(schema.Text))
	return err
}

func (r *SQLiteResolver) route(uri string) (schema.Relation, contentURI, error) {
	c, err := parseURI(uri)
	if err != nil {
		return schema.Relation{}, c, err
	}
	rel, ok := r.relations[c.key()]
	if !ok {
		return schema.Relation{}, c, errors.Wrapf(ErrUnknownURI, "%q", uri)
	}
	return rel, c, nil
}

func isPreference(rel schema.Relation) bool {
	return rel.Authority == schema.Preference.Authority && rel.Name == schema.Preference.Name
}

func (r *SQLiteResolver) checkColumns(rel schema.Relation, cols []string) error {
	for _, c := range cols {
		if !rel.HasColumn(c) {
			return errors.Errorf("relation %s has no column %q", rel.Name, c)
		}
	}
	return nil
}

// where joins the caller's selection with the row scope of an item URI.
func where(selection string, args []string, c contentURI) (string, []interface{}) {
	var clauses []string
	params := make([]interface{}, 0, len(args)+1)
	if selection != "" {
		clauses = append(clauses, "("+selection+")")
		for _, a := range args {
			params = append(params, a)
		}
	}
	if c.item {
		clauses = append(clauses, quote(schema.ColID)+" = ?")
		params = append(params, c.id)
	}
	if len(clauses) == 0 {
		return "", params
	}
	return " WHERE " + strings.Join(clauses, " AND "), params
}

func (r *SQLiteResolver) Query(ctx context.Context, uri string, projection []string, selection string, args []string, sortOrder string) (Cursor, error) {
	rel, c, err := r.route(uri)
	if err != nil {
		return nil, err
	}
	if isPreference(rel) {
		if t, ok := schema.ParsePrefType(selection); ok {
			return r.queryPreference(ctx, projection, t, args)
		}
	}
	if err := r.checkColumns(rel, projection); err != nil {
		return nil, err
	}

	if len(projection) == 0 {
		projection = make([]string, len(rel.Columns))
		for i, col := range rel.Columns {
			projection[i] = col.Name
		}
	}
	quoted := make([]string, len(projection))
	for i, p := range projection {
		quoted[i] = quote(p)
	}
	cols := strings.Join(quoted, ", ")
	clause, params := where(selection, args, c)
	q := "SELECT " + cols + " FROM " + quote(rel.Name) + clause
	if sortOrder == "" {
		sortOrder = rel.DefaultSortOrder
	}
	if sortOrder != "" {
		q += " ORDER BY " + sortOrder
	}

	rows, err := r.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", rel.Name)
	}
	return readRows(rows)
}

// queryPreference answers a typed preference lookup: the projection names
// the keys and args holds their defaults.
func (r *SQLiteResolver) queryPreference(ctx context.Context, keys []string, t schema.PrefType, defaults []string) (Cursor, error) {
	row := make([]interface{}, len(keys))
	found := false
	for i, key := range keys {
		var val sql.NullString
		err := r.db.QueryRowContext(ctx,
			"SELECT "+quote(schema.ColPrefValue)+" FROM "+quote(schema.Preference.Name)+" WHERE "+quote(schema.ColPrefKey)+" = ?",
			key).Scan(&val)
		switch {
		case err == sql.ErrNoRows:
			if i < len(defaults) {
				row[i] = defaults[i]
				found = true
			}
		case err != nil:
			return nil, errors.Wrap(err, "query preference")
		case val.Valid:
			row[i] = val.String
			found = true
		}
	}
	if !found {
		return newCursor(keys, nil), nil
	}
	r.logger.WithFields(logrus.Fields{"keys": keys, "type": t}).Debug("Preference lookup")
	return newCursor(keys, [][]interface{}{row}), nil
}

func (r *SQLiteResolver) Insert(ctx context.Context, uri string, vals types.Values) (string, error) {
	rel, c, err := r.route(uri)
	if err != nil {
		return "", err
	}
	if c.item {
		return "", errors.Errorf("cannot insert into row URI %s", uri)
	}
	vals = r.stamp(rel, vals, schema.ColCreatedDate, schema.ColModifiedDate)
	keys := vals.Keys()
	if err := r.checkColumns(rel, keys); err != nil {
		return "", err
	}

	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	params := make([]interface{}, len(keys))
	for i, k := range keys {
		cols[i] = quote(k)
		marks[i] = "?"
		params[i], _ = vals.Get(k)
	}
	verb := "INSERT"
	if isPreference(rel) {
		verb = "INSERT OR REPLACE"
	}
	q := verb + " INTO " + quote(rel.Name) + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	res, err := r.db.ExecContext(ctx, q, params...)
	if err != nil {
		return "", errors.Wrapf(err, "insert into %s", rel.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", errors.Wrap(err, "last insert id")
	}
	return rel.ItemURI(id), nil
}

// stamp sets the given time columns to now when the relation has them and
// the caller did not.
func (r *SQLiteResolver) stamp(rel schema.Relation, vals types.Values, cols ...string) types.Values {
	out := types.NewValues()
	for k, v := range vals {
		out[k] = v
	}
	now := r.now().UnixNano() / int64(time.Millisecond)
	for _, col := range cols {
		if rel.HasColumn(col) && !out.Has(col) {
			out.PutLong(col, now)
		}
	}
	return out
}

func (r *SQLiteResolver) Update(ctx context.Context, uri string, vals types.Values, selection string, args []string) (int, error) {
	rel, c, err := r.route(uri)
	if err != nil {
		return 0, err
	}
	if isPreference(rel) {
		if t, ok := schema.ParsePrefType(selection); ok {
			return r.updatePreference(ctx, vals, t)
		}
	}
	vals = r.stamp(rel, vals, schema.ColModifiedDate)
	keys := vals.Keys()
	if err := r.checkColumns(rel, keys); err != nil {
		return 0, err
	}
	sets := make([]string, len(keys))
	params := make([]interface{}, 0, len(keys)+len(args)+1)
	for i, k := range keys {
		sets[i] = quote(k) + " = ?"
		v, _ := vals.Get(k)
		params = append(params, v)
	}
	clause, wparams := where(selection, args, c)

	// New inline data replaces out-of-band data.
	var blobs []string
	if vals.Has(schema.ColData) && rel.HasColumn(schema.ColData) {
		if blobs, err = r.rowBlobs(ctx, rel, clause, wparams); err != nil {
			return 0, err
		}
		sets = append(sets, quote(colBlob)+" = NULL")
	}

	q := "UPDATE " + quote(rel.Name) + " SET " + strings.Join(sets, ", ") + clause
	res, err := r.db.ExecContext(ctx, q, append(params, wparams...)...)
	if err != nil {
		return 0, errors.Wrapf(err, "update %s", rel.Name)
	}
	r.removeBlobs(ctx, blobs)
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "rows affected")
}

// rowBlobs lists the blobs of the rows matched by clause.
func (r *SQLiteResolver) rowBlobs(ctx context.Context, rel schema.Relation, clause string, params []interface{}) ([]string, error) {
	if !rel.HasColumn(schema.ColData) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, "SELECT "+quote(colBlob)+" FROM "+quote(rel.Name)+clause, params...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", rel.Name)
	}
	cur, err := readRows(rows)
	if err != nil {
		return nil, err
	}
	var blobs []string
	for cur.Next() {
		if name := cur.String(0); validBlobName(name) {
			blobs = append(blobs, name)
		}
	}
	return blobs, nil
}

func (r *SQLiteResolver) removeBlobs(ctx context.Context, blobs []string) {
	for _, name := range blobs {
		if err := r.blobs.Remove(ctx, name); err != nil {
			r.logger.WithError(err).WithField("blob", name).Warn("Failed to remove blob")
		}
	}
}

// updatePreference stores every key of vals with the given type.
func (r *SQLiteResolver) updatePreference(ctx context.Context, vals types.Values, t schema.PrefType) (int, error) {
	now := r.now().UnixNano() / int64(time.Millisecond)
	n := 0
	for _, key := range vals.Keys() {
		val, _ := vals.AsString(key)
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO "+quote(schema.Preference.Name)+` ("key", "value", "type", "modified_date") VALUES (?, ?, ?, ?) `+
				`ON CONFLICT("key") DO UPDATE SET "value" = excluded."value", "type" = excluded."type", "modified_date" = excluded."modified_date"`,
			key, val, string(t), now)
		if err != nil {
			return n, errors.Wrapf(err, "update preference %s", key)
		}
		n++
	}
	return n, nil
}

func (r *SQLiteResolver) Delete(ctx context.Context, uri string, selection string, args []string) (int, error) {
	rel, c, err := r.route(uri)
	if err != nil {
		return 0, err
	}
	clause, params := where(selection, args, c)

	blobs, err := r.rowBlobs(ctx, rel, clause, params)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM "+quote(rel.Name)+clause, params...)
	if err != nil {
		return 0, errors.Wrapf(err, "delete from %s", rel.Name)
	}
	r.removeBlobs(ctx, blobs)
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "rows affected")
}

func (r *SQLiteResolver) GetType(ctx context.Context, uri string) string {
	rel, c, err := r.route(uri)
	if err != nil {
		return ""
	}
	if c.item {
		return rel.ContentItemType()
	}
	return rel.ContentType()
}

// rowData returns the inline data of a row and the name of its blob, empty
// when the data is inline.
func (r *SQLiteResolver) rowData(ctx context.Context, rel schema.Relation, c contentURI) ([]byte, string, error) {
	var (
		data []byte
		blob sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT "+quote(schema.ColData)+", "+quote(colBlob)+" FROM "+quote(rel.Name)+" WHERE "+quote(schema.ColID)+" = ?", c.id).Scan(&data, &blob)
	if err == sql.ErrNoRows {
		return nil, "", errors.Errorf("no row %d in %s", c.id, rel.Name)
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "read data")
	}
	if !validBlobName(blob.String) {
		return data, "", nil
	}
	return data, blob.String, nil
}

func (r *SQLiteResolver) streamTarget(uri string) (schema.Relation, contentURI, error) {
	rel, c, err := r.route(uri)
	if err != nil {
		return rel, c, err
	}
	if !c.item || !rel.HasColumn(schema.ColData) {
		return rel, c, errors.Errorf("%s does not name a row with data", uri)
	}
	return rel, c, nil
}

func (r *SQLiteResolver) OpenWriteStream(ctx context.Context, uri string) (io.WriteCloser, error) {
	rel, c, err := r.streamTarget(uri)
	if err != nil {
		return nil, err
	}
	_, old, err := r.rowData(ctx, rel, c)
	if err != nil {
		return nil, err
	}
	name := newBlobName()
	w, err := r.blobs.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &rowWriter{ctx: ctx, r: r, rel: rel, c: c, uri: uri, name: name, old: old, w: w}, nil
}

func (r *SQLiteResolver) OpenReadStream(ctx context.Context, uri string) (io.ReadCloser, error) {
	rel, c, err := r.streamTarget(uri)
	if err != nil {
		return nil, err
	}
	data, blob, err := r.rowData(ctx, rel, c)
	if err != nil {
		return nil, err
	}
	if blob != "" {
		return r.blobs.Open(ctx, blob)
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

// rowWriter records the blob in the row once the blob is complete.
type rowWriter struct {
	ctx    context.Context
	r      *SQLiteResolver
	rel    schema.Relation
	c      contentURI
	uri    string
	name   string
	old    string
	w      io.WriteCloser
	closed bool
}

func (w *rowWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	return w.w.Write(p)
}

func (w *rowWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Close(); err != nil {
		return err
	}
	sets := []string{quote(schema.ColData) + " = ?", quote(colBlob) + " = ?"}
	params := []interface{}{blobRef(w.name), w.name}
	if w.rel.HasColumn(schema.ColModifiedDate) {
		sets = append(sets, quote(schema.ColModifiedDate)+" = ?")
		params = append(params, w.r.now().UnixNano()/int64(time.Millisecond))
	}
	q := "UPDATE " + quote(w.rel.Name) + " SET " + strings.Join(sets, ", ") + " WHERE " + quote(schema.ColID) + " = ?"
	if _, err := w.r.db.ExecContext(w.ctx, q, append(params, w.c.id)...); err != nil {
		return errors.Wrapf(err, "update %s", w.rel.Name)
	}
	if w.old != "" {
		w.r.removeBlobs(w.ctx, []string{w.old})
	}
	w.r.logger.WithFields(logrus.Fields{"uri": w.uri, "blob": w.name}).Debug("Stored out-of-band data")
	return nil
}
