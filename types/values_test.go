package types

import (
	"encoding/json"
	"testing"

	"github.com/JiscSD/ammolib/parcel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValues_Getters(t *testing.T) {
	vs := NewValues().
		PutString("name", "fred").
		PutString("count", "12").
		PutInt("age", 33).
		PutLong("big", 1<<40).
		PutDouble("lat", 36.1).
		PutBool("ok", true).
		PutBytes("blob", []byte("xyz"))

	s, ok := vs.AsString("age")
	assert.True(t, ok)
	assert.Equal(t, "33", s)

	i, ok := vs.AsInt("count")
	assert.True(t, ok)
	assert.Equal(t, int32(12), i)

	_, ok = vs.AsInt("name")
	assert.False(t, ok)

	l, ok := vs.AsLong("big")
	assert.True(t, ok)
	assert.Equal(t, int64(1<<40), l)

	f, ok := vs.AsFloat("lat")
	assert.True(t, ok)
	assert.Equal(t, 36.1, f)

	b, ok := vs.AsBool("ok")
	assert.True(t, ok)
	assert.True(t, b)

	blob, ok := vs.AsBytes("blob")
	assert.True(t, ok)
	assert.Equal(t, []byte("xyz"), blob)

	_, ok = vs.AsString("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"age", "big", "blob", "count", "lat", "name", "ok"}, vs.Keys())
}

func TestValues_Put(t *testing.T) {
	vs := NewValues()
	require.NoError(t, vs.Put("a", int64(4)))
	require.Error(t, vs.Put("b", struct{}{}))

	v, ok := vs.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(4), v)
	assert.False(t, vs.Has("b"))
}

func TestValues_JSON(t *testing.T) {
	var vs Values
	err := json.Unmarshal([]byte(`{"name":"fred","age":33,"big":8589934592,"lat":1.5,"ok":false}`), &vs)
	require.NoError(t, err)

	assert.Equal(t, KindString, vs["name"].Kind())
	assert.Equal(t, KindInt, vs["age"].Kind())
	assert.Equal(t, KindLong, vs["big"].Kind())
	assert.Equal(t, KindDouble, vs["lat"].Kind())
	assert.Equal(t, KindBool, vs["ok"].Kind())

	err = json.Unmarshal([]byte(`{"nested":{"a":1}}`), &vs)
	assert.Error(t, err)
}

func TestValues_ParcelRoundTrip(t *testing.T) {
	vs := NewValues().
		PutString("name", "fred").
		PutInt("age", 33).
		PutFloat("f", 0.5).
		PutBytes("blob", []byte{9})

	w := parcel.NewWriter()
	vs.MarshalParcel(w)
	r := parcel.NewReader(w.Bytes())
	out := ReadValuesBody(r)

	require.NoError(t, r.Err())
	assert.Equal(t, vs, out)
}

func TestValues_ParcelCorruptCount(t *testing.T) {
	w := parcel.NewWriter()
	w.WriteInt(1 << 30)

	assert.Nil(t, ReadValuesBody(parcel.NewReader(w.Bytes())))
}

func TestValidateValues(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"age": {"type": "integer", "minimum": 0}
		},
		"required": ["name"]
	}`)

	err := ValidateValues(schema, NewValues().PutString("name", "fred").PutInt("age", 3))
	assert.NoError(t, err)

	err = ValidateValues(schema, NewValues().PutInt("age", -1))
	require.Error(t, err)
	verr, ok := err.(ValidationError)
	require.True(t, ok)
	assert.Len(t, verr.Errors, 2)

	err = ValidateJSON([]byte(`{`), []byte(`{}`))
	assert.Error(t, err)
}
