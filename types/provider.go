package types

import (
	"net/url"

	"github.com/JiscSD/ammolib/parcel"
)

// Provider identifies a structured-storage location. URI is the only
// variant.
type Provider struct {
	uri string
}

// providerURI is the discriminant of the URI variant.
const providerURI int32 = 0

func NewProvider(uri string) *Provider {
	return &Provider{uri: uri}
}

func (p *Provider) AsString() string {
	return p.uri
}

func (p *Provider) AsBytes() []byte {
	return []byte(p.uri)
}

// AsURI parses the provider location.
func (p *Provider) AsURI() (*url.URL, error) {
	return url.Parse(p.uri)
}

func (p *Provider) String() string {
	return p.uri
}

func (p *Provider) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(providerURI)
	w.WriteString(p.uri)
}

// WriteProvider writes p preceded by its null flag.
func WriteProvider(w *parcel.Writer, p *Provider) {
	parcel.Write(w, p, p == nil)
}

// ReadProvider reads a provider written by WriteProvider. An unknown
// discriminant yields nil.
func ReadProvider(r *parcel.Reader) *Provider {
	if parcel.IsNull(r) {
		return nil
	}
	typ := r.ReadInt()
	if typ != providerURI {
		logger.WithField("type", typ).Warn("Unknown provider type")
		return nil
	}
	return NewProvider(r.ReadString())
}
