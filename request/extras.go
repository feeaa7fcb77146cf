package request

import (
	"net/url"
	"strings"

	"github.com/JiscSD/ammolib/types"

	"github.com/gorilla/schema"
	"github.com/pkg/errors"
)

// Extras are the request fields in their textual form, as received from the
// command line or from the attributes of a command message.
type Extras struct {
	UID        string   `schema:"uid"`
	Provider   string   `schema:"provider"`
	Payload    string   `schema:"payload"`
	Moment     string   `schema:"moment"`
	Topic      string   `schema:"topic"`
	Subtopic   string   `schema:"subtopic"`
	Downsample string   `schema:"downsample"`
	Durability string   `schema:"durability"`
	Priority   string   `schema:"priority"`
	Order      string   `schema:"order"`
	Start      string   `schema:"start"`
	Expire     string   `schema:"expire"`
	Limit      string   `schema:"limit"`
	Scope      string   `schema:"scope"`
	Throttle   string   `schema:"throttle"`
	Worth      string   `schema:"worth"`
	Select     string   `schema:"select"`
	Project    string   `schema:"project"`
	Notice     []string `schema:"notice"`
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(false)
	return d
}()

// DecodeExtras decodes the textual request fields. Unknown keys are rejected.
func DecodeExtras(vals url.Values) (*Extras, error) {
	e := &Extras{}
	if err := decoder.Decode(e, vals); err != nil {
		return nil, errors.Wrap(err, "error decoding request fields")
	}
	return e, nil
}

// ParsePairs turns "key=value" arguments into url.Values.
func ParsePairs(args []string) (url.Values, error) {
	vals := url.Values{}
	for _, arg := range args {
		i := strings.IndexByte(arg, '=')
		if i < 1 {
			return nil, errors.Errorf("argument %q is not of the form key=value", arg)
		}
		vals.Add(arg[:i], arg[i+1:])
	}
	return vals, nil
}

// Extras applies the textual fields through the tolerant setters: empty
// fields are left untouched. A notice entry has the form
// "<threshold>:<via>[+<via>...]", e.g. "device:broadcast+sticky".
func (b *Builder) Extras(e *Extras) *Builder {
	if e == nil {
		return b
	}
	if e.UID != "" {
		b.UID(e.UID)
	}
	b.Provider(e.Provider)
	b.PayloadString(e.Payload)
	b.MomentString(e.Moment)
	if e.Topic != "" {
		b.Topic(e.Topic)
	}
	if e.Subtopic != "" {
		b.Subtopic(e.Subtopic)
	}
	b.DownsampleString(e.Downsample)
	b.DurabilityString(e.Durability)
	b.PriorityString(e.Priority)
	b.OrderString(e.Order)
	b.StartString(e.Start)
	b.ExpireString(e.Expire)
	b.LimitString(e.Limit)
	b.ScopeString(e.Scope)
	b.ThrottleString(e.Throttle)
	b.WorthString(e.Worth)
	b.SelectString(e.Select)
	b.ProjectString(e.Project)
	for _, item := range e.Notice {
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 {
			b.fail("notice", item, errors.New("expected threshold:via"))
			continue
		}
		t, err := types.ParseThreshold(parts[0])
		if err != nil {
			b.fail("notice", item, err)
			continue
		}
		via, err := types.ParseVia(parts[1])
		if err != nil {
			b.fail("notice", item, err)
			continue
		}
		b.Notice(t, via)
	}
	return b
}
