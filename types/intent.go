package types

import (
	"net/url"
)

// Acknowledgement intent actions.
const (
	ActionMsgSent         = "edu.vu.isis.ammo.ACTION_MESSAGE_SENT"
	ActionGWDelivered     = "edu.vu.isis.ammo.ACTION_MESSAGE_GATEWAY_DELIVERED"
	ActionHHDelivered     = "edu.vu.isis.ammo.ACTION_MESSAGE_DEVICE_DELIVERED"
	ActionPluginDelivered = "edu.vu.isis.ammo.ACTION_MESSAGE_PLUGIN_DELIVERED"
)

// Acknowledgement intent extras.
const (
	ExtraTopic    = "topic"
	ExtraSubtopic = "subtopic"
	ExtraUID      = "uid"
	ExtraChannel  = "channel"
	ExtraStatus   = "status"
	ExtraDevice   = "device"
	ExtraOperator = "operator"
)

// Intent is a notification addressed by action, carrying a data URI and
// string extras.
type Intent struct {
	Action string
	Data   string
	Extras map[string]string
}

// IntentBuilder assembles the acknowledgement intent sent when a notice
// threshold is crossed.
type IntentBuilder struct {
	notice   *Notice
	topic    string
	subtopic *string
	uid      *string
	channel  *string
	status   *string
	device   *string
	operator *string
}

func NewIntentBuilder(n *Notice) *IntentBuilder {
	return &IntentBuilder{notice: n}
}

func (b *IntentBuilder) Topic(t *Topic) *IntentBuilder {
	b.topic = t.AsString()
	return b
}

func (b *IntentBuilder) TopicString(s string) *IntentBuilder {
	b.topic = s
	return b
}

func (b *IntentBuilder) Subtopic(t *Topic) *IntentBuilder {
	s := t.AsString()
	b.subtopic = &s
	return b
}

func (b *IntentBuilder) SubtopicString(s string) *IntentBuilder {
	b.subtopic = &s
	return b
}

func (b *IntentBuilder) UID(s string) *IntentBuilder {
	b.uid = &s
	return b
}

func (b *IntentBuilder) Channel(s string) *IntentBuilder {
	b.channel = &s
	return b
}

func (b *IntentBuilder) Status(s string) *IntentBuilder {
	b.status = &s
	return b
}

func (b *IntentBuilder) Device(s string) *IntentBuilder {
	b.device = &s
	return b
}

func (b *IntentBuilder) Operator(s string) *IntentBuilder {
	b.operator = &s
	return b
}

// Build returns the intent for a threshold. ok is false for an unknown
// threshold.
func (b *IntentBuilder) Build(t Threshold) (intent *Intent, ok bool) {
	switch t {
	case ThresholdSent:
		return b.build(ActionMsgSent), true
	case ThresholdGateDelivery:
		return b.build(ActionGWDelivered), true
	case ThresholdPluginDelivery:
		return b.build(ActionPluginDelivered), true
	case ThresholdDeviceDelivery:
		return b.build(ActionHHDelivered), true
	}
	return nil, false
}

func (b *IntentBuilder) build(action string) *Intent {
	u := url.URL{Scheme: "ammo", Host: b.topic}
	if b.subtopic != nil {
		u.Path = "/" + *b.subtopic
	}
	intent := &Intent{
		Action: action,
		Data:   u.String(),
		Extras: map[string]string{ExtraTopic: b.topic},
	}
	for key, val := range map[string]*string{
		ExtraSubtopic: b.subtopic,
		ExtraUID:      b.uid,
		ExtraChannel:  b.channel,
		ExtraStatus:   b.status,
		ExtraDevice:   b.device,
		ExtraOperator: b.operator,
	} {
		if val != nil {
			intent.Extras[key] = *val
		}
	}
	return intent
}
