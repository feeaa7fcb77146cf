package schema

import "strings"

// Link and status change actions.
const (
	ActionEtherLinkChange        = "edu.vu.isis.ACTION_ETHER_LINK_CHANGE"
	ActionWifiLinkChange         = "edu.vu.isis.ACTION_WIFI_LINK_CHANGE"
	ActionGatewayStatusChange    = "edu.vu.isis.ACTION_GATEWAY_STATUS_CHANGE"
	ActionConnectionStatusChange = "edu.vu.isis.ACTION_CONNECTION_STATUS_CHANGE"
	ActionNetlinkStatusChange    = "edu.vu.isis.ACTION_NETLINK_STATUS_CHANGE"
	ActionSerialLinkChange       = "edu.vu.isis.ACTION_SERIAL_LINK_CHANGE"

	// Actions broadcast by older link monitors.
	LegacyActionEtherLinkChange = "mil.darpa.transapp.ACTION_ETHER_LINK_CHANGE"
	LegacyActionWifiLinkChange  = "mil.darpa.transapp.ACTION_WIFI_LINK_CHANGE"

	ExtraChannel       = "channel"
	ExtraConnectStatus = "connect-status"
)

// LinkState is carried in the extras of a link change.
type LinkState int

const (
	LinkUp   LinkState = 1
	LinkDown LinkState = 2
)

func (s LinkState) String() string {
	switch s {
	case LinkUp:
		return "up"
	case LinkDown:
		return "down"
	}
	return "unknown"
}

// GatewayState is the state of the gateway connection.
type GatewayState int

const (
	GatewayDisconnected GatewayState = iota
	GatewayIdle
	GatewayAuthenticating
	GatewayFailed
	GatewayConnected
)

var gatewayStateText = [...]string{
	GatewayDisconnected:   "Disconnected",
	GatewayIdle:           "Idle",
	GatewayAuthenticating: "Authenticating",
	GatewayFailed:         "Failed",
	GatewayConnected:      "Connected",
}

func (s GatewayState) String() string {
	if s < 0 || int(s) >= len(gatewayStateText) {
		return "unknown"
	}
	return gatewayStateText[s]
}

// NetworkInterfaceState is the state of a network link.
type NetworkInterfaceState int

// NetLinkState is the name used by link policies.
type NetLinkState = NetworkInterfaceState

const (
	NetworkDisconnected NetworkInterfaceState = iota
	NetworkIdle
	NetworkScanning
	NetworkConnecting
	NetworkAuthenticating
	NetworkObtainingIPAddr
	NetworkFailed
	NetworkConnected
)

var networkStateText = [...]string{
	NetworkDisconnected:    "Disconnected",
	NetworkIdle:            "Idle",
	NetworkScanning:        "Scanning",
	NetworkConnecting:      "Connecting",
	NetworkAuthenticating:  "Authenticating",
	NetworkObtainingIPAddr: "Obtaining IP Address",
	NetworkFailed:          "Failed",
	NetworkConnected:       "Connected",
}

func (s NetworkInterfaceState) String() string {
	if s < 0 || int(s) >= len(networkStateText) {
		return "unknown"
	}
	return networkStateText[s]
}

// IsLinkChange reports whether action is one of the link change actions,
// current or legacy.
func IsLinkChange(action string) bool {
	switch action {
	case ActionEtherLinkChange, ActionWifiLinkChange, ActionSerialLinkChange,
		LegacyActionEtherLinkChange, LegacyActionWifiLinkChange:
		return true
	}
	return false
}

// CanonicalAction maps a legacy action onto its current name.
func CanonicalAction(action string) string {
	const legacy, current = "mil.darpa.transapp.", "edu.vu.isis."
	if strings.HasPrefix(action, legacy) {
		return current + strings.TrimPrefix(action, legacy)
	}
	return action
}
