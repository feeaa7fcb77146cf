package schema

// Core preference keys.
const (
	PrefOperatorID = "CORE_OPERATOR_ID"
	PrefAmmoLogin  = "AMMO_LOGIN"
	PrefConnected  = "AMMO_CONNECTED"

	// PrefUpdateAction is broadcast when the core preferences are reloaded.
	PrefUpdateAction = "edu.vu.isis.ammo.core.PREF_UPDATE"
)

// Network preference keys and their defaults.
const (
	PrefDeviceID        = "transapps_settings_device_uuid"
	PrefJournalDisabled = "transapps_settings_network_jounal_disabled"

	PrefGatewayDisabled    = "transapps_settings_network_gateway_disabled"
	PrefGatewayHost        = "transapps_settings_network_gateway_host"
	PrefGatewayPort        = "CORE_IP_PORT"
	PrefGatewayFlatLine    = "CORE_FLAT_LINE_TIME"
	PrefGatewayTimeout     = "CORE_SOCKET_TIMEOUT"
	DefaultGatewayHost     = "129.59.2.25"
	DefaultGatewayPort     = 33289
	DefaultGatewayFlatLine = 20
	DefaultGatewayTimeout  = 3
	DefaultGatewayEnabled  = true

	PrefServerEnabled    = "transaps.settings.server.disabled"
	PrefServerPort       = "SERVER_IP_PORT"
	DefaultServerEnabled = true
	DefaultServerPort    = 51423

	PrefMulticastDisabled      = "transapps_settings_network_multicast_disabled"
	PrefMulticastHost          = "MULTICAST_IP_ADDRESS"
	PrefMulticastPort          = "MULTICAST_PORT"
	PrefMulticastConnTimeout   = "MULTICAST_NET_CONN_TIMEOUT"
	PrefMulticastIdleTimeout   = "MULTICAST_CONN_IDLE_TIMEOUT"
	PrefMulticastTTL           = "MULTICAST_TTL"
	DefaultMulticastHost       = "228.10.10.90"
	DefaultMulticastPort       = 9982
	DefaultMulticastConn       = 20
	DefaultMulticastIdle       = 3
	DefaultMulticastTTL        = 10

	PrefReliableMulticastDisabled    = "transapps_settings_network_reliable_multicast_disabled"
	PrefReliableMulticastHost        = "RELIABLE_MULTICAST_IP_ADDRESS"
	PrefReliableMulticastPort        = "RELIABLE_MULTICAST_PORT"
	PrefReliableMulticastMediaPort   = "RELIABLE_MULTICAST_MEDIA_PORT"
	PrefReliableMulticastConnTimeout = "RELIABLE_MULTICAST_NET_CONN_TIMEOUT"
	PrefReliableMulticastIdleTimeout = "RELIABLE_MULTICAST_CONN_IDLE_TIMEOUT"
	PrefReliableMulticastTTL         = "RELIABLE_MULTICAST_TTL"
	DefaultReliableMulticastHost     = "228.8.8.8"
	DefaultReliableMulticastPort     = 45588
	DefaultReliableMulticastMedia    = 45590
	DefaultReliableMulticastConn     = 20
	DefaultReliableMulticastIdle     = 3
	DefaultReliableMulticastTTL      = 1

	PrefSerialDisabled         = "transapps_settings_network_serial_disabled"
	PrefSerialDevice           = "SERIAL_DEVICE"
	PrefSerialBaudRate         = "SERIAL_BAUD_RATE"
	PrefSerialSlotNumber       = "SERIAL_SLOT_NUMBER"
	PrefSerialRadiosInGroup    = "SERIAL_RADIOS_IN_GROUP"
	PrefSerialSlotDuration     = "SERIAL_SLOT_DURATION"
	PrefSerialTransmitDuration = "SERIAL_TRANSMIT_DURATION"
	PrefSerialSendEnabled      = "SERIAL_SEND_ENABLED"
	PrefSerialReceiveEnabled   = "SERIAL_RECEIVE_ENABLED"
	DefaultSerialDevice        = "/dev/ttyUSB0"
	DefaultSerialBaudRate      = 9600
	DefaultSerialSlotNumber    = 8
	DefaultSerialRadiosInGroup = 16
	DefaultSerialSlotDuration  = 750
	DefaultSerialTransmit      = 500
	DefaultSerialSendEnabled   = true
	DefaultSerialReceive       = true
)

// NetPrefDefaults maps each network preference with a default to the
// textual form of that default, as stored by the preference relation.
var NetPrefDefaults = map[string]string{
	PrefGatewayHost:                  DefaultGatewayHost,
	PrefGatewayPort:                  "33289",
	PrefGatewayFlatLine:              "20",
	PrefGatewayTimeout:               "3",
	PrefServerEnabled:                "true",
	PrefServerPort:                   "51423",
	PrefMulticastHost:                DefaultMulticastHost,
	PrefMulticastPort:                "9982",
	PrefMulticastConnTimeout:         "20",
	PrefMulticastIdleTimeout:         "3",
	PrefMulticastTTL:                 "10",
	PrefReliableMulticastHost:        DefaultReliableMulticastHost,
	PrefReliableMulticastPort:        "45588",
	PrefReliableMulticastMediaPort:   "45590",
	PrefReliableMulticastConnTimeout: "20",
	PrefReliableMulticastIdleTimeout: "3",
	PrefReliableMulticastTTL:         "1",
	PrefSerialDevice:                 DefaultSerialDevice,
	PrefSerialBaudRate:               "9600",
	PrefSerialSlotNumber:             "8",
	PrefSerialRadiosInGroup:          "16",
	PrefSerialSlotDuration:           "750",
	PrefSerialTransmitDuration:       "500",
	PrefSerialSendEnabled:            "true",
	PrefSerialReceiveEnabled:         "true",
}
