package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelation(t *testing.T) {
	assert.Equal(t, "content://edu.vu.isis.ammo.core.provider.distributor/postal", Postal.ContentURI())
	assert.Equal(t, "content://edu.vu.isis.ammo.core.provider.distributor/postal/12", Postal.ItemURI(12))
	assert.Equal(t, "vnd.android.cursor.dir/vnd.edu.vu.isis.ammo.subscription", Subscription.ContentType())
	assert.Equal(t, "vnd.android.cursor.item/vnd.edu.vu.isis.ammo.subscription", Subscription.ContentItemType())
	assert.Equal(t, "content://edu.vu.isis.ammo.core.provider.preferenceprovider/preference", Preference.ContentURI())

	assert.True(t, Postal.HasColumn("DATA"))
	assert.False(t, Publication.HasColumn(ColData))
	assert.Equal(t, ColID, Retrieval.ColumnNames()[0])
}

func TestPrioritySortOrder(t *testing.T) {
	for _, r := range []Relation{Postal, Retrieval, Publication, Subscription} {
		assert.Equal(t, "expiration DESC, modified_date DESC ", r.PrioritySortOrder, r.Name)
	}
	assert.Equal(t, 2, DatabaseVersion)
	assert.Len(t, Relations, 8)
}

func TestEnums(t *testing.T) {
	assert.Equal(t, "PENDING", DispositionPending.String())
	assert.Equal(t, "COMPLETE", DispositionComplete.String())
	assert.Equal(t, "UNKNOWN", Disposition(-1).String())
	assert.Equal(t, "INDIRECT", SerializeIndirect.String())
	assert.Equal(t, "down", LinkDown.String())
	assert.Equal(t, "unknown", LinkState(0).String())
}

func TestStateText(t *testing.T) {
	assert.Equal(t, "Disconnected", GatewayDisconnected.String())
	assert.Equal(t, "Connected", GatewayConnected.String())
	assert.Equal(t, "unknown", GatewayState(5).String())
	assert.Equal(t, "Obtaining IP Address", NetworkObtainingIPAddr.String())
	assert.Equal(t, "Connected", NetLinkState(7).String())
	assert.Equal(t, "unknown", NetworkInterfaceState(-1).String())
}

func TestParsePrefType(t *testing.T) {
	tests := []struct {
		in   string
		want PrefType
		ok   bool
	}{
		{"getString", PrefString, true},
		{"BOOLEAN", PrefBoolean, true},
		{"long", PrefLong, true},
		{"int", PrefInt, true},
		{"getFloat", PrefFloat, true},
		{"double", "", false},
	}
	for _, tc := range tests {
		got, ok := ParsePrefType(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestIntents(t *testing.T) {
	assert.True(t, IsLinkChange(LegacyActionWifiLinkChange))
	assert.True(t, IsLinkChange(ActionSerialLinkChange))
	assert.False(t, IsLinkChange(ActionGatewayStatusChange))
	assert.Equal(t, ActionEtherLinkChange, CanonicalAction(LegacyActionEtherLinkChange))
	assert.Equal(t, ActionNetlinkStatusChange, CanonicalAction(ActionNetlinkStatusChange))
}

func TestNetPrefDefaults(t *testing.T) {
	assert.Equal(t, "33289", NetPrefDefaults[PrefGatewayPort])
	assert.Equal(t, DefaultMulticastHost, NetPrefDefaults[PrefMulticastHost])
	assert.Equal(t, "/dev/ttyUSB0", NetPrefDefaults[PrefSerialDevice])
	assert.Equal(t, "vnd.android.cursor.item/usernumber", MIMEUserIDNum)
}
