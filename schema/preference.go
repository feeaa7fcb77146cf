package schema

const (
	PreferenceAuthority = "edu.vu.isis.ammo.core.provider.preferenceprovider"

	// PreferenceChangedAction is broadcast after a preference is written.
	PreferenceChangedAction = "edu.vu.isis.ammo.preferencechanged"

	ExtraPrefChangedKey   = "ammo_intent_key_pref_changed_key"
	ExtraPrefChangedValue = "ammo_intent_key_pref_changed_value"

	ColPrefKey   = "key"
	ColPrefValue = "value"
	ColPrefType  = "type"
)

// PrefType names the typed accessor used as the selection of a preference
// query or update.
type PrefType string

const (
	PrefString  PrefType = "getString"
	PrefBoolean PrefType = "getBoolean"
	PrefFloat   PrefType = "getFloat"
	PrefInt     PrefType = "getInt"
	PrefLong    PrefType = "getLong"
)

// ParsePrefType accepts the accessor name as well as the bare type name.
func ParsePrefType(s string) (PrefType, bool) {
	switch s {
	case string(PrefString), "STRING", "string":
		return PrefString, true
	case string(PrefBoolean), "BOOLEAN", "boolean", "bool":
		return PrefBoolean, true
	case string(PrefFloat), "FLOAT", "float":
		return PrefFloat, true
	case string(PrefInt), "INT", "int":
		return PrefInt, true
	case string(PrefLong), "LONG", "long":
		return PrefLong, true
	}
	return "", false
}

// Preference is the key/value relation of the preference provider.
var Preference = Relation{
	Authority: PreferenceAuthority,
	Name:      "preference",
	Vendor:    Vendor,
	Columns: []Column{
		{ColPrefKey, Text},
		{ColPrefValue, Text},
		{ColPrefType, Text},
		colModified,
	},
	DefaultSortOrder: ColPrefKey + " ASC",
}
