package schema

// Launch and account names used by contact tooling.
const (
	ExtraRowURI = "row_uri"

	IndividualContactLaunch = "edu.vu.isis.ammo.launch.individualcontactactivity.LAUNCH"

	AccountType        = "edu.vu.isis.ammo"
	DefaultAccountName = "ammo"
	AuthTokenType      = "edu.vu.isis.ammo"

	LDAPMIME = "ammo/edu.vu.isis.ammo.launcher.contact_pull"

	MIMEInsignia  = CursorItemBaseType + "/insignia"
	MIMECallsign  = CursorItemBaseType + "/callsign"
	MIMEUserID    = CursorItemBaseType + "/userid"
	MIMEUserIDNum = CursorItemBaseType + "/usernumber"
	MIMERank      = CursorItemBaseType + "/rank"
	MIMEUnitName  = CursorItemBaseType + "/unitname"
)

// Legacy variants published under the transapp namespace.
const (
	LegacyIndividualContactLaunch = "mil.darpa.transapp.launch.individualcontactactivity.LAUNCH"
	LegacyAccountType             = "mil.darpa.transapp"
	LegacyLDAPMIME                = "ammo/mil.darpa.transapp.launcher.contact_pull"
)
