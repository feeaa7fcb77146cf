package schema

const (
	// DatabaseVersion is bumped whenever a relation below changes.
	DatabaseVersion = 2

	Authority = "edu.vu.isis.ammo.core.provider.distributor"
	Vendor    = "vnd.edu.vu.isis.ammo"

	PrioritySortOrder = ColExpiration + " DESC, " + ColModifiedDate + " DESC "
)

// Column names shared by the distributor relations.
const (
	ColID            = "_id"
	ColURI           = "uri"
	ColCPType        = "cp_type"
	ColMIME          = "mime"
	ColDisposition   = "disposition"
	ColSerializeType = "serialize_type"
	ColExpiration    = "expiration"
	ColUnit          = "unit"
	ColValue         = "value"
	ColNotice        = "notice"
	ColPriority      = "priority"
	ColUUID          = "uuid"
	ColCreatedDate   = "created_date"
	ColModifiedDate  = "modified_date"
	ColData          = "data"
	ColSelection     = "selection"
	ColProjection    = "projection"

	ColOperator = "operator"
	ColOrigin   = "origin"
	ColState    = "state"
	ColFirst    = "first"
	ColLatest   = "latest"
	ColCount    = "count"

	ColName     = "name"
	ColType     = "type"
	ColConnType = "conn_type"
)

// Disposition is the lifecycle state of a queued request row.
type Disposition int

const (
	DispositionPending  Disposition = 0
	DispositionQueued   Disposition = 1
	DispositionSent     Disposition = 2
	DispositionJournal  Disposition = 3
	DispositionFail     Disposition = 4
	DispositionExpired  Disposition = 5
	DispositionComplete Disposition = 6
)

func (d Disposition) String() string {
	switch d {
	case DispositionPending:
		return "PENDING"
	case DispositionQueued:
		return "QUEUED"
	case DispositionSent:
		return "SENT"
	case DispositionJournal:
		return "JOURNAL"
	case DispositionFail:
		return "FAIL"
	case DispositionExpired:
		return "EXPIRED"
	case DispositionComplete:
		return "COMPLETE"
	}
	return "UNKNOWN"
}

// SerializeType tells how the content of a postal row is obtained.
type SerializeType int

const (
	// SerializeDirect rows carry their data.
	SerializeDirect SerializeType = 1
	// SerializeIndirect rows point at a provider URI.
	SerializeIndirect SerializeType = 2
	// SerializeDeferred rows are serialized when sent.
	SerializeDeferred SerializeType = 3
)

func (s SerializeType) String() string {
	switch s {
	case SerializeDirect:
		return "DIRECT"
	case SerializeIndirect:
		return "INDIRECT"
	case SerializeDeferred:
		return "DEFERRED"
	}
	return "UNKNOWN"
}

var (
	colID          = Column{ColID, Integer}
	colURI         = Column{ColURI, Text}
	colMIME        = Column{ColMIME, Text}
	colDisposition = Column{ColDisposition, Integer}
	colExpiration  = Column{ColExpiration, Integer}
	colNotice      = Column{ColNotice, Blob}
	colPriority    = Column{ColPriority, Integer}
	colUUID        = Column{ColUUID, Text}
	colCreated     = Column{ColCreatedDate, Integer}
	colModified    = Column{ColModifiedDate, Integer}
)

var (
	Postal = Relation{
		Authority: Authority,
		Name:      "postal",
		Vendor:    Vendor,
		Columns: []Column{
			colID, colURI,
			{ColCPType, Text},
			{ColSerializeType, Integer},
			colDisposition, colExpiration,
			{ColUnit, Integer},
			{ColValue, Real},
			colNotice, colPriority, colUUID, colCreated, colModified,
			{ColData, Blob},
		},
		DefaultSortOrder:  ColModifiedDate + " DESC",
		PrioritySortOrder: PrioritySortOrder,
	}

	Retrieval = Relation{
		Authority: Authority,
		Name:      "retrieval",
		Vendor:    Vendor,
		Columns: []Column{
			colID, colURI, colMIME, colDisposition, colExpiration,
			{ColSelection, Text},
			{ColProjection, Text},
			colNotice, colPriority, colUUID, colCreated, colModified,
		},
		DefaultSortOrder:  ColModifiedDate + " DESC",
		PrioritySortOrder: PrioritySortOrder,
	}

	Publication = Relation{
		Authority: Authority,
		Name:      "publication",
		Vendor:    Vendor,
		Columns: []Column{
			colID, colURI, colMIME, colDisposition, colExpiration,
			colNotice, colPriority, colUUID, colCreated, colModified,
		},
		DefaultSortOrder:  ColModifiedDate + " DESC",
		PrioritySortOrder: PrioritySortOrder,
	}

	Subscription = Relation{
		Authority: Authority,
		Name:      "subscription",
		Vendor:    Vendor,
		Columns: []Column{
			colID, colURI, colMIME, colDisposition, colExpiration,
			{ColSelection, Text},
			colNotice, colPriority, colUUID, colCreated, colModified,
		},
		DefaultSortOrder:  ColModifiedDate + " DESC",
		PrioritySortOrder: PrioritySortOrder,
	}

	DeliveryMechanism = Relation{
		Authority: Authority,
		Name:      "delivery_mechanism",
		Vendor:    Vendor,
		Columns: []Column{
			colID,
			{ColName, Text},
			{ColConnType, Integer},
			{ColState, Integer},
			colCreated, colModified,
		},
		DefaultSortOrder: ColName + " ASC",
	}

	Presence = Relation{
		Authority: Authority,
		Name:      "presence",
		Vendor:    Vendor,
		Columns: []Column{
			colID,
			{ColOperator, Text},
			{ColOrigin, Text},
			{ColState, Integer},
			{ColFirst, Integer},
			{ColLatest, Integer},
			{ColCount, Integer},
			colExpiration,
		},
		DefaultSortOrder: ColLatest + " DESC",
	}

	Capability = Relation{
		Authority: Authority,
		Name:      "capability",
		Vendor:    Vendor,
		Columns: []Column{
			colID,
			{ColOperator, Text},
			{ColOrigin, Text},
			colMIME,
			{ColState, Integer},
			{ColFirst, Integer},
			{ColLatest, Integer},
			{ColCount, Integer},
			colExpiration,
		},
		DefaultSortOrder: ColLatest + " DESC",
	}

	Channel = Relation{
		Authority: Authority,
		Name:      "channel",
		Vendor:    Vendor,
		Columns: []Column{
			colID,
			{ColName, Text},
			{ColType, Text},
			{ColState, Integer},
			colCreated, colModified,
		},
		DefaultSortOrder: ColName + " ASC",
	}
)

// Relations lists every distributor relation.
var Relations = []Relation{
	Postal, Retrieval, Publication, Subscription,
	DeliveryMechanism, Presence, Capability, Channel,
}
