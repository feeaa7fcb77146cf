// Package nevada describes the relations of the Nevada situational
// awareness provider so that its rows can be posted and subscribed to.
package nevada

import "github.com/JiscSD/ammolib/schema"

const (
	Authority    = "com.aterrasys.nevada.provider.nevadaprovider"
	DatabaseName = "nevada.db"
	Vendor       = "vnd.com.aterrasys.nevada"

	// ColDisposition tracks the exchange state of a row.
	ColDisposition = "_disp"
)

// Disposition is stored in ColDisposition.
type Disposition int

const (
	DispositionStart    Disposition = 0
	DispositionSend     Disposition = 1
	DispositionRecv     Disposition = 2
	DispositionComplete Disposition = 3
)

func (d Disposition) String() string {
	switch d {
	case DispositionStart:
		return "START"
	case DispositionSend:
		return "SEND"
	case DispositionRecv:
		return "RECV"
	case DispositionComplete:
		return "COMPLETE"
	}
	return "UNKNOWN"
}

// Table is a Nevada relation together with the columns exposed to cursors.
type Table struct {
	schema.Relation
	CursorColumns []string
}

// ContentTopic is the MIME type used when publishing rows of the table.
func (t Table) ContentTopic() string {
	return "application/" + t.Vendor + "." + t.Name
}

func newTable(name string, cols ...schema.Column) Table {
	all := make([]schema.Column, 0, len(cols)+2)
	all = append(all, schema.Column{Name: schema.ColID, Affinity: schema.Integer})
	all = append(all, cols...)
	all = append(all, schema.Column{Name: ColDisposition, Affinity: schema.Integer})

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return Table{
		Relation: schema.Relation{
			Authority: Authority,
			Name:      name,
			Vendor:    Vendor,
			Columns:   all,
		},
		CursorColumns: names,
	}
}

func textCol(name string) schema.Column { return schema.Column{Name: name, Affinity: schema.Text} }
func intCol(name string) schema.Column { return schema.Column{Name: name, Affinity: schema.Integer} }
func realCol(name string) schema.Column { return schema.Column{Name: name, Affinity: schema.Real} }

var (
	UserPeople = newTable("userpeople",
		intCol("userid"),
		textCol("name"),
		textCol("sms_email_gateway"),
		textCol("phone"),
		textCol("username"),
		textCol("email"),
	)

	Channels = newTable("channels",
		intCol("id"),
		intCol("active"),
		textCol("name"),
		textCol("descripton"),
		textCol("type"),
		intCol("creatorid"),
		intCol("canvasid"),
	)

	Unit = newTable("unit",
		intCol("id"),
		textCol("unitname"),
	)

	UnitPerson = newTable("unitperson",
		intCol("unitid"),
		intCol("userid"),
	)

	LocationTracking = newTable("locationtracking",
		intCol("userid"),
		realCol("lat"),
		realCol("lon"),
		intCol("trackedtime"),
	)

	MapAnnotation = newTable("mapannotation",
		intCol("id"),
		textCol("type"),
		textCol("text"),
		intCol("zoom"),
		realCol("lat"),
		realCol("lon"),
		textCol("mgrs"),
		textCol("imageuri"),
	)
)

// Tables lists every Nevada relation.
var Tables = []Table{UserPeople, Channels, Unit, UnitPerson, LocationTracking, MapAnnotation}
