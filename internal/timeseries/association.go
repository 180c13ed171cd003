// Package timeseries keeps time-series association rows consistent when the
// component that owns them is renamed or merged during translation.
//
// Rows live in two tables: time_series_associations links a stored array to
// an owning component under a category, and component_associations records
// parent/child links between components. Transfer re-points both from an old
// owner to a new one inside a single transaction.
package timeseries

import (
	"github.com/solatis/gridxlate/internal/types"
)

// Association is one time_series_associations row.
type Association struct {
	ID               int64              `db:"id"`
	TimeSeriesUUID   types.TimeSeriesID `db:"time_series_uuid"`
	TimeSeriesType   string             `db:"time_series_type"`
	Name             string             `db:"name"`
	OwnerUUID        types.OwnerID      `db:"owner_uuid"`
	OwnerType        string             `db:"owner_type"`
	OwnerCategory    string             `db:"owner_category"`
	Features         string             `db:"features"`
	InitialTimestamp string             `db:"initial_timestamp"`
	Resolution       string             `db:"resolution"`
	Length           int64              `db:"length"`
	Units            string             `db:"units"`
	MetadataUUID     string             `db:"metadata_uuid"`
}

// ChildAssociation is one component_associations row.
type ChildAssociation struct {
	ID         int64         `db:"id"`
	ParentUUID types.OwnerID `db:"parent_uuid"`
	ParentType string        `db:"parent_type"`
	ChildUUID  types.OwnerID `db:"child_uuid"`
	ChildType  string        `db:"child_type"`
}

// TransferOutcome reports what a committed transfer changed.
type TransferOutcome struct {
	// Transferred counts association rows now owned by the new owner that
	// came from the old owner.
	Transferred int
	// Deduplicated counts association rows dropped because they collided on
	// (time_series_uuid, new owner, category).
	Deduplicated int
	// ChildrenRemapped counts component_associations rows re-pointed to the
	// new owner as child.
	ChildrenRemapped int
	// ChildrenDeduplicated counts child rows dropped as duplicate links.
	ChildrenDeduplicated int
}

func (o TransferOutcome) rows() map[string]int {
	return map[string]int{
		"transferred":           o.Transferred,
		"deduplicated":          o.Deduplicated,
		"children_remapped":     o.ChildrenRemapped,
		"children_deduplicated": o.ChildrenDeduplicated,
	}
}
