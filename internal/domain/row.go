package domain

import (
	"fmt"
	"time"
)

// ObservationTimeLayout is the upstream timestamp format, with a literal Z
// marking UTC.
const ObservationTimeLayout = "2006-01-02T15:04:05Z"

// StoredRow is an Observation ready for insertion, with the epoch seconds
// derived from its timestamp.
type StoredRow struct {
	Observation
	Epoch int64
}

// Args returns the insert arguments in column order.
func (r StoredRow) Args() []any {
	return []any{
		r.Time, r.Lat, r.Lon,
		r.PeakCurrent, r.Multiplicity, r.CloudIndicator, r.EllipseMajor,
		r.Epoch,
	}
}

// NewStoredRows converts observations into rows. A single unparsable
// timestamp fails the whole batch.
func NewStoredRows(records []Observation) ([]StoredRow, error) {
	rows := make([]StoredRow, 0, len(records))
	for i, rec := range records {
		t, err := time.Parse(ObservationTimeLayout, rec.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d time %q: %w", ErrPersistenceFailure, i, rec.Time, err)
		}
		rows = append(rows, StoredRow{Observation: rec, Epoch: t.Unix()})
	}
	return rows, nil
}
