package db

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ehr/pts/pkg/calendar"
)

// DateParam converts an optional calendar date into a DATE parameter.
func DateParam(d *calendar.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

// DateValue converts a scanned DATE column back; NULL becomes nil.
func DateValue(d pgtype.Date) *calendar.Date {
	if !d.Valid {
		return nil
	}
	v := calendar.DateOf(d.Time)
	return &v
}
