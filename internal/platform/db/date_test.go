package db

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ehr/pts/pkg/calendar"
)

func TestDateParam(t *testing.T) {
	if p := DateParam(nil); p.Valid {
		t.Error("nil date should be NULL")
	}

	d := calendar.Date{Year: 2010, Month: time.June, Day: 15}
	p := DateParam(&d)
	if !p.Valid || p.Time.Year() != 2010 || p.Time.Month() != time.June || p.Time.Day() != 15 {
		t.Errorf("unexpected param %+v", p)
	}
}

func TestDateValue(t *testing.T) {
	if DateValue(pgtype.Date{}) != nil {
		t.Error("NULL should become nil")
	}

	got := DateValue(pgtype.Date{Time: time.Date(2000, time.February, 29, 0, 0, 0, 0, time.UTC), Valid: true})
	if got == nil || got.String() != "2000-02-29" {
		t.Errorf("expected 2000-02-29, got %v", got)
	}
}
