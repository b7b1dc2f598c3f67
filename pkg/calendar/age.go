package calendar

import "fmt"

// Age returns the number of whole years elapsed from birth to asOf.
//
// The year difference is decremented when asOf's (month, day) falls before
// birth's, so a 29 February birthday completes a year on 1 March in common
// years. Fails with ErrInvalidDate when birth is nil, is not a real calendar
// date, or lies after asOf.
func Age(birth *Date, asOf Date) (int, error) {
	if birth == nil {
		return 0, fmt.Errorf("%w: birth date is absent", ErrInvalidDate)
	}
	if !birth.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDate, birth)
	}
	if !asOf.Valid() {
		return 0, fmt.Errorf("%w: reference date %s", ErrInvalidDate, asOf)
	}
	if birth.After(asOf) {
		return 0, fmt.Errorf("%w: birth date %s is after %s", ErrInvalidDate, birth, asOf)
	}

	years := asOf.Year - birth.Year
	if asOf.Month < birth.Month || (asOf.Month == birth.Month && asOf.Day < birth.Day) {
		years--
	}
	return years, nil
}

// AgePtr is Age for optional birth dates: nil in, nil out.
func AgePtr(birth *Date, asOf Date) (*int, error) {
	if birth == nil {
		return nil, nil
	}
	years, err := Age(birth, asOf)
	if err != nil {
		return nil, err
	}
	return &years, nil
}
