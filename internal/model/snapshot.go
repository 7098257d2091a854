package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotSyncable marks an entity that cannot be projected into a calendar
// event. It is a normal skip condition, not a failure; callers match it with
// errors.Is.
var ErrNotSyncable = errors.New("entity not syncable")

// Snapshot is the comparable subset of entity fields used to detect
// calendar-relevant changes. It is persisted alongside the mapping and
// compared field-for-field on every sync pass. Fields that only decorate the
// event notes (spot counts) are excluded so they never trigger an update on
// their own.
type Snapshot struct {
	CourseName string
	TeeTime    time.Time
	Notes      *string // nil means no notes
	Location   *string // nil means no location
}

// Equal reports whether two snapshots are identical in every field. Times
// are compared as instants, strings exactly (no trimming or normalisation),
// and a nil pointer is never equal to a non-nil one.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.CourseName == o.CourseName &&
		s.TeeTime.Equal(o.TeeTime) &&
		eqStringPtr(s.Notes, o.Notes) &&
		eqStringPtr(s.Location, o.Location)
}

func eqStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Snapshot builds the change-detection snapshot for a posting. It always
// succeeds: missing course detail only degrades the location string to the
// plain course name.
func (p *TeeTimePosting) Snapshot() (Snapshot, error) {
	name := p.CourseName
	if p.GolfCourse != nil && p.GolfCourse.Name != "" {
		name = p.GolfCourse.Name
	}
	loc := p.locationString()
	return Snapshot{
		CourseName: name,
		TeeTime:    p.TeeTime,
		Notes:      p.Notes,
		Location:   &loc,
	}, nil
}

// locationString joins course name, street address, "city, state", and zip,
// skipping whichever parts are empty.
func (p *TeeTimePosting) locationString() string {
	gc := p.GolfCourse
	if gc == nil {
		return p.CourseName
	}

	var parts []string
	name := gc.Name
	if name == "" {
		name = p.CourseName
	}
	if name != "" {
		parts = append(parts, name)
	}
	if gc.Address != "" {
		parts = append(parts, gc.Address)
	}
	switch {
	case gc.City != "" && gc.State != "":
		parts = append(parts, gc.City+", "+gc.State)
	case gc.City != "":
		parts = append(parts, gc.City)
	case gc.State != "":
		parts = append(parts, gc.State)
	}
	if gc.Zip != "" {
		parts = append(parts, gc.Zip)
	}
	return strings.Join(parts, ", ")
}

// Snapshot builds the change-detection snapshot for a reservation. A
// reservation whose embedded posting summary is absent cannot be synced and
// returns [ErrNotSyncable]. At reservation granularity no address detail is
// available, so the location is the bare course name.
func (r *Reservation) Snapshot() (Snapshot, error) {
	if r.Posting == nil {
		return Snapshot{}, fmt.Errorf("reservation %d has no posting summary: %w", r.ID, ErrNotSyncable)
	}
	loc := r.Posting.CourseName
	return Snapshot{
		CourseName: r.Posting.CourseName,
		TeeTime:    r.Posting.TeeTime,
		Notes:      r.Posting.Notes,
		Location:   &loc,
	}, nil
}
