// Package model defines shared types used across the sync manager, the
// calendar adapter, and the backend client.
package model

import (
	"fmt"
	"time"
)

// Kind discriminates the two syncable entity types.
type Kind string

const (
	// KindPosting marks a tee-time posting.
	KindPosting Kind = "posting"
	// KindReservation marks a reservation on a posting.
	KindReservation Kind = "reservation"
)

// Ref identifies a syncable entity. Two refs are equal iff kind and id are
// equal; it is used as the lookup key in the mapping store.
type Ref struct {
	Kind Kind
	ID   int64
}

// String returns the "kind/id" form used in logs.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// GolfCourse is the optional course detail attached to a posting, used to
// build a richer calendar location string.
type GolfCourse struct {
	Name    string
	Address string
	City    string
	State   string
	Zip     string
}

// TeeTimePosting is a user-created offer of available tee-time spots at a
// course, as listed by the backend.
type TeeTimePosting struct {
	ID             int64
	UserID         int64
	CourseName     string
	TeeTime        time.Time
	AvailableSpots int
	TotalSpots     int

	// Notes is the poster's free-form note. Nil means no note was set,
	// which is distinct from an empty one.
	Notes *string

	// GolfCourse carries address detail when the backend has the course on
	// record. Nil when the posting only names the course.
	GolfCourse *GolfCourse
}

// Ref returns the posting's entity reference.
func (p *TeeTimePosting) Ref() Ref {
	return Ref{Kind: KindPosting, ID: p.ID}
}

// DetailLine returns the spots line shown in the calendar event notes.
func (p *TeeTimePosting) DetailLine() string {
	return fmt.Sprintf("Available Spots: %d", p.AvailableSpots)
}

// PostingSummary is the read-only posting excerpt embedded in a reservation
// listing. The backend omits it when the posting is no longer visible to the
// reserving user.
type PostingSummary struct {
	CourseName string
	TeeTime    time.Time
	Notes      *string
}

// Reservation is a user's claim on spots within a posting.
type Reservation struct {
	ID            int64
	UserID        int64
	SpotsReserved int

	// Posting is the embedded summary of the reserved posting. Nil means
	// the reservation cannot be projected into a calendar event.
	Posting *PostingSummary
}

// Ref returns the reservation's entity reference.
func (r *Reservation) Ref() Ref {
	return Ref{Kind: KindReservation, ID: r.ID}
}

// DetailLine returns the spots line shown in the calendar event notes.
func (r *Reservation) DetailLine() string {
	return fmt.Sprintf("Spots Reserved: %d", r.SpotsReserved)
}
