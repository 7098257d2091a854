package sync

import (
	"strings"
	"time"

	"github.com/threeputt/teesync/internal/model"
)

const (
	titlePrefix = "Golf at "
	notesFooter = "Via Three Putt Golf App"
)

// buildEventFields projects an entity snapshot into the calendar event's
// display fields. The notes block is:
//
//	Notes: <user notes>        (only when the entity has notes)
//	<blank line>
//	<detail line>              ("Available Spots: N" or "Spots Reserved: N")
//	Via Three Putt Golf App
func buildEventFields(e Entity, snap model.Snapshot, duration time.Duration) model.EventFields {
	var lines []string
	if snap.Notes != nil {
		lines = append(lines, "Notes: "+*snap.Notes, "")
	}
	lines = append(lines, e.DetailLine(), notesFooter)

	f := model.EventFields{
		Title: titlePrefix + snap.CourseName,
		Start: snap.TeeTime,
		End:   snap.TeeTime.Add(duration),
		Notes: strings.Join(lines, "\n"),
	}
	if snap.Location != nil {
		f.Location = *snap.Location
	}
	return f
}
