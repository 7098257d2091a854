package calendar

import (
	ekcalendar "github.com/BRO3886/go-eventkit/calendar"

	"github.com/threeputt/teesync/internal/model"
)

// createInput builds an EventKit CreateEventInput from the display fields.
// calendarName empty means the device's default calendar.
func createInput(f model.EventFields, calendarName string) ekcalendar.CreateEventInput {
	return ekcalendar.CreateEventInput{
		Title:     f.Title,
		StartDate: f.Start,
		EndDate:   f.End,
		Location:  f.Location,
		Notes:     f.Notes,
		URL:       f.URL,
		Calendar:  calendarName,
	}
}

// updateInput builds an EventKit UpdateEventInput that overwrites every
// display field. Updates are full overwrites rather than partial patches:
// the event mirrors the backend's complete state, never the user's edits.
func updateInput(f model.EventFields) ekcalendar.UpdateEventInput {
	title := f.Title
	start := f.Start
	end := f.End
	location := f.Location
	notes := f.Notes
	url := f.URL

	return ekcalendar.UpdateEventInput{
		Title:     &title,
		StartDate: &start,
		EndDate:   &end,
		Location:  &location,
		Notes:     &notes,
		URL:       &url,
	}
}
