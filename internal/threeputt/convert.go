package threeputt

import (
	"time"

	"github.com/threeputt/teesync/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// golfCourseDTO is the backend's structured course record. Omitted entirely
// when the posting carries only a free-text course name.
type golfCourseDTO struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

type postingDTO struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	CourseName     string         `json:"course_name"`
	TeeTime        time.Time      `json:"tee_time"`
	AvailableSpots int            `json:"available_spots"`
	TotalSpots     int            `json:"total_spots"`
	Notes          *string        `json:"notes"`
	GolfCourse     *golfCourseDTO `json:"golf_course"`
}

type postingSummaryDTO struct {
	CourseName string    `json:"course_name"`
	TeeTime    time.Time `json:"tee_time"`
	Notes      *string   `json:"notes"`
}

type reservationDTO struct {
	ID            int64              `json:"id"`
	UserID        int64              `json:"user_id"`
	SpotsReserved int                `json:"spots_reserved"`
	Posting       *postingSummaryDTO `json:"posting"`
}

func (d *postingDTO) toModel() *model.TeeTimePosting {
	p := &model.TeeTimePosting{
		ID:             d.ID,
		UserID:         d.UserID,
		CourseName:     d.CourseName,
		TeeTime:        d.TeeTime,
		AvailableSpots: d.AvailableSpots,
		TotalSpots:     d.TotalSpots,
		Notes:          d.Notes,
	}
	if d.GolfCourse != nil {
		p.GolfCourse = &model.GolfCourse{
			Name:    d.GolfCourse.Name,
			Address: d.GolfCourse.Address,
			City:    d.GolfCourse.City,
			State:   d.GolfCourse.State,
			Zip:     d.GolfCourse.Zip,
		}
	}
	return p
}

func (d *reservationDTO) toModel() *model.Reservation {
	r := &model.Reservation{
		ID:            d.ID,
		UserID:        d.UserID,
		SpotsReserved: d.SpotsReserved,
	}
	if d.Posting != nil {
		r.Posting = &model.PostingSummary{
			CourseName: d.Posting.CourseName,
			TeeTime:    d.Posting.TeeTime,
			Notes:      d.Posting.Notes,
		}
	}
	return r
}
