package schedule

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/song"
)

// Status tells where a schedule stands relative to today.
type Status string

const (
	StatusToday    Status = "today"
	StatusPast     Status = "past"
	StatusUpcoming Status = "upcoming"
)

// StatusOf returns the Status of a schedule held on date.
func StatusOf(date, today civil.Date) Status {
	switch {
	case date == today:
		return StatusToday
	case date.Before(today):
		return StatusPast
	default:
		return StatusUpcoming
	}
}

func (st Status) IsPast() bool { return st == StatusPast }

type Schedule struct {
	ID        string      `json:"id"`
	Date      civil.Date  `json:"date"`
	Title     string      `json:"title"`
	CreatedBy null.String `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Assignment is a member scheduled to perform a function.
type Assignment struct {
	ID         string      `json:"id" db:"id"`
	ScheduleID string      `json:"schedule_id" db:"schedule_id"`
	UserID     string      `json:"user_id" db:"user_id"`
	UserName   string      `json:"user_name" db:"user_name"`
	Function   string      `json:"function" db:"function"`
	Note       null.String `json:"note" db:"note"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// SetlistEntry is a song of the repertoire of a schedule.
type SetlistEntry struct {
	ID           string      `json:"id" db:"id"`
	ScheduleID   string      `json:"schedule_id" db:"schedule_id"`
	Position     int         `json:"position" db:"position"`
	MinisterID   null.String `json:"minister_id" db:"minister_id"`
	MinisterName null.String `json:"minister_name" db:"minister_name"`
	Song         song.Song   `json:"song" db:"song"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// Summary is a Schedule as listed, with its counters and the viewer's function in it.
type Summary struct {
	Schedule
	Status      Status      `json:"status"`
	MemberCount int         `json:"member_count"`
	SongCount   int         `json:"song_count"`
	MyFunction  null.String `json:"my_function"`
}

type Detail struct {
	Schedule
	Status     Status         `json:"status"`
	Members    []Assignment   `json:"members"`
	Songs      []SetlistEntry `json:"songs"`
	MyFunction null.String    `json:"my_function"`
}

// UpcomingAssignment is one of the viewer's own assignments with its schedule.
type UpcomingAssignment struct {
	Assignment
	Schedule Schedule `json:"schedule"`
	Status   Status   `json:"status"`
}

// NewSchedule contains information needed to create or replace a Schedule.
type NewSchedule struct {
	Date  civil.Date `json:"date"`
	Title string     `json:"title" validate:"required,notblank"`
}

func (ns *NewSchedule) Validate(_ context.Context, validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if !ns.Date.IsValid() {
		return core.NewFieldError("date", "a valid date is required")
	}
	return nil
}

type NewAssignment struct {
	UserID   string `json:"user_id" validate:"required"`
	Function string `json:"function" validate:"required,teamfunction"`
	Note     string `json:"note" validate:"omitempty,max=500"`
}

func (na *NewAssignment) Validate(_ context.Context, validate *validator.Validate) error {
	na.UserID = core.CleanString(na.UserID)
	na.Function = core.CleanString(na.Function)
	na.Note = core.CleanString(na.Note)
	return validate.Struct(na)
}

type NewSetlistEntry struct {
	SongID     string `json:"song_id" validate:"required"`
	MinisterID string `json:"minister_id"`
}

func (ne *NewSetlistEntry) Validate(_ context.Context, validate *validator.Validate) error {
	ne.SongID = core.CleanString(ne.SongID)
	ne.MinisterID = core.CleanString(ne.MinisterID)
	return validate.Struct(ne)
}

type ReorderSetlist struct {
	EntryIDs []string `json:"entry_ids"`
}

type QueryFilter struct {
	From civil.Date // inclusive; zero means unbounded
	To   civil.Date // inclusive; zero means unbounded
}

// Contains reports whether date is within the filter bounds.
func (qf QueryFilter) Contains(date civil.Date) bool {
	if qf.From.IsValid() && date.Before(qf.From) {
		return false
	}
	if qf.To.IsValid() && date.After(qf.To) {
		return false
	}
	return true
}
