package schedule

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("schedule not found")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment not found")
	ErrEntryNotFound      = core.NewNotFoundError("setlist entry not found")
	ErrAlreadyAssigned    = errors.New("member already assigned to this function in this schedule")
	ErrSongInSetlist      = errors.New("song already in this schedule's repertoire")
	ErrInvalidOrder       = errors.New("entry_ids must list every song of the schedule exactly once")
)

type (
	Repository interface {
		CreateSchedule(ctx context.Context, s Schedule) (Schedule, error)
		GetScheduleByID(ctx context.Context, id string) (Schedule, error)
		UpdateSchedule(ctx context.Context, s Schedule) (Schedule, error)
		// DeleteSchedule also deletes the assignments and setlist of the schedule.
		DeleteSchedule(ctx context.Context, id string) error
		// QuerySummaries returns the schedules within filter ordered by date, with their
		// member and song counts and the function viewerID holds in each of them.
		QuerySummaries(ctx context.Context, filter QueryFilter, viewerID string) ([]Summary, error)
		CountSchedules(ctx context.Context, filter QueryFilter) (int, error)

		// QueryAssignments returns the assignments of a schedule ordered by function.
		QueryAssignments(ctx context.Context, scheduleID string) ([]Assignment, error)
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, scheduleID, id string) error
		// QueryUpcoming returns the assignments of userID on schedules dated on or after from,
		// ordered by date, at most limit of them. A non positive limit returns them all.
		QueryUpcoming(ctx context.Context, userID string, from civil.Date, limit int) ([]UpcomingAssignment, error)

		// QuerySetlist returns the setlist of a schedule ordered by position.
		QuerySetlist(ctx context.Context, scheduleID string) ([]SetlistEntry, error)
		CreateSetlistEntry(ctx context.Context, e SetlistEntry) (SetlistEntry, error)
		DeleteSetlistEntry(ctx context.Context, scheduleID, id string) error
		// SetSetlistPositions sets the position of each entry to its index in entryIDs.
		SetSetlistPositions(ctx context.Context, scheduleID string, entryIDs []string) error
	}

	UserFinder interface {
		GetUserByID(ctx context.Context, id string) (user.User, error)
	}

	SongFinder interface {
		GetSongByID(ctx context.Context, id string) (song.Song, error)
	}

	Service struct {
		repo    Repository
		users   UserFinder
		songs   SongFinder
		mailSvc core.EmailService
		loc     *time.Location
	}
)

func NewService(repo Repository, users UserFinder, songs SongFinder, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		songs:   songs,
		mailSvc: mailSvc,
		loc:     conf.Location(),
	}
}

// Today is the current date in the ministry's timezone.
func (svc *Service) Today() civil.Date {
	return core.Today(svc.loc)
}

func (svc *Service) Create(ctx context.Context, ns NewSchedule, createdBy user.User) (Schedule, error) {
	now := time.Now().UTC()
	return svc.repo.CreateSchedule(ctx, Schedule{
		Date:      ns.Date,
		Title:     ns.Title,
		CreatedBy: null.NewString(createdBy.ID, createdBy.ID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Schedule, error) {
	return svc.repo.GetScheduleByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, s Schedule, ns NewSchedule) (Schedule, error) {
	s.Date = ns.Date
	s.Title = ns.Title
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSchedule(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSchedule(ctx, id)
}

// List returns the schedules within filter, earliest first.
func (svc *Service) List(ctx context.Context, filter QueryFilter, viewer user.User) ([]Summary, error) {
	summaries, err := svc.repo.QuerySummaries(ctx, filter, viewer.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	today := svc.Today()
	for i := range summaries {
		summaries[i].Status = StatusOf(summaries[i].Date, today)
	}
	return summaries, nil
}

// CountUpcoming counts the schedules dated today or later.
func (svc *Service) CountUpcoming(ctx context.Context) (int, error) {
	return svc.repo.CountSchedules(ctx, QueryFilter{From: svc.Today()})
}

func (svc *Service) Detail(ctx context.Context, s Schedule, viewer user.User) (Detail, error) {
	members, err := svc.repo.QueryAssignments(ctx, s.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying assignments")
	}
	songs, err := svc.repo.QuerySetlist(ctx, s.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying setlist")
	}

	d := Detail{
		Schedule: s,
		Status:   StatusOf(s.Date, svc.Today()),
		Members:  members,
		Songs:    songs,
	}
	for _, m := range members {
		if m.UserID == viewer.ID {
			d.MyFunction = null.StringFrom(m.Function)
			break
		}
	}
	return d, nil
}

type assignmentData struct {
	Name       string
	Function   string
	Title      string
	Date       string
	Note       string
	ScheduleID string
}

// AddMember assigns a member to a function in s and notifies them by email.
func (svc *Service) AddMember(ctx context.Context, s Schedule, na NewAssignment) (Assignment, error) {
	usr, err := svc.users.GetUserByID(ctx, na.UserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Assignment{}, core.NewFieldError("user_id", "member not found")
		}
		return Assignment{}, errors.Wrap(err, "finding member")
	}

	current, err := svc.repo.QueryAssignments(ctx, s.ID)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "querying assignments")
	}
	for _, a := range current {
		if a.UserID == usr.ID && a.Function == na.Function {
			return Assignment{}, core.NewValidationError(ErrAlreadyAssigned, core.FieldError{Field: "user_id", Error: ErrAlreadyAssigned.Error()})
		}
	}

	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		ScheduleID: s.ID,
		UserID:     usr.ID,
		UserName:   usr.Name,
		Function:   na.Function,
		Note:       null.NewString(na.Note, na.Note != ""),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyAssigned {
			return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}

	if usr.Email != "" && !StatusOf(s.Date, svc.Today()).IsPast() {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "You have been scheduled: " + s.Title,
			TemplateName: "assignment",
			TemplateData: assignmentData{
				Name:       usr.FirstName(),
				Function:   a.Function,
				Title:      s.Title,
				Date:       s.Date.String(),
				Note:       na.Note,
				ScheduleID: s.ID,
			},
		})
	}
	return a, nil
}

func (svc *Service) RemoveMember(ctx context.Context, s Schedule, assignmentID string) error {
	return svc.repo.DeleteAssignment(ctx, s.ID, assignmentID)
}

// AddSong appends a song to the setlist of s.
func (svc *Service) AddSong(ctx context.Context, s Schedule, ne NewSetlistEntry) (SetlistEntry, error) {
	sng, err := svc.songs.GetSongByID(ctx, ne.SongID)
	if err != nil {
		if errors.Cause(err) == song.ErrNotFound {
			return SetlistEntry{}, core.NewFieldError("song_id", "song not found")
		}
		return SetlistEntry{}, errors.Wrap(err, "finding song")
	}

	entry := SetlistEntry{
		ScheduleID: s.ID,
		Song:       sng,
		CreatedAt:  time.Now().UTC(),
	}
	if ne.MinisterID != "" {
		minister, err := svc.users.GetUserByID(ctx, ne.MinisterID)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return SetlistEntry{}, core.NewFieldError("minister_id", "member not found")
			}
			return SetlistEntry{}, errors.Wrap(err, "finding minister")
		}
		entry.MinisterID = null.StringFrom(minister.ID)
		entry.MinisterName = null.StringFrom(minister.Name)
	}

	setlist, err := svc.repo.QuerySetlist(ctx, s.ID)
	if err != nil {
		return SetlistEntry{}, errors.Wrap(err, "querying setlist")
	}
	for _, e := range setlist {
		if e.Song.ID == sng.ID {
			return SetlistEntry{}, core.NewValidationError(ErrSongInSetlist, core.FieldError{Field: "song_id", Error: ErrSongInSetlist.Error()})
		}
	}
	entry.Position = len(setlist)

	entry, err = svc.repo.CreateSetlistEntry(ctx, entry)
	if err != nil {
		if errors.Cause(err) == ErrSongInSetlist {
			return SetlistEntry{}, core.NewValidationError(err, core.FieldError{Field: "song_id", Error: err.Error()})
		}
		return SetlistEntry{}, errors.Wrap(err, "creating setlist entry")
	}
	return entry, nil
}

// RemoveSong removes an entry from the setlist of s and closes the gap it leaves.
func (svc *Service) RemoveSong(ctx context.Context, s Schedule, entryID string) error {
	if err := svc.repo.DeleteSetlistEntry(ctx, s.ID, entryID); err != nil {
		return err
	}
	setlist, err := svc.repo.QuerySetlist(ctx, s.ID)
	if err != nil {
		return errors.Wrap(err, "querying setlist")
	}
	ids := make([]string, 0, len(setlist))
	for _, e := range setlist {
		ids = append(ids, e.ID)
	}
	return errors.Wrap(svc.repo.SetSetlistPositions(ctx, s.ID, ids), "renumbering setlist")
}

// ReorderSongs rewrites the setlist positions of s following entryIDs,
// which must be a permutation of the current entries.
func (svc *Service) ReorderSongs(ctx context.Context, s Schedule, entryIDs []string) ([]SetlistEntry, error) {
	setlist, err := svc.repo.QuerySetlist(ctx, s.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying setlist")
	}
	if !isPermutation(setlist, entryIDs) {
		return nil, core.NewValidationError(ErrInvalidOrder, core.FieldError{Field: "entry_ids", Error: ErrInvalidOrder.Error()})
	}
	if err = svc.repo.SetSetlistPositions(ctx, s.ID, entryIDs); err != nil {
		return nil, errors.Wrap(err, "reordering setlist")
	}
	return svc.repo.QuerySetlist(ctx, s.ID)
}

func isPermutation(setlist []SetlistEntry, ids []string) bool {
	if len(setlist) != len(ids) {
		return false
	}
	current := make([]string, 0, len(setlist))
	for _, e := range setlist {
		current = append(current, e.ID)
	}
	wanted := append([]string(nil), ids...)
	sort.Strings(current)
	sort.Strings(wanted)
	for i := range current {
		if current[i] != wanted[i] {
			return false
		}
	}
	return true
}

// Setlist returns the songs of the schedule identified by scheduleID.
func (svc *Service) Setlist(ctx context.Context, scheduleID string) ([]SetlistEntry, error) {
	return svc.repo.QuerySetlist(ctx, scheduleID)
}

// Upcoming returns the next assignments of usr, starting today.
func (svc *Service) Upcoming(ctx context.Context, usr user.User, limit int) ([]UpcomingAssignment, error) {
	today := svc.Today()
	upcoming, err := svc.repo.QueryUpcoming(ctx, usr.ID, today, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying upcoming assignments")
	}
	for i := range upcoming {
		upcoming[i].Status = StatusOf(upcoming[i].Schedule.Date, today)
	}
	return upcoming, nil
}
