package inmemdb

import (
	"context"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/ministerio/escalas/core/schedule"
)

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) CreateSchedule(_ context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.ID = uuid.New().String()
	repo.db.schedules[s.ID] = &s
	return s, nil
}

func (repo *scheduleRepository) GetScheduleByID(_ context.Context, id string) (schedule.Schedule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.schedules[id]; ok {
		return *s, nil
	}
	return schedule.Schedule{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) UpdateSchedule(_ context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schedules[s.ID]; !ok {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	repo.db.schedules[s.ID] = &s
	return s, nil
}

func (repo *scheduleRepository) DeleteSchedule(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schedules[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(repo.db.schedules, id)
	for aid, a := range repo.db.assignments {
		if a.ScheduleID == id {
			delete(repo.db.assignments, aid)
		}
	}
	for eid, e := range repo.db.setlist {
		if e.ScheduleID == id {
			delete(repo.db.setlist, eid)
		}
	}
	return nil
}

func (repo *scheduleRepository) QuerySummaries(_ context.Context, filter schedule.QueryFilter, viewerID string) ([]schedule.Summary, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	summaries := make([]schedule.Summary, 0, len(repo.db.schedules))
	for _, s := range repo.db.schedules {
		if !filter.Contains(s.Date) {
			continue
		}
		sum := schedule.Summary{Schedule: *s}
		for _, a := range repo.assignmentsOf(s.ID) {
			sum.MemberCount++
			if a.UserID == viewerID && !sum.MyFunction.Valid {
				sum.MyFunction = null.StringFrom(a.Function)
			}
		}
		for _, e := range repo.db.setlist {
			if e.ScheduleID == s.ID {
				sum.SongCount++
			}
		}
		summaries = append(summaries, sum)
	}
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return summaries, nil
}

func (repo *scheduleRepository) CountSchedules(_ context.Context, filter schedule.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, s := range repo.db.schedules {
		if filter.Contains(s.Date) {
			n++
		}
	}
	return n, nil
}

// assignmentsOf returns the assignments of a schedule ordered by function then member name,
// with member names resolved; callers hold the lock.
func (repo *scheduleRepository) assignmentsOf(scheduleID string) []schedule.Assignment {
	assignments := make([]schedule.Assignment, 0)
	for _, a := range repo.db.assignments {
		if a.ScheduleID != scheduleID {
			continue
		}
		assignment := *a
		if usr, ok := repo.db.users[a.UserID]; ok {
			assignment.UserName = usr.Name
		}
		assignments = append(assignments, assignment)
	}
	sort.Slice(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		return a.UserName < b.UserName
	})
	return assignments
}

func (repo *scheduleRepository) QueryAssignments(_ context.Context, scheduleID string) ([]schedule.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.assignmentsOf(scheduleID), nil
}

func (repo *scheduleRepository) CreateAssignment(_ context.Context, a schedule.Assignment) (schedule.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schedules[a.ScheduleID]; !ok {
		return schedule.Assignment{}, schedule.ErrNotFound
	}
	for _, cur := range repo.db.assignments {
		if cur.ScheduleID == a.ScheduleID && cur.UserID == a.UserID && cur.Function == a.Function {
			return schedule.Assignment{}, schedule.ErrAlreadyAssigned
		}
	}
	a.ID = uuid.New().String()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *scheduleRepository) DeleteAssignment(_ context.Context, scheduleID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.assignments[id]
	if !ok || a.ScheduleID != scheduleID {
		return schedule.ErrAssignmentNotFound
	}
	delete(repo.db.assignments, id)
	return nil
}

func (repo *scheduleRepository) QueryUpcoming(_ context.Context, userID string, from civil.Date, limit int) ([]schedule.UpcomingAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	upcoming := make([]schedule.UpcomingAssignment, 0)
	for _, a := range repo.db.assignments {
		if a.UserID != userID {
			continue
		}
		s, ok := repo.db.schedules[a.ScheduleID]
		if !ok || s.Date.Before(from) {
			continue
		}
		assignment := *a
		if usr, ok := repo.db.users[a.UserID]; ok {
			assignment.UserName = usr.Name
		}
		upcoming = append(upcoming, schedule.UpcomingAssignment{Assignment: assignment, Schedule: *s})
	}
	sort.Slice(upcoming, func(i, j int) bool {
		a, b := upcoming[i], upcoming[j]
		if a.Schedule.Date != b.Schedule.Date {
			return a.Schedule.Date.Before(b.Schedule.Date)
		}
		return a.Function < b.Function
	})
	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming, nil
}

func (repo *scheduleRepository) QuerySetlist(_ context.Context, scheduleID string) ([]schedule.SetlistEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]*entryRow, 0)
	for _, e := range repo.db.setlist {
		if e.ScheduleID == scheduleID {
			rows = append(rows, e)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Position != rows[j].Position {
			return rows[i].Position < rows[j].Position
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})

	entries := make([]schedule.SetlistEntry, 0, len(rows))
	for _, r := range rows {
		e := r.SetlistEntry
		if s, ok := repo.db.songs[r.SongID]; ok {
			e.Song = *s
		}
		e.MinisterName = null.String{}
		if minister, ok := repo.db.users[e.MinisterID.String]; ok && e.MinisterID.Valid {
			e.MinisterName = null.StringFrom(minister.Name)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (repo *scheduleRepository) CreateSetlistEntry(_ context.Context, e schedule.SetlistEntry) (schedule.SetlistEntry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schedules[e.ScheduleID]; !ok {
		return schedule.SetlistEntry{}, schedule.ErrNotFound
	}
	for _, cur := range repo.db.setlist {
		if cur.ScheduleID == e.ScheduleID && cur.SongID == e.Song.ID {
			return schedule.SetlistEntry{}, schedule.ErrSongInSetlist
		}
	}
	e.ID = uuid.New().String()
	repo.db.setlist[e.ID] = &entryRow{SetlistEntry: e, SongID: e.Song.ID}
	return e, nil
}

func (repo *scheduleRepository) DeleteSetlistEntry(_ context.Context, scheduleID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.setlist[id]
	if !ok || e.ScheduleID != scheduleID {
		return schedule.ErrEntryNotFound
	}
	delete(repo.db.setlist, id)
	return nil
}

func (repo *scheduleRepository) SetSetlistPositions(_ context.Context, scheduleID string, entryIDs []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for pos, id := range entryIDs {
		if e, ok := repo.db.setlist[id]; ok && e.ScheduleID == scheduleID {
			e.Position = pos
		}
	}
	return nil
}
