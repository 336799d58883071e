package sqlxrepos

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/schedule"
)

const scheduleColumns = "s.id, s.date, s.title, s.created_by, s.created_at, s.updated_at"

// scheduleRow holds the date as time.Time since civil.Date is not a sql.Scanner.
type scheduleRow struct {
	ID        string      `db:"id"`
	Date      time.Time   `db:"date"`
	Title     string      `db:"title"`
	CreatedBy null.String `db:"created_by"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r scheduleRow) schedule() schedule.Schedule {
	return schedule.Schedule{
		ID:        r.ID,
		Date:      civil.DateOf(r.Date),
		Title:     r.Title,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type summaryRow struct {
	scheduleRow
	MemberCount int         `db:"member_count"`
	SongCount   int         `db:"song_count"`
	MyFunction  null.String `db:"my_function"`
}

type upcomingRow struct {
	schedule.Assignment
	Schedule scheduleRow `db:"schedule"`
}

type scheduleRepository struct {
	db core.DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db core.DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

func dateFilter(q string, args []interface{}, filter schedule.QueryFilter) (string, []interface{}) {
	if filter.From.IsValid() {
		q += " AND s.date >= ?"
		args = append(args, filter.From.String())
	}
	if filter.To.IsValid() {
		q += " AND s.date <= ?"
		args = append(args, filter.To.String())
	}
	return q, args
}

func (repo scheduleRepository) CreateSchedule(ctx context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	s.ID = uuid.New().String()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO schedules (id, date, title, created_by, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)",
		s.ID, s.Date.String(), s.Title, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return schedule.Schedule{}, errors.Wrap(err, "inserting schedule")
	}
	return s, nil
}

func (repo scheduleRepository) GetScheduleByID(ctx context.Context, id string) (schedule.Schedule, error) {
	if !isUUID(id) {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	var row scheduleRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+scheduleColumns+" FROM schedules s WHERE s.id = $1", id); err != nil {
		return schedule.Schedule{}, trapNoRowsErr(err, schedule.ErrNotFound, "finding schedule")
	}
	return row.schedule(), nil
}

func (repo scheduleRepository) UpdateSchedule(ctx context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	if !isUUID(s.ID) {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	res, err := repo.db.ExecContext(ctx,
		"UPDATE schedules SET date = $1, title = $2, updated_at = $3 WHERE id = $4",
		s.Date.String(), s.Title, s.UpdatedAt, s.ID)
	n, err := rowsAffected(res, err, "updating schedule")
	if err != nil {
		return schedule.Schedule{}, err
	}
	if n == 0 {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	return s, nil
}

func (repo scheduleRepository) DeleteSchedule(ctx context.Context, id string) error {
	if !isUUID(id) {
		return schedule.ErrNotFound
	}
	// assignments and setlist entries go with it (ON DELETE CASCADE)
	res, err := repo.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id)
	n, err := rowsAffected(res, err, "deleting schedule")
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (repo scheduleRepository) QuerySummaries(ctx context.Context, filter schedule.QueryFilter, viewerID string) ([]schedule.Summary, error) {
	q := "SELECT " + scheduleColumns + `,
		(SELECT COUNT(*) FROM schedule_members m WHERE m.schedule_id = s.id) AS member_count,
		(SELECT COUNT(*) FROM schedule_songs ss WHERE ss.schedule_id = s.id) AS song_count,
		(SELECT m.function FROM schedule_members m WHERE m.schedule_id = s.id AND m.user_id = ?
			ORDER BY m.function LIMIT 1) AS my_function
		FROM schedules s WHERE TRUE`
	args := []interface{}{null.NewString(viewerID, isUUID(viewerID))}
	q, args = dateFilter(q, args, filter)
	q += " ORDER BY s.date, s.created_at"

	var rows []summaryRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	summaries := make([]schedule.Summary, 0, len(rows))
	for _, r := range rows {
		summaries = append(summaries, schedule.Summary{
			Schedule:    r.schedule(),
			MemberCount: r.MemberCount,
			SongCount:   r.SongCount,
			MyFunction:  r.MyFunction,
		})
	}
	return summaries, nil
}

func (repo scheduleRepository) CountSchedules(ctx context.Context, filter schedule.QueryFilter) (int, error) {
	q, args := dateFilter("SELECT COUNT(*) FROM schedules s WHERE TRUE", nil, filter)
	var n int
	if err := repo.db.GetContext(ctx, &n, repo.db.Rebind(q), args...); err != nil {
		return 0, errors.Wrap(err, "counting schedules")
	}
	return n, nil
}

const assignmentColumns = "m.id, m.schedule_id, m.user_id, u.name AS user_name, m.function, m.note, m.created_at"

func (repo scheduleRepository) QueryAssignments(ctx context.Context, scheduleID string) ([]schedule.Assignment, error) {
	assignments := make([]schedule.Assignment, 0)
	if !isUUID(scheduleID) {
		return assignments, nil
	}
	err := repo.db.SelectContext(ctx, &assignments,
		"SELECT "+assignmentColumns+" FROM schedule_members m JOIN users u ON u.id = m.user_id "+
			"WHERE m.schedule_id = $1 ORDER BY m.function, u.name",
		scheduleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}

func (repo scheduleRepository) CreateAssignment(ctx context.Context, a schedule.Assignment) (schedule.Assignment, error) {
	a.ID = uuid.New().String()
	a.CreatedAt = a.CreatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO schedule_members (id, schedule_id, user_id, function, note, created_at) "+
			"VALUES (:id, :schedule_id, :user_id, :function, :note, :created_at)",
		a)
	if err != nil {
		if isUniqueViolation(err) {
			return schedule.Assignment{}, schedule.ErrAlreadyAssigned
		}
		return schedule.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo scheduleRepository) DeleteAssignment(ctx context.Context, scheduleID, id string) error {
	if !isUUID(scheduleID) || !isUUID(id) {
		return schedule.ErrAssignmentNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM schedule_members WHERE id = $1 AND schedule_id = $2", id, scheduleID)
	n, err := rowsAffected(res, err, "deleting assignment")
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrAssignmentNotFound
	}
	return nil
}

func (repo scheduleRepository) QueryUpcoming(ctx context.Context, userID string, from civil.Date, limit int) ([]schedule.UpcomingAssignment, error) {
	upcoming := make([]schedule.UpcomingAssignment, 0)
	if !isUUID(userID) {
		return upcoming, nil
	}
	q := "SELECT " + assignmentColumns + `,
			s.id AS "schedule.id", s.date AS "schedule.date", s.title AS "schedule.title",
			s.created_by AS "schedule.created_by", s.created_at AS "schedule.created_at",
			s.updated_at AS "schedule.updated_at"
		FROM schedule_members m
		JOIN users u ON u.id = m.user_id
		JOIN schedules s ON s.id = m.schedule_id
		WHERE m.user_id = $1 AND s.date >= $2
		ORDER BY s.date, m.function`
	args := []interface{}{userID, from.String()}
	if limit > 0 {
		q += " LIMIT $3"
		args = append(args, limit)
	}
	var rows []upcomingRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying upcoming assignments")
	}
	for _, r := range rows {
		upcoming = append(upcoming, schedule.UpcomingAssignment{
			Assignment: r.Assignment,
			Schedule:   r.Schedule.schedule(),
		})
	}
	return upcoming, nil
}

func (repo scheduleRepository) QuerySetlist(ctx context.Context, scheduleID string) ([]schedule.SetlistEntry, error) {
	entries := make([]schedule.SetlistEntry, 0)
	if !isUUID(scheduleID) {
		return entries, nil
	}
	err := repo.db.SelectContext(ctx, &entries, `
		SELECT e.id, e.schedule_id, e.position, e.minister_id, u.name AS minister_name, e.created_at,
			s.id AS "song.id", s.title AS "song.title", s.artist AS "song.artist", s.key AS "song.key",
			s.link AS "song.link", s.lyrics AS "song.lyrics", s.created_at AS "song.created_at",
			s.updated_at AS "song.updated_at"
		FROM schedule_songs e
		JOIN songs s ON s.id = e.song_id
		LEFT JOIN users u ON u.id = e.minister_id
		WHERE e.schedule_id = $1
		ORDER BY e.position, e.created_at`,
		scheduleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying setlist")
	}
	return entries, nil
}

func (repo scheduleRepository) CreateSetlistEntry(ctx context.Context, e schedule.SetlistEntry) (schedule.SetlistEntry, error) {
	e.ID = uuid.New().String()
	e.CreatedAt = e.CreatedAt.UTC()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO schedule_songs (id, schedule_id, song_id, position, minister_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		e.ID, e.ScheduleID, e.Song.ID, e.Position, e.MinisterID, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return schedule.SetlistEntry{}, schedule.ErrSongInSetlist
		}
		return schedule.SetlistEntry{}, errors.Wrap(err, "inserting setlist entry")
	}
	return e, nil
}

func (repo scheduleRepository) DeleteSetlistEntry(ctx context.Context, scheduleID, id string) error {
	if !isUUID(scheduleID) || !isUUID(id) {
		return schedule.ErrEntryNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM schedule_songs WHERE id = $1 AND schedule_id = $2", id, scheduleID)
	n, err := rowsAffected(res, err, "deleting setlist entry")
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrEntryNotFound
	}
	return nil
}

func (repo scheduleRepository) SetSetlistPositions(ctx context.Context, scheduleID string, entryIDs []string) error {
	return core.InTx(ctx, repo.db, func(exec core.DBExecutor) error {
		for pos, id := range entryIDs {
			_, err := exec.ExecContext(ctx,
				"UPDATE schedule_songs SET position = $1 WHERE id = $2 AND schedule_id = $3",
				pos, id, scheduleID)
			if err != nil {
				return errors.Wrap(err, "updating setlist position")
			}
		}
		return nil
	})
}
