package dashboard

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/user"
)

// UpcomingLimit is the number of assignments shown on the dashboard.
const UpcomingLimit = 5

type (
	Stats struct {
		Members           int `json:"members"`
		Songs             int `json:"songs"`
		UpcomingSchedules int `json:"upcoming_schedules"`
	}

	Dashboard struct {
		Upcoming  []schedule.UpcomingAssignment `json:"upcoming"`
		Next      *schedule.UpcomingAssignment  `json:"next"`
		NextSongs []schedule.SetlistEntry       `json:"next_songs"`
		Stats     *Stats                        `json:"stats,omitempty"`
	}

	ScheduleService interface {
		Upcoming(ctx context.Context, usr user.User, limit int) ([]schedule.UpcomingAssignment, error)
		Setlist(ctx context.Context, scheduleID string) ([]schedule.SetlistEntry, error)
		CountUpcoming(ctx context.Context) (int, error)
	}

	Counter interface {
		Count(ctx context.Context) (int, error)
	}

	Service struct {
		schedules ScheduleService
		users     Counter
		songs     Counter
	}
)

func NewService(schedules ScheduleService, users, songs Counter) *Service {
	return &Service{schedules: schedules, users: users, songs: songs}
}

// Get builds the dashboard of usr. Stats are only filled in for admins.
func (svc *Service) Get(ctx context.Context, usr user.User) (Dashboard, error) {
	upcoming, err := svc.schedules.Upcoming(ctx, usr, UpcomingLimit)
	if err != nil {
		return Dashboard{}, err
	}
	db := Dashboard{
		Upcoming:  upcoming,
		NextSongs: []schedule.SetlistEntry{},
	}
	if len(upcoming) > 0 {
		db.Next = &upcoming[0]
		if db.NextSongs, err = svc.schedules.Setlist(ctx, db.Next.ScheduleID); err != nil {
			return Dashboard{}, errors.Wrap(err, "querying next setlist")
		}
	}

	if usr.IsAdmin() {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return Dashboard{}, err
		}
		db.Stats = &stats
	}
	return db, nil
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Members, err = svc.users.Count(ctx)
		return errors.Wrap(err, "counting members")
	})
	g.Go(func() (err error) {
		stats.Songs, err = svc.songs.Count(ctx)
		return errors.Wrap(err, "counting songs")
	})
	g.Go(func() (err error) {
		stats.UpcomingSchedules, err = svc.schedules.CountUpcoming(ctx)
		return errors.Wrap(err, "counting upcoming schedules")
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
