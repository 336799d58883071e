package song

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core"
)

var ErrNotFound = core.NewNotFoundError("song not found")

type (
	Repository interface {
		CreateSong(ctx context.Context, s Song) (Song, error)
		// QuerySongs does a case-insensitive match of QueryFilter.Search on one of Song.Title or Song.Artist.
		QuerySongs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Song, error)
		GetSongByID(ctx context.Context, id string) (Song, error)
		// FindSong returns the song with exactly this title and artist, ignoring case.
		FindSong(ctx context.Context, title, artist string) (Song, error)
		UpdateSong(ctx context.Context, s Song) (Song, error)
		DeleteSong(ctx context.Context, id string) error
		CountSongs(ctx context.Context) (int, error)
		// QuerySongOptions lists every song by title with the schedule date and minister
		// of its most recently added setlist entry.
		QuerySongOptions(ctx context.Context) ([]Option, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ns NewSong) (Song, error) {
	now := time.Now().UTC()
	s := Song{CreatedAt: now, UpdatedAt: now}
	ns.apply(&s)
	return svc.repo.CreateSong(ctx, s)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Song, error) {
	return svc.repo.QuerySongs(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Song, error) {
	return svc.repo.GetSongByID(ctx, id)
}

// Update replaces the editable fields of s.
func (svc *Service) Update(ctx context.Context, s Song, ns NewSong) (Song, error) {
	ns.apply(&s)
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSong(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSong(ctx, id)
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountSongs(ctx)
}

func (svc *Service) QueryOptions(ctx context.Context) ([]Option, error) {
	return svc.repo.QuerySongOptions(ctx)
}

// Import upserts songs by title and artist. Songs must already be cleaned and validated.
func (svc *Service) Import(ctx context.Context, songs []NewSong) (created, updated int, err error) {
	for _, ns := range songs {
		existing, err := svc.repo.FindSong(ctx, ns.Title, ns.Artist)
		switch {
		case err == nil:
			if _, err = svc.Update(ctx, existing, ns); err != nil {
				return created, updated, errors.Wrapf(err, "updating %q", ns.Title)
			}
			updated++
		case errors.Cause(err) == ErrNotFound:
			if _, err = svc.Create(ctx, ns); err != nil {
				return created, updated, errors.Wrapf(err, "creating %q", ns.Title)
			}
			created++
		default:
			return created, updated, errors.Wrapf(err, "finding %q", ns.Title)
		}
	}
	return created, updated, nil
}
