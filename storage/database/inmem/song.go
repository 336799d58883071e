package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/song"
)

var songLess = map[string]func(a, b song.Song) bool{
	"title":      func(a, b song.Song) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) },
	"artist":     func(a, b song.Song) bool { return strings.ToLower(a.Artist.String) < strings.ToLower(b.Artist.String) },
	"key":        func(a, b song.Song) bool { return a.Key.String < b.Key.String },
	"created_at": func(a, b song.Song) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"updated_at": func(a, b song.Song) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
}

type songRepository struct {
	db *DB
}

var _ song.Repository = (*songRepository)(nil) // interface compliance check

func NewSongRepository(db *DB) *songRepository {
	return &songRepository{db: db}
}

func (repo *songRepository) CreateSong(_ context.Context, s song.Song) (song.Song, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.ID = uuid.New().String()
	repo.db.songs[s.ID] = &s
	return s, nil
}

func (repo *songRepository) QuerySongs(_ context.Context, filter *song.QueryFilter, ordering []core.DBOrdering) ([]song.Song, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	songs := make([]song.Song, 0, len(repo.db.songs))
	for _, s := range repo.db.songs {
		if filter != nil && filter.Search != "" {
			search := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(s.Title), search) && !strings.Contains(strings.ToLower(s.Artist.String), search) {
				continue
			}
		}
		songs = append(songs, *s)
	}
	sortBy(songs, ordering, songLess, core.DBOrdering{Field: "title", Ascending: true})
	return songs, nil
}

func (repo *songRepository) GetSongByID(_ context.Context, id string) (song.Song, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.songs[id]; ok {
		return *s, nil
	}
	return song.Song{}, song.ErrNotFound
}

func (repo *songRepository) FindSong(_ context.Context, title, artist string) (song.Song, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var found *song.Song
	for _, s := range repo.db.songs {
		if strings.EqualFold(s.Title, title) && strings.EqualFold(s.Artist.String, artist) {
			if found == nil || s.CreatedAt.Before(found.CreatedAt) {
				found = s
			}
		}
	}
	if found == nil {
		return song.Song{}, song.ErrNotFound
	}
	return *found, nil
}

func (repo *songRepository) UpdateSong(_ context.Context, s song.Song) (song.Song, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.songs[s.ID]; !ok {
		return song.Song{}, song.ErrNotFound
	}
	repo.db.songs[s.ID] = &s
	return s, nil
}

func (repo *songRepository) DeleteSong(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.songs[id]; !ok {
		return song.ErrNotFound
	}
	delete(repo.db.songs, id)
	touched := make(map[string]bool)
	for eid, e := range repo.db.setlist {
		if e.SongID == id {
			delete(repo.db.setlist, eid)
			touched[e.ScheduleID] = true
		}
	}
	for scheduleID := range touched {
		repo.db.renumberSetlist(scheduleID)
	}
	return nil
}

// renumberSetlist rewrites the positions of a schedule's setlist as 0..n-1, keeping their order.
// The caller holds the write lock.
func (db *DB) renumberSetlist(scheduleID string) {
	entries := make([]*entryRow, 0)
	for _, e := range db.setlist {
		if e.ScheduleID == scheduleID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Position != entries[j].Position {
			return entries[i].Position < entries[j].Position
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	for pos, e := range entries {
		e.Position = pos
	}
}

func (repo *songRepository) CountSongs(_ context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.songs), nil
}

func (repo *songRepository) QuerySongOptions(_ context.Context) ([]song.Option, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	latest := make(map[string]*entryRow, len(repo.db.songs))
	for _, e := range repo.db.setlist {
		if cur, ok := latest[e.SongID]; !ok || e.CreatedAt.After(cur.CreatedAt) {
			latest[e.SongID] = e
		}
	}

	opts := make([]song.Option, 0, len(repo.db.songs))
	for _, s := range repo.db.songs {
		opt := song.Option{ID: s.ID, Title: s.Title, Artist: s.Artist}
		if e, ok := latest[s.ID]; ok {
			if sched, ok := repo.db.schedules[e.ScheduleID]; ok {
				d := sched.Date
				opt.LastPlayedOn = &d
			}
			if minister, ok := repo.db.users[e.MinisterID.String]; ok && e.MinisterID.Valid {
				opt.LastMinister = null.StringFrom(minister.Name)
			}
		}
		opts = append(opts, opt)
	}
	sort.Slice(opts, func(i, j int) bool { return strings.ToLower(opts[i].Title) < strings.ToLower(opts[j].Title) })
	return opts, nil
}
