package sqlxrepos

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/song"
)

const songColumns = "id, title, artist, key, link, lyrics, created_at, updated_at"

var songOrderingColumns = map[string]string{
	"title":      "lower(title)",
	"artist":     "lower(artist)",
	"key":        "key",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type songRepository struct {
	db core.DB
}

var _ song.Repository = (*songRepository)(nil) // interface compliance check

func NewSongRepository(db core.DB) *songRepository {
	return &songRepository{db: db}
}

func (repo songRepository) CreateSong(ctx context.Context, s song.Song) (song.Song, error) {
	s.ID = uuid.New().String()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO songs ("+songColumns+") VALUES "+
			"(:id, :title, :artist, :key, :link, :lyrics, :created_at, :updated_at)",
		s)
	if err != nil {
		return song.Song{}, errors.Wrap(err, "inserting song")
	}
	return s, nil
}

func (repo songRepository) QuerySongs(ctx context.Context, filter *song.QueryFilter, ordering []core.DBOrdering) ([]song.Song, error) {
	q := "SELECT " + songColumns + " FROM songs WHERE TRUE"
	var args []interface{}
	if filter != nil && filter.Search != "" {
		val := containsPattern(filter.Search)
		q += " AND (title ILIKE ? ESCAPE '\\' OR artist ILIKE ? ESCAPE '\\')"
		args = append(args, val, val)
	}
	q += orderBy(ordering, songOrderingColumns, "lower(title) ASC")

	songs := make([]song.Song, 0)
	if err := repo.db.SelectContext(ctx, &songs, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying songs")
	}
	return songs, nil
}

func (repo songRepository) GetSongByID(ctx context.Context, id string) (song.Song, error) {
	if !isUUID(id) {
		return song.Song{}, song.ErrNotFound
	}
	var s song.Song
	if err := repo.db.GetContext(ctx, &s, "SELECT "+songColumns+" FROM songs WHERE id = $1", id); err != nil {
		return song.Song{}, trapNoRowsErr(err, song.ErrNotFound, "finding song")
	}
	return s, nil
}

func (repo songRepository) FindSong(ctx context.Context, title, artist string) (song.Song, error) {
	var s song.Song
	err := repo.db.GetContext(ctx, &s,
		"SELECT "+songColumns+" FROM songs WHERE lower(title) = lower($1) AND lower(coalesce(artist, '')) = lower($2) "+
			"ORDER BY created_at LIMIT 1",
		title, artist)
	if err != nil {
		return song.Song{}, trapNoRowsErr(err, song.ErrNotFound, "finding song")
	}
	return s, nil
}

func (repo songRepository) UpdateSong(ctx context.Context, s song.Song) (song.Song, error) {
	if !isUUID(s.ID) {
		return song.Song{}, song.ErrNotFound
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	res, err := repo.db.NamedExecContext(ctx,
		"UPDATE songs SET title = :title, artist = :artist, key = :key, link = :link, lyrics = :lyrics, "+
			"updated_at = :updated_at WHERE id = :id",
		s)
	n, err := rowsAffected(res, err, "updating song")
	if err != nil {
		return song.Song{}, err
	}
	if n == 0 {
		return song.Song{}, song.ErrNotFound
	}
	return s, nil
}

func (repo songRepository) DeleteSong(ctx context.Context, id string) error {
	if !isUUID(id) {
		return song.ErrNotFound
	}
	return core.InTx(ctx, repo.db, func(exec core.DBExecutor) error {
		var scheduleIDs []string
		err := exec.SelectContext(ctx, &scheduleIDs,
			"SELECT DISTINCT schedule_id FROM schedule_songs WHERE song_id = $1", id)
		if err != nil {
			return errors.Wrap(err, "querying setlists of song")
		}

		res, err := exec.ExecContext(ctx, "DELETE FROM songs WHERE id = $1", id)
		n, err := rowsAffected(res, err, "deleting song")
		if err != nil {
			return err
		}
		if n == 0 {
			return song.ErrNotFound
		}
		if len(scheduleIDs) == 0 {
			return nil
		}

		// close the gaps left in the setlists by the cascade
		_, err = exec.ExecContext(ctx, `
			UPDATE schedule_songs e SET position = r.pos
			FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY schedule_id ORDER BY position, created_at) - 1 AS pos
				FROM schedule_songs
				WHERE schedule_id = ANY($1)
			) r
			WHERE e.id = r.id`,
			pq.Array(scheduleIDs))
		return errors.Wrap(err, "renumbering setlists")
	})
}

func (repo songRepository) CountSongs(ctx context.Context) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM songs"); err != nil {
		return 0, errors.Wrap(err, "counting songs")
	}
	return n, nil
}

type songOptionRow struct {
	ID           string      `db:"id"`
	Title        string      `db:"title"`
	Artist       null.String `db:"artist"`
	LastPlayedOn null.Time   `db:"last_played_on"`
	LastMinister null.String `db:"last_minister"`
}

func (repo songRepository) QuerySongOptions(ctx context.Context) ([]song.Option, error) {
	var rows []songOptionRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT s.id, s.title, s.artist, latest.date AS last_played_on, latest.minister AS last_minister
		FROM songs s
		LEFT JOIN LATERAL (
			SELECT sc.date, u.name AS minister
			FROM schedule_songs ss
			JOIN schedules sc ON sc.id = ss.schedule_id
			LEFT JOIN users u ON u.id = ss.minister_id
			WHERE ss.song_id = s.id
			ORDER BY ss.created_at DESC
			LIMIT 1
		) latest ON TRUE
		ORDER BY lower(s.title)`)
	if err != nil {
		return nil, errors.Wrap(err, "querying song options")
	}

	opts := make([]song.Option, 0, len(rows))
	for _, r := range rows {
		opt := song.Option{
			ID:           r.ID,
			Title:        r.Title,
			Artist:       r.Artist,
			LastMinister: r.LastMinister,
		}
		if r.LastPlayedOn.Valid {
			d := civil.DateOf(r.LastPlayedOn.Time)
			opt.LastPlayedOn = &d
		}
		opts = append(opts, opt)
	}
	return opts, nil
}
