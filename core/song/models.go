package song

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/ministerio/escalas/core"
)

type Song struct {
	ID        string      `json:"id" db:"id"`
	Title     string      `json:"title" db:"title"`
	Artist    null.String `json:"artist" db:"artist"`
	Key       null.String `json:"key" db:"key"`
	Link      null.String `json:"link" db:"link"`
	Lyrics    null.String `json:"lyrics" db:"lyrics"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Option is a Song as offered when building a setlist, with its latest appearance.
type Option struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Artist       null.String `json:"artist"`
	LastPlayedOn *civil.Date `json:"last_played_on"`
	LastMinister null.String `json:"last_minister"`
}

// NewSong contains information needed to create or replace a Song.
type NewSong struct {
	Title  string `json:"title" validate:"required,notblank"`
	Artist string `json:"artist"`
	Key    string `json:"key" validate:"omitempty,max=8,songkey"`
	Link   string `json:"link" validate:"omitempty,url"`
	Lyrics string `json:"lyrics"`
}

func (ns *NewSong) Clean() {
	ns.Title = core.CleanString(ns.Title)
	ns.Artist = core.CleanString(ns.Artist)
	ns.Key = core.CleanString(ns.Key)
	ns.Link = core.CleanString(ns.Link)
	ns.Lyrics = core.CleanString(ns.Lyrics)
}

func (ns *NewSong) Validate(_ context.Context, validate *validator.Validate) error {
	ns.Clean()
	return validate.Struct(ns)
}

// apply copies the NewSong fields onto s, storing blank optional fields as NULL.
func (ns NewSong) apply(s *Song) {
	s.Title = ns.Title
	s.Artist = nullString(ns.Artist)
	s.Key = nullString(ns.Key)
	s.Link = nullString(ns.Link)
	s.Lyrics = nullString(ns.Lyrics)
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

type QueryFilter struct {
	Search string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
