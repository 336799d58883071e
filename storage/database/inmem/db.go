// Package inmemdb implements the domain repositories in memory, for tests and databaseless runs.
package inmemdb

import (
	"sync"

	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
)

// DB holds every table behind one lock, so that cascades stay consistent.
type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User // functions are kept in functions
	functions   map[string]*user.Function
	songs       map[string]*song.Song
	schedules   map[string]*schedule.Schedule
	assignments map[string]*schedule.Assignment
	setlist     map[string]*entryRow
}

// entryRow is a SetlistEntry as stored, referencing its song and minister by ID.
type entryRow struct {
	schedule.SetlistEntry
	SongID string
}

func Open() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		functions:   make(map[string]*user.Function),
		songs:       make(map[string]*song.Song),
		schedules:   make(map[string]*schedule.Schedule),
		assignments: make(map[string]*schedule.Assignment),
		setlist:     make(map[string]*entryRow),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.functions = make(map[string]*user.Function)
	db.songs = make(map[string]*song.Song)
	db.schedules = make(map[string]*schedule.Schedule)
	db.assignments = make(map[string]*schedule.Assignment)
	db.setlist = make(map[string]*entryRow)
}
