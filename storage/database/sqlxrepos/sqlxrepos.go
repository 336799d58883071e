// Package sqlxrepos implements the domain repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core"
)

const uniqueViolation = "23505"

// orderBy builds an ORDER BY clause from the orderings whose field is a key of columns.
// Unknown fields are ignored; def is used when nothing is left.
func orderBy(ordering []core.DBOrdering, columns map[string]string, def string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(clauses) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern matches term literally anywhere in a column, to be used with ESCAPE '\'.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// trapNoRowsErr maps the "no rows" error to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validUUIDs drops the ids postgres would refuse to compare with a UUID column.
func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func rowsAffected(res sql.Result, err error, msg string) (int, error) {
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	return int(n), nil
}
