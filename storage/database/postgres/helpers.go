package postgres

import (
	"database/sql"
	"strconv"

	"github.com/pkg/errors"
)

func itoa(i int) string { return strconv.Itoa(i) }

// checkAffected returns notFound when res reports no affected row.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "getting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// args collects positional query arguments.
type args []interface{}

// add appends v and returns its placeholder.
func (a *args) add(v interface{}) string {
	*a = append(*a, v)
	return "$" + itoa(len(*a))
}
