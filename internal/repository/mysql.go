package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// erDupEntry is the MySQL server error for a unique key violation.
const erDupEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erDupEntry
}
