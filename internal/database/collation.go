package database

import (
	"database/sql"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// driverName is the sqlite3 driver with the NATSORT collation installed on
// every connection.
const driverName = "sqlite3_fileindex"

// NaturalCollation orders strings the way people read them: embedded digit
// runs compare by value, so "file2" sorts before "file10".
const NaturalCollation = "NATSORT"

// collate.Collator keeps internal buffers and is not safe for concurrent use.
var collatorPool = sync.Pool{
	New: func() any {
		return collate.New(language.Und, collate.Numeric)
	},
}

// naturalCompare is a total order: ties from the collator are broken
// byte-wise so distinct strings never compare equal.
func naturalCompare(a, b string) int {
	c := collatorPool.Get().(*collate.Collator)
	defer collatorPool.Put(c)

	if r := c.CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterCollation(NaturalCollation, naturalCompare)
		},
	})
}
