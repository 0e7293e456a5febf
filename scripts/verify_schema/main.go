package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "modernc.org/sqlite"
)

// verify_schema checks that a trader database carries the tables and columns
// the current build expects. Exit status 1 means something is missing.
func main() {
	dbPath := flag.String("db", "./data/okx-trader.db", "sqlite database path")
	flag.Parse()
	fmt.Printf("Verifying database at: %s\n", *dbPath)

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	want := map[string][]string{
		"throttle_state": {"key", "trades_today", "last_trade_date", "updated_at"},
		"orders":         {"id", "symbol", "side", "size", "reduce_only", "atr", "strength", "message", "created_at"},
	}
	missing := 0
	for table, cols := range want {
		have, err := columns(db, table)
		if err != nil {
			log.Fatalf("Query failed: %v", err)
		}
		if len(have) == 0 {
			fmt.Printf("MISSING table %s\n", table)
			missing++
			continue
		}
		for _, c := range cols {
			if !have[c] {
				fmt.Printf("MISSING column %s.%s\n", table, c)
				missing++
			}
		}
		fmt.Printf("ok table %s\n", table)
	}
	if missing > 0 {
		os.Exit(1)
	}
}

func columns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}
