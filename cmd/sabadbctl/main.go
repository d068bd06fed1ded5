// Command sabadbctl is a small inspection/maintenance CLI over the
// activity log SQLite file, for operators who want to read or prune it
// without going through the IPC API.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := flag.String("db", "data/activity.db", "path to the activity log SQLite database")
	action := flag.String("action", "", "action to perform: recent, prune")
	instanceID := flag.String("instance", "", "instance ID (required for recent)")
	limit := flag.Int("limit", 50, "row limit for recent")
	olderThan := flag.Duration("older-than", 30*24*time.Hour, "age threshold for prune")
	jsonOutput := flag.Bool("json", false, "output as JSON")
	flag.Parse()

	if *action == "" {
		fmt.Fprintf(os.Stderr, "Usage: sabadbctl -db <path> -action <recent|prune> [-instance <id>] [-limit N] [-older-than 720h] [-json]\n")
		os.Exit(1)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", *dbPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch *action {
	case "recent":
		if *instanceID == "" {
			fmt.Fprintln(os.Stderr, "recent requires -instance")
			os.Exit(1)
		}
		entries, err := recentActivity(db, *instanceID, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to query activity: %v\n", err)
			os.Exit(1)
		}
		if *jsonOutput {
			json.NewEncoder(os.Stdout).Encode(entries)
		} else {
			for _, e := range entries {
				fmt.Printf("%s  %-10s  %s  %s\n", e.CreatedAt.Format(time.RFC3339), e.Action, e.InstanceID, e.Details)
			}
		}

	case "prune":
		n, err := pruneOlderThan(db, *olderThan)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to prune activity: %v\n", err)
			os.Exit(1)
		}
		if *jsonOutput {
			json.NewEncoder(os.Stdout).Encode(map[string]int64{"deleted": n})
		} else {
			fmt.Printf("deleted %d rows older than %s\n", n, *olderThan)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown action: %s\n", *action)
		os.Exit(1)
	}
}

type activityRow struct {
	ID         int64     `json:"id"`
	InstanceID string    `json:"instance_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

func recentActivity(db *sql.DB, instanceID string, limit int) ([]activityRow, error) {
	rows, err := db.Query(
		`SELECT id, instance_id, action, details, created_at FROM activity
		 WHERE instance_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		instanceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []activityRow
	for rows.Next() {
		var e activityRow
		if err := rows.Scan(&e.ID, &e.InstanceID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func pruneOlderThan(db *sql.DB, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	result, err := db.Exec(`DELETE FROM activity WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
