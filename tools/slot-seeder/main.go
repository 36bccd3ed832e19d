// slot-seeder bulk-creates bookable slots. Slots are the only entity the
// services never create themselves; this tool (or an equivalent admin
// process) owns that job. By default it seeds hourly slots on Mondays and
// Fridays, 09:00-17:00, for the next eight weeks, for every doctor on file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/almatopete/clinica-backend/libs/db"
)

func main() {
	var (
		databaseURL = flag.String("database-url", getenv("DATABASE_URL", ""), "postgres connection string")
		doctorIDs   = flag.String("doctors", getenv("DOCTOR_IDS", ""), "comma-separated doctor ids; empty seeds all doctors")
		weeks       = flag.Int("weeks", 8, "number of weeks ahead to seed")
		startHour   = flag.Int("start-hour", 9, "first slot hour (UTC)")
		endHour     = flag.Int("end-hour", 17, "hour after the last slot (UTC)")
		days        = flag.String("days", "Monday,Friday", "comma-separated weekdays to seed")
	)
	flag.Parse()

	if strings.TrimSpace(*databaseURL) == "" {
		fatal("DATABASE_URL is required")
	}
	if *weeks <= 0 || *startHour < 0 || *endHour <= *startHour || *endHour > 24 {
		fatal("invalid schedule parameters")
	}
	weekdays, err := parseWeekdays(*days)
	if err != nil {
		fatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.Open(ctx, *databaseURL)
	if err != nil {
		fatal("db connection failed: " + err.Error())
	}
	defer pool.Close()

	doctors, err := resolveDoctors(ctx, pool, *doctorIDs)
	if err != nil {
		fatal(err.Error())
	}
	if len(doctors) == 0 {
		fatal("no doctors found; seed doctors first")
	}

	inserted := 0
	for _, doctorID := range doctors {
		n, err := seedDoctor(ctx, pool, doctorID, weekdays, *weeks, *startHour, *endHour)
		if err != nil {
			fatal(fmt.Sprintf("seeding doctor %s failed: %v", doctorID, err))
		}
		inserted += n
	}
	fmt.Printf("seeded %d slots for %d doctors\n", inserted, len(doctors))
}

// seedDoctor walks day by day from tomorrow and inserts one slot per hour on
// the configured weekdays. Existing slots are left alone; the unique
// (doctor_id, starts_at) constraint makes reruns idempotent.
func seedDoctor(ctx context.Context, pool *db.Pool, doctorID string, weekdays map[time.Weekday]bool, weeks, startHour, endHour int) (int, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	inserted := 0

	for offset := 1; offset <= weeks*7; offset++ {
		day := today.AddDate(0, 0, offset)
		if !weekdays[day.Weekday()] {
			continue
		}
		for hour := startHour; hour < endHour; hour++ {
			startsAt := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)
			tag, err := pool.Exec(ctx, `
				INSERT INTO slots (id, doctor_id, starts_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (doctor_id, starts_at) DO NOTHING
			`, uuid.NewString(), doctorID, startsAt)
			if err != nil {
				return inserted, err
			}
			inserted += int(tag.RowsAffected())
		}
	}
	return inserted, nil
}

func resolveDoctors(ctx context.Context, pool *db.Pool, raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		var ids []string
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}

	rows, err := pool.Query(ctx, `SELECT id FROM doctors ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func parseWeekdays(raw string) (map[time.Weekday]bool, error) {
	names := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	out := map[time.Weekday]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		day, ok := names[part]
		if !ok {
			return nil, fmt.Errorf("unknown weekday: %s", part)
		}
		out[day] = true
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no weekdays given")
	}
	return out, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
