package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Appointment is one booked slot. The identifier is empty until the store
// allocates a push key during create; the record is then persisted under that
// same key with the identifier stamped in.
type Appointment struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// SelectedDate is the scheduled time in epoch milliseconds.
	SelectedDate int64 `json:"selectedDate"`
}

// Schedule returns the appointment's scheduled time.
func (a *Appointment) Schedule() time.Time {
	return time.UnixMilli(a.SelectedDate)
}

// DecodeCollection turns a store snapshot of the appointments subtree into a
// typed slice. A null snapshot is an empty collection. Shape mismatches fail
// rather than being silently coerced.
func DecodeCollection(raw json.RawMessage) ([]Appointment, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []Appointment{}, nil
	}
	var byKey map[string]Appointment
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(byKey))
	for key, a := range byKey {
		if a.ID == "" {
			// Tolerate an orphaned allocate-without-commit record by keying
			// it; everything else carries its own identifier.
			a.ID = key
		}
		out = append(out, a)
	}
	return out, nil
}

// SortBySchedule orders appointments by scheduled time ascending, the order
// the list screen shows.
func SortBySchedule(appointments []Appointment) {
	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].SelectedDate < appointments[j].SelectedDate
	})
}

// Path returns the store path of uid's appointment collection.
func Path(uid string) string { return "appointments/" + uid }

// RecordPath returns the store path of a single appointment.
func RecordPath(uid, id string) string { return "appointments/" + uid + "/" + id }
