package availability

import "errors"

// ErrRecurringNotFound is returned when a series id is not in the snapshot.
var ErrRecurringNotFound = errors.New("recurring booking not found")

// AddException returns exceptions with date appended. The input slice is not modified.
// added is false when date was already present.
func AddException(exceptions []string, date string) (updated []string, added bool) {
	for _, d := range exceptions {
		if d == date {
			return append([]string(nil), exceptions...), false
		}
	}
	updated = make([]string, 0, len(exceptions)+1)
	updated = append(updated, exceptions...)
	return append(updated, date), true
}

// RemoveException returns exceptions without date. The input slice is not modified.
func RemoveException(exceptions []string, date string) (updated []string, removed bool) {
	updated = make([]string, 0, len(exceptions))
	for _, d := range exceptions {
		if d == date {
			removed = true
			continue
		}
		updated = append(updated, d)
	}
	return updated, removed
}

// AddException computes the exceptions set of series recurringID with date added.
func (s Snapshot) AddException(recurringID, date string) ([]string, bool, error) {
	r, ok := s.RecurringByID(recurringID)
	if !ok {
		return nil, false, ErrRecurringNotFound
	}
	updated, added := AddException(r.Exceptions, date)
	return updated, added, nil
}

// RemoveException computes the exceptions set of series recurringID with date removed.
func (s Snapshot) RemoveException(recurringID, date string) ([]string, bool, error) {
	r, ok := s.RecurringByID(recurringID)
	if !ok {
		return nil, false, ErrRecurringNotFound
	}
	updated, removed := RemoveException(r.Exceptions, date)
	return updated, removed, nil
}
