package rules

import "time"

// MessageBefore is the total order on messages: (created_at, id) ascending,
// id breaking identical timestamps. Every consumer of history pages relies on
// this comparator agreeing with the repository's ORDER BY.
func MessageBefore(aCreated time.Time, aID int64, bCreated time.Time, bID int64) bool {
	if aCreated.Equal(bCreated) {
		return aID < bID
	}
	return aCreated.Before(bCreated)
}
