package rules

const (
	// MaxMessageLen bounds a chat message after trimming.
	MaxMessageLen = 2000

	// MaxRequestMessageLen bounds the optional opener on a match request.
	MaxRequestMessageLen = 500

	DefaultHistoryPage = 50
	MaxHistoryPage     = 100

	DefaultListLimit = 100
)

func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryPage
	}
	if limit > MaxHistoryPage {
		return MaxHistoryPage
	}
	return limit
}
