package services

// Pagination defaults shared by every list endpoint
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// NormalizePage validates a skip/limit pair. A zero limit means the default;
// limits above MaxPageLimit are capped.
func NormalizePage(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, NewValidationFailed("skip must not be negative")
	}
	if limit < 0 {
		return 0, 0, NewValidationFailed("limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return skip, limit, nil
}
