package abuse

import "errors"

// ErrStoreContention is returned when an optimistic Redis transaction keeps
// losing the race for a key.
var ErrStoreContention = errors.New("abuse: store contention, retries exhausted")
