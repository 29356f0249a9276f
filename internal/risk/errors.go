package risk

import "errors"

// ErrOpen 熔断器已打开
var ErrOpen = errors.New("circuit breaker is open")
