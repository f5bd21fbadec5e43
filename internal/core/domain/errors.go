package domain

import "errors"

// ErrQuotaExhausted is returned when the daily call budget is used up. No
// further remote calls can succeed until it resets.
var ErrQuotaExhausted = errors.New("daily call quota exhausted")
