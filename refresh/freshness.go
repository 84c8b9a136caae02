package refresh

import "time"

// Expired reports whether the session's id token should be considered stale
// at the given instant. A missing or zero expiration always reads as expired;
// the check fails open toward requiring a refresh, never toward skipping it.
//
// Callers take a single wall-clock sample per decision and thread it through
// every comparison so one request cannot reach contradictory verdicts.
func Expired(sess Session, now time.Time) bool {
	return intValue(sess, KeyIDTokenExpiration) <= now.Unix()
}
