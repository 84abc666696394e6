package services

import "time"

// SetClock pins the clock used for invite expiry decisions.
func SetClock(now func() time.Time, access *AccessService, invites *InviteService) {
	access.now = now
	invites.now = now
}
