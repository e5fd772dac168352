// Package session owns the authenticated identity of the client: login,
// logout, credential retention across restarts and the current-user
// snapshot every other component reads.
//
// Every change of identity increments the session epoch. Components that
// start network work capture the epoch first and drop results that arrive
// after it moved, so data fetched for one user never lands in a view that
// belongs to the next.
package session
