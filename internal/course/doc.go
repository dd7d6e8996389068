// Package course holds the domain model shared by the update pipeline:
// sections and snapshots as returned by the enrollment portal, subscriber
// preferences, and the tracked items derived from them.
//
// # Data keys
//
// Whole-course tracking and specific-section tracking of the same course are
// cached and diffed independently. DataKey returns "COURSE" for the former
// and "COURSE:sections" for the latter.
package course
