// Package state holds per-user conversation sessions: the current flow and
// step, the scratch values collected so far and the messages whose buttons
// are still live.
package state
