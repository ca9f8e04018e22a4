package domain

import "errors"

// ErrSessionNotFound is returned when a sender has no stored session.
var ErrSessionNotFound = errors.New("session not found")

// ErrNodeNotFound is returned when a session references a node ID that is
// not part of the loaded decision tree (e.g. after a tree redeploy).
var ErrNodeNotFound = errors.New("node not found")
