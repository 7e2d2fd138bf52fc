package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when creating a record whose key already exists.
var ErrDuplicate = errors.New("record already exists")

// ErrAlreadyVoted is returned by RecordVote when the user already has a
// vote for the election.
var ErrAlreadyVoted = errors.New("user already voted in election")
