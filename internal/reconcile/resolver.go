package reconcile

import "time"

// Versioned is an entity carrying a last-writer-wins timestamp.
type Versioned interface {
	LastModifiedAt() time.Time
}

// Verdict is the decision of Resolve.
type Verdict[T Versioned] struct {
	Accepted bool
	// CommitTime is the last_modified to store on acceptance.
	CommitTime time.Time
	// Current is the server entity the client timestamp was compared against.
	Current T
}

// Resolve applies last-writer-wins: the client wins when its asserted
// timestamp is not older than the server's. The commit time comes from the
// server clock, never from the client, and never precedes the server's
// current timestamp.
func Resolve[T Versioned](clock Clock, client time.Time, current T) Verdict[T] {
	server := current.LastModifiedAt()
	if client.Before(server) {
		return Verdict[T]{Current: current}
	}
	commit := clock.Now()
	if commit.Before(server) {
		commit = server
	}
	return Verdict[T]{Accepted: true, CommitTime: commit, Current: current}
}
