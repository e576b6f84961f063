package connectors

import "time"

// ConnectionStatus is a bus event snapshot of current listener status.
// Err is set only for failure transitions.
type ConnectionStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Target        string
	Timestamp     time.Time
}

// RawLine mirrors a single wire frame for diagnostic subscribers. Text is
// the frame body without its line terminator.
type RawLine struct {
	Text string
	Len  int
}

// FileEvent reports the outcome of loading a recorded data file. Err is set
// when the file could not be parsed at all; CorruptedPoints is non-zero when
// the file parsed but failed verification.
type FileEvent struct {
	Path            string
	Err             string
	CorruptedPoints int
	TotalPoints     int
	Timestamp       time.Time
}
