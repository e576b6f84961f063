// Package notifications delivers desktop alerts for connection and data
// file events.
package notifications

// Payload is one alert to show the user.
type Payload struct {
	Title   string
	Content string
}

// Sender delivers alerts through a platform backend.
type Sender interface {
	Send(payload Payload)
}
