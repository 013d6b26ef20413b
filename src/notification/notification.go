package notification

import (
	"log"
	"time"
)

// Persistent marks a notification that stays up until dismissed.
const Persistent time.Duration = 0

// Notifier is the narrow collaborator interface the capture pipeline talks
// to. Implementations must be fire-and-forget: Notify returns immediately
// and the core never waits on delivery or dismissal.
type Notifier interface {
	Notify(message string, duration time.Duration)
}

// Func adapts a plain function to the Notifier interface.
type Func func(message string, duration time.Duration)

func (f Func) Notify(message string, duration time.Duration) { f(message, duration) }

// Default returns the platform notifier: a transient popup on Windows, a
// log line elsewhere.
func Default() Notifier {
	return platformNotifier()
}

type logNotifier struct{}

func (logNotifier) Notify(message string, duration time.Duration) {
	log.Printf("notification: %s", truncate(message, 200))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
