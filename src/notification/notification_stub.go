//go:build !windows

package notification

func platformNotifier() Notifier {
	return logNotifier{}
}
