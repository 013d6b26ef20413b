//go:build windows

package notification

import (
	"log"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
)

func platformNotifier() Notifier {
	return windowsNotifier{}
}

// windowsNotifier shows a small borderless topmost popup near the bottom
// right of the primary display. The popup runs on its own goroutine with its
// own message loop; Notify never blocks the caller.
type windowsNotifier struct{}

func (windowsNotifier) Notify(message string, duration time.Duration) {
	go func() {
		if err := showPopup(truncate(message, 200), duration); err != nil {
			log.Printf("notification: popup failed, falling back to log: %v", err)
			logNotifier{}.Notify(message, duration)
		}
	}()
}

const (
	popupWidth  = 360
	popupHeight = 84
	popupMargin = 24

	closeTimerID = 1
)

var popupText string

func showPopup(text string, duration time.Duration) error {
	popupText = text

	className := syscall.StringToUTF16Ptr("CaptureNotifyPopup")
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		LpfnWndProc:   syscall.NewCallback(popupWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_ARROW)),
		HbrBackground: win.HBRUSH(win.COLOR_INFOBK + 1),
		LpszClassName: className,
	}
	win.RegisterClassEx(&wndClass) // already-registered is fine

	screenW := win.GetSystemMetrics(win.SM_CXSCREEN)
	screenH := win.GetSystemMetrics(win.SM_CYSCREEN)

	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW|win.WS_EX_NOACTIVATE,
		className,
		syscall.StringToUTF16Ptr("Capture"),
		win.WS_POPUP|win.WS_VISIBLE|win.WS_BORDER,
		screenW-popupWidth-popupMargin, screenH-popupHeight-popupMargin*2,
		popupWidth, popupHeight,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return syscall.GetLastError()
	}

	if duration > Persistent {
		win.SetTimer(hwnd, closeTimerID, uint32(duration.Milliseconds()), 0)
	}
	win.UpdateWindow(hwnd)

	var msg win.MSG
	for win.GetMessage(&msg, 0, 0, 0) > 0 {
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
	return nil
}

func popupWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		win.SetBkMode(hdc, win.TRANSPARENT)
		rect := win.RECT{Left: 12, Top: 8, Right: popupWidth - 12, Bottom: popupHeight - 8}
		utf16, _ := syscall.UTF16FromString(popupText)
		win.DrawTextEx(hdc, &utf16[0], int32(len(utf16)-1), &rect,
			win.DT_LEFT|win.DT_WORDBREAK|win.DT_END_ELLIPSIS, nil)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_LBUTTONDOWN, win.WM_RBUTTONDOWN:
		// Click dismisses, persistent or not.
		win.DestroyWindow(hwnd)
		return 0

	case win.WM_TIMER:
		if wParam == closeTimerID {
			win.KillTimer(hwnd, closeTimerID)
			win.DestroyWindow(hwnd)
		}
		return 0

	case win.WM_DESTROY:
		win.PostQuitMessage(0)
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}
