//go:build windows

package overlay

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"screen-capture-upload/src/screenshot"
)

// The win32 overlay is modal and driven by a thread-bound message loop, so
// one selection runs at a time and the window procedure reads package state.
var (
	overlayMu    sync.Mutex
	overlayState struct {
		machine     *Machine
		hwnd        win.HWND
		backdrop    *image.RGBA // nil when layered transparency is available
		crossCursor win.HCURSOR
		done        chan struct{}
		onConfigure func()
		transparent bool
	}
)

const (
	overlayIdleAlpha = 60
	overlayDragAlpha = 120

	stillBoxColor  = win.COLORREF(0x00D47800) // BGR: the blue used for still captures
	recordBoxColor = win.COLORREF(0x002020CC) // BGR: red for recordings
)

type winSelector struct {
	opts Options
}

func newPlatformSelector(opts Options) Selector {
	return &winSelector{opts: opts}
}

// Select runs the modal overlay spanning the full virtual screen and blocks
// until the user completes or cancels the drag.
func (s *winSelector) Select(ctx context.Context) (Selection, bool, error) {
	overlayMu.Lock()
	defer overlayMu.Unlock()

	virtual, err := screenshot.VirtualBounds()
	if err != nil {
		return Selection{}, false, fmt.Errorf("failed to resolve virtual screen: %w", err)
	}
	origin := Point{X: virtual.Min.X, Y: virtual.Min.Y}

	overlayState.machine = NewMachine(origin)
	overlayState.done = make(chan struct{}, 1)
	overlayState.onConfigure = s.opts.OnConfigure
	overlayState.transparent = s.opts.Capabilities.WindowTransparency
	overlayState.backdrop = nil

	if !overlayState.transparent {
		// No layered windows: paint a frozen screenshot of the desktop so
		// the user still sees what they are selecting.
		img, err := screenshot.Grab(screenshot.Region{
			X: virtual.Min.X, Y: virtual.Min.Y,
			Width: virtual.Dx(), Height: virtual.Dy(),
		})
		if err != nil {
			return Selection{}, false, fmt.Errorf("failed to capture overlay backdrop: %w", err)
		}
		overlayState.backdrop = img
	}

	if overlayState.crossCursor == 0 {
		overlayState.crossCursor = win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS))
	}

	classNameStr := fmt.Sprintf("CaptureOverlay_%d", time.Now().UnixNano())
	className := syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(overlayWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       overlayState.crossCursor,
		HbrBackground: 0,
		LpszClassName: className,
	}
	if win.RegisterClassEx(&wndClass) == 0 {
		return Selection{}, false, fmt.Errorf("failed to register overlay window class")
	}
	defer win.UnregisterClass(className)

	exStyle := uint32(win.WS_EX_TOPMOST | win.WS_EX_TOOLWINDOW)
	if overlayState.transparent {
		exStyle |= win.WS_EX_LAYERED
	}
	hwnd := win.CreateWindowEx(
		exStyle,
		className,
		syscall.StringToUTF16Ptr("Select region - left drag captures, right drag records, ESC cancels"),
		win.WS_POPUP|win.WS_VISIBLE,
		int32(virtual.Min.X), int32(virtual.Min.Y),
		int32(virtual.Dx()), int32(virtual.Dy()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return Selection{}, false, fmt.Errorf("failed to create overlay window")
	}
	overlayState.hwnd = hwnd
	defer func() {
		win.DestroyWindow(hwnd)
		overlayState.hwnd = 0
		overlayState.backdrop = nil
	}()

	if overlayState.transparent {
		// Nearly invisible while idle; the drag handler raises the alpha so
		// the selection box becomes visible.
		win.SetLayeredWindowAttributes(hwnd, 0, overlayIdleAlpha, win.LWA_ALPHA)
	}

	win.ShowWindow(hwnd, win.SW_SHOW)
	if s.opts.Capabilities.FocusStealing {
		procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
		win.SetForegroundWindow(hwnd)
		win.BringWindowToTop(hwnd)
		win.SetFocus(hwnd)
	}
	win.UpdateWindow(hwnd)

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		select {
		case <-ctx.Done():
			return Selection{}, false, ctx.Err()
		case <-overlayState.done:
			if sel, ok := overlayState.machine.Result(); ok {
				log.Printf("overlay: selection %+v gesture=%s", sel.Region, sel.Gesture)
				return sel, false, nil
			}
			log.Printf("overlay: selection cancelled")
			return Selection{}, true, nil
		default:
		}
	}
	return Selection{}, true, nil
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	m := overlayState.machine
	if m == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_LBUTTONDOWN, win.WM_RBUTTONDOWN:
		button := ButtonPrimary
		if msg == win.WM_RBUTTONDOWN {
			button = ButtonSecondary
		}
		win.SetCapture(hwnd)
		m.PointerDown(pointFromLParam(lParam), button)
		if overlayState.transparent {
			win.SetLayeredWindowAttributes(hwnd, 0, overlayDragAlpha, win.LWA_ALPHA)
		}
		win.InvalidateRect(hwnd, nil, false)
		win.UpdateWindow(hwnd)
		return 0

	case win.WM_MOUSEMOVE:
		if _, active := m.PointerMove(pointFromLParam(lParam)); active {
			win.InvalidateRect(hwnd, nil, false)
			win.UpdateWindow(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP, win.WM_RBUTTONUP:
		if !m.Dragging() {
			return 0
		}
		win.ReleaseCapture()
		m.PointerUp(pointFromLParam(lParam))
		if m.Done() {
			overlayState.done <- struct{}{}
		} else {
			// Degenerate drag was discarded; back to the idle overlay.
			if overlayState.transparent {
				win.SetLayeredWindowAttributes(hwnd, 0, overlayIdleAlpha, win.LWA_ALPHA)
			}
			win.InvalidateRect(hwnd, nil, false)
			win.UpdateWindow(hwnd)
		}
		return 0

	case win.WM_KEYDOWN:
		switch wParam {
		case win.VK_ESCAPE:
			m.Escape()
			overlayState.done <- struct{}{}
		case win.VK_F1:
			if m.Configure() {
				suspendForConfiguration(hwnd)
			}
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		if overlayState.backdrop != nil {
			drawBackdrop(hdc, overlayState.backdrop)
		}
		drawHints(hdc)
		if box, dragging := m.Box(); dragging {
			drawSelectionBox(hdc, box, m.DragButton())
		}
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_NCHITTEST:
		// Every point is client area so the overlay receives all pointer
		// input while visible.
		return uintptr(win.HTCLIENT)

	case win.WM_DESTROY:
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

// suspendForConfiguration hides the overlay, hands control to the external
// configuration surface, then resumes the selection cleanly.
func suspendForConfiguration(hwnd win.HWND) {
	win.ShowWindow(hwnd, win.SW_HIDE)
	if overlayState.onConfigure != nil {
		overlayState.onConfigure()
	}
	overlayState.machine.Resume()
	win.ShowWindow(hwnd, win.SW_SHOW)
	win.UpdateWindow(hwnd)
}

func pointFromLParam(lParam uintptr) Point {
	return Point{
		X: int(int16(win.LOWORD(uint32(lParam)))),
		Y: int(int16(win.HIWORD(uint32(lParam)))),
	}
}

func drawSelectionBox(hdc win.HDC, box screenshot.Region, button Button) {
	gdi32 := syscall.NewLazyDLL("gdi32.dll")
	createPen := gdi32.NewProc("CreatePen")
	rectangle := gdi32.NewProc("Rectangle")

	color := stillBoxColor
	if button == ButtonSecondary {
		color = recordBoxColor
	}

	pen, _, _ := createPen.Call(0, 3, uintptr(color))
	brush := win.CreateSolidBrush(color)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.HGDIOBJ(brush))

	rectangle.Call(uintptr(hdc),
		uintptr(int32(box.X)), uintptr(int32(box.Y)),
		uintptr(int32(box.X+box.Width)), uintptr(int32(box.Y+box.Height)))

	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
	win.DeleteObject(win.HGDIOBJ(brush))
}

func drawHints(hdc win.HDC) {
	line1 := "ESC cancel   F1 settings"
	line2 := "Left drag: screenshot   Right drag: recording"

	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(0x00FFFF))
	win.TextOut(hdc, 16, 16, syscall.StringToUTF16Ptr(line1), int32(len(line1)))
	win.TextOut(hdc, 16, 38, syscall.StringToUTF16Ptr(line2), int32(len(line2)))
}

// drawBackdrop paints the frozen desktop screenshot used when layered
// transparency is unavailable.
func drawBackdrop(hdc win.HDC, img *image.RGBA) {
	memDC := win.CreateCompatibleDC(hdc)
	defer win.DeleteDC(memDC)

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	bitmapInfo := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // top-down
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}

	var pBits unsafe.Pointer
	hBitmap := win.CreateDIBSection(memDC, &bitmapInfo.BmiHeader, win.DIB_RGB_COLORS, &pBits, 0, 0)
	if hBitmap == 0 {
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))

	oldBitmap := win.SelectObject(memDC, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(memDC, oldBitmap)

	stride := (((int32(width)*32 + 31) &^ 31) / 8)
	for y := 0; y < height; y++ {
		rowPtr := (*[1 << 29]byte)(unsafe.Pointer(uintptr(pBits) + uintptr(y)*uintptr(stride)))
		src := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			o := x * 4
			rowPtr[o] = src[o+2]   // B
			rowPtr[o+1] = src[o+1] // G
			rowPtr[o+2] = src[o]   // R
			rowPtr[o+3] = src[o+3] // A
		}
	}

	win.BitBlt(hdc, 0, 0, int32(width), int32(height), memDC, 0, 0, win.SRCCOPY)
}

var (
	user32DLL                    = syscall.NewLazyDLL("user32.dll")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")
)
