package hotkey

import (
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Listen registers a global hotkey combination ("Ctrl+Alt+S") and invokes the
// callback when every key of the combination is down. The callback only posts
// an event into the loop; the capture workflow runs elsewhere.
func Listen(combo string, callback func()) {
	keys := parseCombo(combo)

	type keyState struct {
		name     string
		rawcodes []uint16
		pressed  bool
	}

	var states []keyState
	for _, name := range keys {
		rawcodes := rawcodesFor(name)
		if len(rawcodes) == 0 {
			log.Printf("hotkey: cannot map key %q, combination may not work", name)
			continue
		}
		states = append(states, keyState{name: name, rawcodes: rawcodes})
	}
	if len(states) == 0 {
		log.Printf("hotkey: no valid keys in %q", combo)
		return
	}
	log.Printf("hotkey: listening for %s", combo)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("hotkey: panic in listener: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("hotkey: gohook.Start returned nil channel")
			return
		}

		var mu sync.Mutex
		matches := func(rawcode uint16, s *keyState) bool {
			for _, rc := range s.rawcodes {
				if rc == rawcode {
					return true
				}
			}
			return false
		}

		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				mu.Lock()
				for i := range states {
					if matches(ev.Rawcode, &states[i]) {
						states[i].pressed = true
					}
				}
				all := true
				for i := range states {
					if !states[i].pressed {
						all = false
						break
					}
				}
				if all {
					for i := range states {
						states[i].pressed = false
					}
					mu.Unlock()
					if callback != nil {
						callback()
					}
					continue
				}
				mu.Unlock()
			case gohook.KeyUp:
				mu.Lock()
				for i := range states {
					if matches(ev.Rawcode, &states[i]) {
						states[i].pressed = false
					}
				}
				mu.Unlock()
			}
		}
		log.Printf("hotkey: event channel closed")
	}()
}

// parseCombo splits "Ctrl+Alt+s" into normalized lowercase key names.
func parseCombo(combo string) []string {
	parts := strings.Split(strings.ToLower(combo), "+")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch part {
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

var specialRawcodes = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// rawcodesFor maps a key name to its Windows virtual-key rawcodes. Modifiers
// return both left and right variants.
func rawcodesFor(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))

	if rc, ok := specialRawcodes[name]; ok {
		return rc
	}
	if len(name) == 1 {
		c := name[0]
		if c >= 'a' && c <= 'z' {
			return []uint16{uint16(c - 'a' + 65)} // VK_A..VK_Z
		}
		if c >= '0' && c <= '9' {
			return []uint16{uint16(c - '0' + 48)} // VK_0..VK_9
		}
	}
	// Function keys F1..F24 map to VK codes 112..135.
	if strings.HasPrefix(name, "f") && len(name) > 1 {
		n := 0
		for _, r := range name[1:] {
			if r < '0' || r > '9' {
				n = 0
				break
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)}
		}
	}

	log.Printf("hotkey: unknown key name %q", name)
	return nil
}
