// Package device maps screen dimensions and an OS family to a coarse
// device category for analytics reporting.
package device

import (
	"strconv"
	"strings"
)

// Device categories.
const (
	Desktop = "desktop"
	Laptop  = "laptop"
	Tablet  = "tablet"
	Mobile  = "mobile"
)

// Screen width thresholds, in CSS pixels.
const (
	desktopScreenWidth = 1920
	laptopScreenWidth  = 1024
	mobileScreenWidth  = 479
)

var desktopOS = map[string]struct{}{
	"BeOS":       {},
	"Chrome OS":  {},
	"ChromeOS":   {},
	"FreeBSD":    {},
	"Linux":      {},
	"Mac OS":     {},
	"macOS":      {},
	"Open BSD":   {},
	"OpenBSD":    {},
	"OS/2":       {},
	"QNX":        {},
	"Sun OS":     {},
	"Windows":    {},
	"Windows 10": {},
}

var mobileOS = map[string]struct{}{
	"Amazon OS":      {},
	"Android":        {},
	"Android OS":     {},
	"BlackBerry OS":  {},
	"iOS":            {},
	"Windows Mobile": {},
	"Windows Phone":  {},
}

// Classify returns the device category for a "WxH" screen string and an
// OS name. An empty screen yields an empty category; classification is
// never attempted without dimensions.
//
// Known desktop OSes split into desktop and laptop on screen width, with
// Chrome OS always counted as a laptop. Known mobile OSes split into
// tablet and mobile, with Amazon OS (Kindle) always a tablet. Unknown OS
// families fall back to width alone.
func Classify(screen, os string) string {
	if screen == "" {
		return ""
	}
	width, _, _ := strings.Cut(screen, "x")
	w, err := strconv.Atoi(width)
	if err != nil {
		return ""
	}

	if _, ok := desktopOS[os]; ok {
		if os == "Chrome OS" || os == "ChromeOS" || w < desktopScreenWidth {
			return Laptop
		}
		return Desktop
	}

	if _, ok := mobileOS[os]; ok {
		if os == "Amazon OS" || w > mobileScreenWidth {
			return Tablet
		}
		return Mobile
	}

	switch {
	case w >= desktopScreenWidth:
		return Desktop
	case w >= laptopScreenWidth:
		return Laptop
	case w >= mobileScreenWidth:
		return Tablet
	default:
		return Mobile
	}
}
