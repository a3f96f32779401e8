package watcher

import (
	"regexp"
	"strings"
)

// knownBridges lists USB-to-serial bridge chip families and vendor ids
// commonly found in microcontroller-based card readers. Matching is a
// heuristic: false positives and negatives are tolerated downstream.
var knownBridges = []string{
	// Chip family names as they appear in device captions.
	"cp210", "ch340", "ch341", "ft232", "ftdi", "pl2303",
	"arduino", "usb-serial", "usb serial",
	// Vendor ids: Silicon Labs, WCH, FTDI, Prolific, Arduino.
	"vid_10c4", "vid_1a86", "vid_0403", "vid_067b", "vid_2341",
}

// serialIndicators mark a raw device notification as plausibly denoting
// a serial-capable device. Anything else is dropped silently.
var serialIndicators = []string{"com", "serial", "tty"}

var comPortRe = regexp.MustCompile(`COM[0-9]+`)

// Classify reports whether the descriptor heuristically matches a known
// reader-class USB-to-serial bridge. Pure function over the static
// bridge table; case-insensitive.
func Classify(d DeviceDescriptor) bool {
	s := strings.ToLower(d.Name + " " + d.Caption + " " + d.PnPID)
	for _, ind := range knownBridges {
		if strings.Contains(s, ind) {
			return true
		}
	}
	return false
}

// PlausiblySerial reports whether the descriptor looks like a
// serial-capable device at all.
func PlausiblySerial(d DeviceDescriptor) bool {
	s := strings.ToLower(d.Port + " " + d.Name + " " + d.Caption)
	for _, ind := range serialIndicators {
		if strings.Contains(s, ind) {
			return true
		}
	}
	return false
}

// PortFromCaption extracts a COM<digits> token from a device name or
// caption. Returns "" when absent; detach correlation only needs to
// know that something serial left, not precisely which port.
func PortFromCaption(s string) string {
	return comPortRe.FindString(s)
}
