package session

import (
	"strings"

	"github.com/mssola/useragent"
)

const (
	unknownDevice  = "Unknown Device"
	unknownBrowser = "Unknown Browser"
)

// DeviceContext is the device metadata taken from the current request.
// Empty fields fall back to the previous session's values on rotation.
type DeviceContext struct {
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// inherit fills empty fields of d from prev.
func (d DeviceContext) inherit(prev Session) DeviceContext {
	if d.DeviceName == "" {
		d.DeviceName = prev.DeviceName
	}
	if d.IPAddress == "" {
		d.IPAddress = prev.IPAddress
	}
	if d.UserAgent == "" {
		d.UserAgent = prev.UserAgent
	}
	return d
}

// DeviceInfo is a display classification of a User-Agent string.
type DeviceInfo struct {
	DeviceName string
	Browser    string
	OS         string
	Mobile     bool
}

// InferDevice classifies a User-Agent header. It is a pure function.
func InferDevice(userAgent string) DeviceInfo {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return DeviceInfo{DeviceName: unknownDevice, Browser: unknownBrowser}
	}

	ua := useragent.New(userAgent)
	info := DeviceInfo{
		OS:     strings.TrimSpace(ua.OS()),
		Mobile: ua.Mobile(),
	}

	name, version := ua.Browser()
	switch {
	case ua.Bot():
		info.Browser = "Bot"
	case name == "":
		info.Browser = unknownBrowser
	case version == "":
		info.Browser = name
	default:
		info.Browser = name + " " + majorVersion(version)
	}

	platform := strings.TrimSpace(ua.Platform())
	host := info.OS
	if host == "" {
		host = platform
	}
	switch {
	case host == "" && name == "":
		info.DeviceName = unknownDevice
	case host == "":
		info.DeviceName = name
	case name == "":
		info.DeviceName = host
	default:
		info.DeviceName = name + " on " + host
	}
	return info
}

func majorVersion(v string) string {
	if i := strings.IndexByte(v, '.'); i > 0 {
		return v[:i]
	}
	return v
}
