package message

import (
	"fmt"
	"strings"
)

// Platform identifies a supported chat platform.
type Platform string

const (
	PlatformSlack    Platform = "slack"
	PlatformTeams    Platform = "teams"
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformWebex    Platform = "webex"
	PlatformWebChat  Platform = "webchat"
)

// Platforms lists every supported platform in a stable order.
func Platforms() []Platform {
	return []Platform{
		PlatformSlack,
		PlatformTeams,
		PlatformTelegram,
		PlatformWhatsApp,
		PlatformWebex,
		PlatformWebChat,
	}
}

// ParsePlatform maps a string onto a supported Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms() {
		if p == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unsupported platform %q", s)
}

// String returns the wire identifier of the platform.
func (p Platform) String() string { return string(p) }

// InferPlatform guesses the platform from an adapter name such as
// "slack-main" or "egress_telegram". Returns false when no platform token
// is present in the name.
func InferPlatform(adapterName string) (Platform, bool) {
	name := strings.ToLower(adapterName)
	for _, p := range Platforms() {
		if strings.Contains(name, string(p)) {
			return p, true
		}
	}
	return "", false
}
