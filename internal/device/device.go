// Package device derives a display name, a coarse classification and a
// fingerprint from a login request's User-Agent and client IP.
//
// The fingerprint is a UX hint for "is this the same browser as last time".
// It is trivially spoofable and must never be used as an authorization factor.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/mssola/useragent"
)

const unknown = "Unknown"

// strictMobile is the policy signal for the mobile login restriction. It is
// deliberately broader than the classifier: any iPad or webOS device counts.
var strictMobile = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// Info is the classified view of a client.
type Info struct {
	Fingerprint string
	DeviceName  string
	BrowserName string
	OSName      string
	IsMobile    bool
	IsTablet    bool
	IsDesktop   bool
}

// Fingerprint returns hex(sha256(userAgent + ip)). Either part may be empty.
func Fingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + ip))
	return hex.EncodeToString(sum[:])
}

// Resolve classifies the client. It never fails: unparseable input yields
// "Unknown" names and a desktop classification. Derived names are always
// valid UTF-8; the fingerprint is taken over the raw bytes.
func Resolve(userAgent, ip string) Info {
	raw := userAgent
	userAgent = Clean(userAgent)
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	browser = orUnknown(browser)
	osName := orUnknown(ua.OSInfo().Name)

	tablet := isTablet(userAgent)
	mobile := ua.Mobile() || strings.Contains(userAgent, "Mobile")

	return Info{
		Fingerprint: Fingerprint(raw, ip),
		DeviceName:  strings.TrimSpace(osName + " " + browser),
		BrowserName: browser,
		OSName:      osName,
		IsMobile:    mobile,
		IsTablet:    tablet,
		IsDesktop:   !mobile && !tablet,
	}
}

// IsMobileUserAgent is the strict match used by the login policy.
func IsMobileUserAgent(userAgent string) bool {
	return strictMobile.MatchString(userAgent)
}

// Matches reports whether two fingerprints identify the same device.
func Matches(a, b string) bool {
	return a != "" && a == b
}

func isTablet(userAgent string) bool {
	switch {
	case strings.Contains(userAgent, "iPad"), strings.Contains(userAgent, "Tablet"):
		return true
	case strings.Contains(userAgent, "Android") && !strings.Contains(userAgent, "Mobile"):
		return true
	default:
		return false
	}
}

// Clean replaces invalid UTF-8 in client-supplied header text so it can be
// stored and logged.
func Clean(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func orUnknown(s string) string {
	s = strings.TrimSpace(Clean(s))
	if s == "" {
		return unknown
	}
	return s
}
