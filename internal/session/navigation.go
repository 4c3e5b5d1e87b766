package session

import (
	"net/url"
	"strings"

	"github.com/feresegna/bus-portal/internal/models"
)

// Paths other pages link to directly.
const (
	PathHome = "/"
	PathAuth = "/auth"
)

// Navigation is a request to move the client to another page. The zero value
// requests nothing. Operations return it instead of navigating so the
// presentation layer decides how to apply it.
type Navigation struct {
	Path string `json:"path,omitempty"`
}

// NoNavigation leaves the client where it is.
var NoNavigation = Navigation{}

// NavigateTo requests navigation to path.
func NavigateTo(path string) Navigation {
	return Navigation{Path: path}
}

// Requested reports whether the intent asks for a page change.
func (n Navigation) Requested() bool {
	return n.Path != ""
}

// LoginRedirect sends an unauthenticated client to the login page, carrying the
// page it tried to reach as the return target.
func LoginRedirect(returnTo string) Navigation {
	return NavigateTo(PathAuth + "?mode=login&redirect=" + encodeURIComponent(returnTo))
}

// dashboardFor is the post-login target: staff roles land on their dashboard,
// passengers on the home page.
func dashboardFor(role models.Role) Navigation {
	if path, ok := role.Dashboard(); ok {
		return NavigateTo(path)
	}
	return NavigateTo(PathHome)
}

// landingRedirect is applied when an existing session is restored on the home
// or auth page. Passengers stay where they are.
func landingRedirect(role models.Role, currentPath string) Navigation {
	if currentPath != PathHome && currentPath != PathAuth {
		return NoNavigation
	}
	if path, ok := role.Dashboard(); ok {
		return NavigateTo(path)
	}
	return NoNavigation
}

var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent matches the browser function of the same name, which the
// login page uses to decode the redirect target.
func encodeURIComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
