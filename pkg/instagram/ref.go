// Package instagram turns user-supplied profile identities into canonical
// profile references. All functions are pure and safe for concurrent use.
package instagram

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const profileBaseURL = "https://www.instagram.com/"

// ErrInvalidUsername is returned when an identity cannot be reduced to a valid handle.
var ErrInvalidUsername = errors.New("invalid instagram username")

// Instagram handles: letters, digits, dots and underscores, at most 30 characters.
var reUsername = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)

// Ref is a canonical profile reference.
type Ref struct {
	Username string
	URL      string
}

// Normalize accepts "@Name", "name", "instagram.com/name" or a full profile
// URL and returns the lower-cased handle with its canonical profile URL.
func Normalize(identity string) (Ref, error) {
	s := strings.TrimSpace(identity)
	if strings.Contains(strings.ToLower(s), "instagram.com") {
		s = handleFromURL(s)
	}
	s = strings.TrimPrefix(s, "@")
	s = strings.Trim(s, "/")
	s = strings.ToLower(s)

	if !reUsername.MatchString(s) {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidUsername, identity)
	}
	return Ref{Username: s, URL: ProfileURL(s)}, nil
}

// ProfileURL returns the canonical profile URL for an already normalized handle.
func ProfileURL(username string) string {
	return profileBaseURL + username + "/"
}

func handleFromURL(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	path := strings.Trim(u.Path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	return path
}
