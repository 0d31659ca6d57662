package obs

import "strings"

// CanonicalPath collapses resource identifiers in known routes so metric label
// cardinality stays bounded. Unknown shapes pass through unchanged.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, "/v1/participants/"); ok {
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		switch len(parts) {
		case 1:
			if parts[0] != "" && parts[0] != "me" {
				return "/v1/participants/:id"
			}
		case 2:
			if parts[0] != "me" && (parts[1] == "disable" || parts[1] == "enable") {
				return "/v1/participants/:id/" + parts[1]
			}
		}
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/v1/challenges/"); ok {
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		switch len(parts) {
		case 1:
			if parts[0] != "" {
				return "/v1/challenges/:id"
			}
		case 2:
			if parts[1] == "participants" || parts[1] == "register" {
				return "/v1/challenges/:id/" + parts[1]
			}
		case 4:
			if parts[1] == "participants" && (parts[3] == "approve" || parts[3] == "deny") {
				return "/v1/challenges/:id/participants/:pid/" + parts[3]
			}
		}
		return path
	}
	return path
}
