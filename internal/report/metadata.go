package report

import (
	"net/url"
	"strings"
)

const (
	defaultProjectName = "SonarQube project"
	defaultFilePath    = "Unknown file path"
)

// resolveProjectName takes the first breadcrumb, else the project part of the
// id query parameter.
func resolveProjectName(breadcrumbs []string, u *url.URL) string {
	if len(breadcrumbs) > 0 {
		return breadcrumbs[0]
	}
	if id := decodeComponent(u.Query().Get("id")); id != "" {
		project, _, _ := strings.Cut(id, ":")
		if project != "" {
			return project
		}
	}
	return defaultProjectName
}

// resolveFilePath joins the breadcrumbs after the project, else derives the
// path from the query string.
func resolveFilePath(breadcrumbs []string, u *url.URL) string {
	if len(breadcrumbs) > 1 {
		return strings.Join(breadcrumbs[1:], "/")
	}
	if path := filePathFromQuery(u); path != "" {
		return path
	}
	return defaultFilePath
}

// filePathFromQuery reads the last colon segment of selected, else whatever
// follows the first colon of id.
func filePathFromQuery(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if selected := q.Get("selected"); selected != "" {
		decoded := decodeComponent(selected)
		return decoded[strings.LastIndex(decoded, ":")+1:]
	}
	if id := decodeComponent(q.Get("id")); id != "" {
		if _, rest, ok := strings.Cut(id, ":"); ok {
			return rest
		}
	}
	return ""
}

// debugLabel names a page in log entries.
func debugLabel(u *url.URL) string {
	if path := filePathFromQuery(u); path != "" {
		return path
	}
	if u == nil {
		return ""
	}
	return u.Path
}

// decodeComponent undoes a second round of percent-encoding, which the
// viewer applies to component keys. Malformed input is returned as-is.
func decodeComponent(value string) string {
	decoded, err := url.PathUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}
