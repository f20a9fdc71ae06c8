// Package scm resolves locations relative to where an entity's source lives.
package scm

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// StripLocationType removes a location type marker such as "url:" from a
// location reference. Bare URLs are returned unchanged.
func StripLocationType(location string) string {
	location = strings.TrimSpace(location)
	kind, target, ok := strings.Cut(location, ":")
	if !ok || kind == "" || strings.HasPrefix(target, "//") {
		return location
	}
	return target
}

// GitHubLocation is a parsed github.com tree or blob URL
type GitHubLocation struct {
	Host  string
	Owner string
	Repo  string
	Ref   string
	Path  string
}

// ParseGitHubURL parses https://github.com/<owner>/<repo>[/(tree|blob)/<ref>[/<path>]].
// A ref containing "/" must be written with the slash escaped as %2F, e.g.
// tree/release%2F1.x/deploy; otherwise the first segment is taken as the ref.
func ParseGitHubURL(raw string) (GitHubLocation, bool) {
	u, err := url.Parse(raw)
	if err != nil || !isGitHubHost(u.Host) {
		return GitHubLocation{}, false
	}

	parts := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, part := range parts {
		if parts[i], err = url.PathUnescape(part); err != nil {
			return GitHubLocation{}, false
		}
	}
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return GitHubLocation{}, false
	}

	loc := GitHubLocation{
		Host:  u.Host,
		Owner: parts[0],
		Repo:  strings.TrimSuffix(parts[1], ".git"),
	}
	if len(parts) >= 4 && (parts[2] == "tree" || parts[2] == "blob") {
		loc.Ref = parts[3]
		loc.Path = strings.Join(parts[4:], "/")
	}
	return loc, true
}

// String renders the location as a blob URL when it names a path, or a tree URL otherwise
func (g GitHubLocation) String() string {
	ref := strings.ReplaceAll(g.Ref, "/", "%2F")
	if ref == "" {
		ref = "HEAD"
	}
	if g.Path == "" {
		return fmt.Sprintf("https://%s/%s/%s/tree/%s/", g.Host, g.Owner, g.Repo, ref)
	}
	return fmt.Sprintf("https://%s/%s/%s/blob/%s/%s", g.Host, g.Owner, g.Repo, ref, g.Path)
}

func isGitHubHost(host string) bool {
	host = strings.ToLower(host)
	return host == "github.com" || host == "www.github.com"
}

// ResolveURL resolves relative against base. Absolute URLs are returned as-is.
// Base is treated as a directory. For GitHub bases the result keeps the
// repository ref, and a leading "/" on relative resolves from the repository root.
func ResolveURL(relative, base string) (string, error) {
	if u, err := url.Parse(relative); err == nil && u.IsAbs() {
		return relative, nil
	}

	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	if loc, ok := ParseGitHubURL(base); ok {
		dir := loc.Path
		if strings.HasPrefix(relative, "/") {
			dir = ""
		}
		resolved := path.Clean(path.Join("/", dir, relative))
		loc.Path = strings.TrimPrefix(resolved, "/")
		return loc.String(), nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base location %q: %w", base, err)
	}
	if !baseURL.IsAbs() {
		return "", fmt.Errorf("base location %q is not an absolute url", base)
	}

	ref, err := url.Parse(relative)
	if err != nil {
		return "", fmt.Errorf("invalid location %q: %w", relative, err)
	}

	return baseURL.ResolveReference(ref).String(), nil
}
