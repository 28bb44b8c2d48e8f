// Package bpath canonicalizes filesystem paths the way the user
// library's pathcat does: a base path plus a relative path, with "."
// and ".." resolved segment by segment, collapsing to an absolute,
// slash-separated form.
package bpath

import "strings"

/// Canonicalize resolves rel against base, the way chdir/getcwd
/// resolve a shell's "cd ../foo" against its current working
/// directory. base must already be in canonical form; rel may be
/// absolute (in which case base is ignored) or relative.
func Canonicalize(base, rel string) string {
	temp := base
	if temp == "" {
		temp = "/"
	}
	if rel != "" && rel[0] == '/' {
		temp = "/"
	}

	for _, token := range strings.Split(rel, "/") {
		switch token {
		case "", ".":
			continue
		case "..":
			if temp == "/" {
				continue
			}
			temp = strings.TrimSuffix(temp, "/")
			if i := strings.LastIndexByte(temp, '/'); i >= 0 {
				temp = temp[:i]
			}
			if temp == "" {
				temp = "/"
			}
		default:
			if temp != "/" {
				temp += "/"
			}
			temp += token
		}
	}
	return temp
}
