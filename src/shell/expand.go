package shell

/// ExpandVars runs the shell's `$NAME` substitution over each fully
/// parsed argv entry: wherever `$` is followed by one or more
/// `[A-Za-z0-9_]` characters, that run is replaced by getvar's result,
/// and the scan continues through the rest of the token, so every
/// `$NAME` in it is expanded in one left-to-right pass.
func ExpandVars(argv []string, getvar func(name string) string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = expandOne(a, getvar)
	}
	return out
}

func expandOne(s string, getvar func(string) string) string {
	out := make([]byte, 0, len(s))
	i, n := 0, len(s)
	for i < n {
		if s[i] != '$' || i+1 >= n || !isNameByte(s[i+1]) {
			out = append(out, s[i])
			i++
			continue
		}
		j := i + 1
		for j < n && isNameByte(s[j]) {
			j++
		}
		name := s[i+1 : j]
		out = append(out, getvar(name)...)
		i = j
	}
	return string(out)
}

func isNameByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
