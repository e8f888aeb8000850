package usecase

import (
	"path"
	"sort"
	"strings"
)

// CreationPolicy tells ResolveTarget what to do with a proposed file that has
// no counterpart of the same type in the project.
type CreationPolicy int

const (
	// DiscourageCreation drops files of a type the project does not have yet.
	DiscourageCreation CreationPolicy = iota
	// AllowCreation accepts them under the proposed name.
	AllowCreation
)

// preferredNames ranks conventional entry-point base names per extension,
// most preferred first.
var preferredNames = map[string][]string{
	".html": {"index", "app", "main"},
	".css":  {"styles", "style", "main", "app"},
	".js":   {"app", "main", "index"},
	".ts":   {"app", "main", "index"},
	".tsx":  {"app", "main", "index"},
	".jsx":  {"app", "main", "index"},
}

var clientDirs = map[string]struct{}{
	"frontend": {}, "client": {}, "public": {}, "web": {},
	"static": {}, "src": {}, "www": {}, "app": {},
}

const unranked = 1 << 20

// ResolveTarget maps a model-proposed path onto an existing project path.
// An exact match wins. Otherwise the best-ranked existing file of the same
// extension is chosen. With no such file the proposal is accepted verbatim
// under AllowCreation and dropped (ok=false) under DiscourageCreation.
func ResolveTarget(existing []string, proposed string, policy CreationPolicy) (string, bool) {
	for _, p := range existing {
		if p == proposed {
			return p, true
		}
	}

	ext := strings.ToLower(path.Ext(proposed))
	var same []string
	for _, p := range existing {
		if strings.ToLower(path.Ext(p)) == ext {
			same = append(same, p)
		}
	}
	if len(same) == 0 {
		if policy == AllowCreation {
			return proposed, true
		}
		return "", false
	}

	sort.SliceStable(same, func(i, j int) bool {
		return rankPath(same[i], ext) < rankPath(same[j], ext)
	})
	return same[0], true
}

func rankPath(p, ext string) int {
	base := strings.ToLower(path.Base(p))
	base = strings.TrimSuffix(base, path.Ext(base))

	idx := -1
	for i, name := range preferredNames[ext] {
		if name == base {
			idx = i
			break
		}
	}
	if idx < 0 {
		return unranked
	}
	score := idx * 2
	if underClientDir(p) {
		score--
	}
	return score
}

func underClientDir(p string) bool {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return false
	}
	for _, seg := range strings.Split(dir, "/") {
		if _, ok := clientDirs[strings.ToLower(seg)]; ok {
			return true
		}
	}
	return false
}
