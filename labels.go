package stats

import (
	"path/filepath"
	"strconv"

	"github.com/lyft/sststats/internal/tags"
)

// A Label is a single name/value pair of a LabelSet.
type Label = tags.Tag

// A LabelSet is an ordered list of labels. The names of a LabelSet form the
// label schema of a metric and their order is significant.
type LabelSet = tags.TagSet

const (
	// AbsPathLabel is the name of the label holding the full directory path.
	AbsPathLabel = "dir_abs_path"
	// DirLabelPrefix prefixes the indexed labels holding one path segment
	// each, innermost first: dir_0, dir_1, ...
	DirLabelPrefix = "dir_"
)

// PathLabels returns the labels describing the filesystem path p: the
// absolute path under AbsPathLabel followed by one indexed label per path
// segment, innermost segment first, stopping at the filesystem root.
//
//	PathLabels("/var/db") => dir_abs_path="/var/db", dir_0="db", dir_1="var"
//
// Relative paths are resolved against the working directory.
func PathLabels(p string) LabelSet {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	p = filepath.Clean(p)
	root := filepath.VolumeName(p) + string(filepath.Separator)

	labels := LabelSet{{Key: AbsPathLabel, Value: p}}
	for i := 0; p != root; i++ {
		dir := filepath.Dir(p)
		if dir == p {
			break
		}
		labels = append(labels, Label{
			Key:   DirLabelPrefix + strconv.Itoa(i),
			Value: filepath.Base(p),
		})
		p = dir
	}
	return labels
}

// SanitizeName returns name with the chars that may not appear in a metric
// name ('.', '-' and ' ') replaced with '_'.
func SanitizeName(name string) string {
	return tags.SanitizeName(name)
}
