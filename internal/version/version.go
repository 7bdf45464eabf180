package version

import "fmt"

// Releases are named after songbirds, one per major version.
var songbirds = []string{
	"sparrow",
	"finch",
	"wren",
	"robin",
	"lark",
	"thrush",
	"warbler",
	"oriole",
}

const (
	Major = 0
	Minor = 1
	Patch = 0
)

func Codename() string {
	if Major < len(songbirds) {
		return songbirds[Major]
	}
	return fmt.Sprintf("post-songbird-%d", Major)
}

// String is the full release name, e.g. "sparrow-0.1.0".
func String() string {
	return fmt.Sprintf("%s-%d.%d.%d", Codename(), Major, Minor, Patch)
}

// UserAgent identifies program to the backend.
func UserAgent(program string) string {
	return fmt.Sprintf("%s/%d.%d.%d (%s)", program, Major, Minor, Patch, Codename())
}
