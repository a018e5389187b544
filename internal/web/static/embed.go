package static

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// Files returns the embedded upload page rooted at dist.
func Files() fs.FS {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic(err)
	}
	return sub
}

// Exists reports whether name is a regular file in the embedded page.
func Exists(name string) bool {
	info, err := fs.Stat(Files(), name)
	return err == nil && !info.IsDir()
}
