package model

// Reserved artifacts at the root of every job directory. Neither counts as a
// project file.
const (
	ManifestFile = ".d2d-manifest.json"
	PreviewFile  = "preview.html"
)

// IsArtifact reports whether rel names one of the reserved root artifacts.
func IsArtifact(rel string) bool {
	return rel == ManifestFile || rel == PreviewFile
}
