package assetinfo

// Reserved file and folder names inside an asset folder. Files bearing
// these names are metadata, not asset content, and are excluded from
// content enumeration and classification.
const (
	// InfoFileName is the JSON metadata sidecar.
	InfoFileName = "__info__.json"
	// IconFileName is the square icon image shown in browsers.
	IconFileName = "__icon__.png"
	// GalleryDirName holds preview/gallery images.
	GalleryDirName = "__gallery__"
	// ArchiveDirName holds originals of extracted archives.
	ArchiveDirName = "__archive__"
	// ExtraDirName holds auxiliary downloaded files.
	ExtraDirName = "__extra__"
)

var reservedNames = map[string]bool{
	InfoFileName:   true,
	IconFileName:   true,
	GalleryDirName: true,
	ArchiveDirName: true,
	ExtraDirName:   true,
}

// IsReservedName reports whether name is one of the reserved metadata
// file/folder names.
func IsReservedName(name string) bool {
	return reservedNames[name]
}
