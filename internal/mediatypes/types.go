package mediatypes

// ImageExtensions maps file extensions to whether they are treated as
// dataset images. The set mirrors what image-model training pipelines
// actually consume; video and document formats are deliberately absent.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
	".gif":  true,
}

// MimeTypes maps image extensions to their MIME types for HTTP responses.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
}

// IsImage reports whether the extension (lowercase, with leading dot) is a
// supported dataset image format.
func IsImage(ext string) bool {
	return ImageExtensions[ext]
}

// GetMimeType returns the MIME type for a given image extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
