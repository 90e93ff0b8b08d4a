package docroot

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// DefaultContentType is used for extensions missing from the table.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".txt":   "text/plain",
	".css":   "text/css",
	".csv":   "text/csv",
	".md":    "text/markdown",
	".xml":   "text/xml",
	".js":    "text/javascript",
	".mjs":   "text/javascript",
	".json":  "application/json",
	".pdf":   "application/pdf",
	".zip":   "application/zip",
	".gz":    "application/gzip",
	".wasm":  "application/wasm",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".svg":   "image/svg+xml",
	".ico":   "image/vnd.microsoft.icon",
	".bmp":   "image/bmp",
	".mp3":   "audio/mpeg",
	".wav":   "audio/x-wav",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// ContentType returns the MIME type for the extension of path.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return lo.ValueOr(contentTypes, ext, DefaultContentType)
}
