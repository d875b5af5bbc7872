// Package s3x holds the object-store helpers: storage-key derivation for
// content-addressed uploads and a thin client wrapper around the AWS SDK.
//
// Key derivation is the single source of truth for where a file lives in the
// bucket. Both the upload issuer and the completion consumer rely on it, so
// any change here changes the on-bucket layout.
package s3x

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Bucket folders. Files that still need server-side optimization land in
// FolderIncoming; everything else goes straight to FolderOptimized.
const (
	FolderIncoming  = "incoming"
	FolderOptimized = "optimized"
)

// FallbackExtension is used when neither the MIME type nor the file name
// yields a usable extension.
const FallbackExtension = "bin"

// mimeToExt maps declared MIME types onto canonical extensions
// (without the leading dot).
var mimeToExt = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"video/mp4":       "mp4",
	"video/webm":      "webm",
	"video/ogg":       "ogv",
	"video/quicktime": "mov",
}

var hashPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// ValidHash reports whether s looks like a 128-bit content hash
// (32 hex characters, case-insensitive).
func ValidHash(s string) bool {
	return hashPattern.MatchString(strings.ToLower(s))
}

// NormalizeHash lowercases a content hash so it can be used as a lookup key.
func NormalizeHash(s string) string {
	return strings.ToLower(s)
}

// NeedsOptimization reports whether a file with the given name must be
// routed through the optimization pipeline. Already-optimized webp images
// are exempt; other known image and video containers are not.
func NeedsOptimization(fileName string) bool {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == ".webp" {
		return false
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	case ".mp4", ".mkv", ".webm", ".mov", ".avi":
		return true
	}
	return false
}

// ExtensionFor resolves the extension for an upload: the MIME mapping wins,
// then the file name's own extension, then FallbackExtension.
func ExtensionFor(mimeType, fileName string) string {
	if ext, ok := mimeToExt[mimeType]; ok {
		return ext
	}
	if ext := strings.ToLower(path.Ext(fileName)); ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	return FallbackExtension
}

/// BuildKey derives the storage key for a declared upload:
// {folder}/{hash}.{ext}. Deterministic for identical inputs.
func BuildKey(hash, fileName, mimeType string) string {
	folder := FolderOptimized
	if NeedsOptimization(fileName) {
		folder = FolderIncoming
	}
	return folder + "/" + NormalizeHash(hash) + "." + ExtensionFor(mimeType, fileName)
}

// IsOptimizedKey reports whether a storage key lives under the optimized
// folder.
func IsOptimizedKey(key string) bool {
	return strings.HasPrefix(key, FolderOptimized+"/")
}

// HashFromKey decodes the {hash, extension} pair out of a storage key as the
// object store reported it. The hash is the basename with the last extension
// stripped; a basename that does not decode to a well-formed hash returns
// ok=false.
func HashFromKey(key string) (hash, ext string, ok bool) {
	base := path.Base(key)
	dotExt := path.Ext(base)
	name := strings.TrimSuffix(base, dotExt)
	if !ValidHash(name) {
		return "", "", false
	}
	return NormalizeHash(name), strings.TrimPrefix(dotExt, "."), true
}

// KeyToURL builds the public URL for a storage key given the configured
// base URL.
func KeyToURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// HashFromURL extracts the content hash from a media URL, but only when the
// URL belongs to our bucket (prefix match). Foreign URLs, unparseable URLs
// and basenames that are not well-formed hashes all return ok=false.
func HashFromURL(rawURL, prefix string) (string, bool) {
	if rawURL == "" || prefix == "" {
		return "", false
	}
	if !strings.HasPrefix(rawURL, strings.TrimRight(prefix, "/")) {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	hash, _, ok := HashFromKey(u.Path)
	if !ok {
		return "", false
	}
	return hash, true
}
