package rule

import "strings"

// legacyEncryptedMarker was appended to the masked author by earlier
// releases: "<masked> - 此文件为加密文件".
const legacyEncryptedMarker = "此文件为加密文件"

const legacyAuthorSuffix = " - " + legacyEncryptedMarker

// claimsEncryption reports whether a rule directory claims to be encrypted.
// The integrity file and the random_key block are the current signals. The
// marker only appears in author values written by earlier releases.
func claimsEncryption(info *Info, manifestExists bool) bool {
	if manifestExists || info.RandomKey != "" {
		return true
	}

	return strings.Contains(info.Author, legacyEncryptedMarker)
}

// stripLegacyMarker removes the marker suffix from an author written by an
// earlier release.
func stripLegacyMarker(author string) string {
	return strings.TrimSpace(strings.TrimSuffix(author, legacyAuthorSuffix))
}
