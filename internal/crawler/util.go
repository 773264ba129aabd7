package crawler

import "strings"

// SplitFullName tách "owner/name" thành hai phần. Tên repository không được
// chứa "/" nên dư slash bị coi là sai định dạng.
func SplitFullName(fullName string) (string, string, bool) {
	parts := strings.Split(strings.TrimSpace(fullName), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
