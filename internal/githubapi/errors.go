package githubapi

import (
	"errors"
	"fmt"
)

// ErrNotFound được trả về khi repository không tồn tại hoặc không có stargazer nào.
var ErrNotFound = errors.New("repository not found or has no stargazers")

// RateLimitError mang thông tin quota từ header của một response 403.
// Remaining = 0 nghĩa là quota đã cạn, ngược lại là 403 tạm thời (abuse detection).
type RateLimitError struct {
	StatusCode int
	Remaining  int
	Reset      int64
	HasQuota   bool
}

func (e *RateLimitError) Error() string {
	if e.Remaining == 0 && e.HasQuota {
		return fmt.Sprintf("github api rate limit exhausted, reset at epoch %d", e.Reset)
	}
	return fmt.Sprintf("github api returned %d with quota remaining", e.StatusCode)
}

// IsRateLimit kiểm tra một error có phải do 403 từ GitHub API hay không.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
