package githubapi

import (
	"regexp"
	"strconv"
)

// Header Link của GitHub có dạng:
//
//	<...&page=2>; rel="next", <...&page=42>; rel="last"
//
// Regex greedy nên nhóm bắt được là tham số page cuối cùng trước rel="last".
// [?&] để không khớp nhầm per_page khi URL đặt per_page sau page.
var lastPageRe = regexp.MustCompile(`next.*[?&]page=(\d+).*last`)

// LastPage trích số trang cuối cùng từ header Link của một response phân trang.
// Header rỗng hoặc không đúng định dạng thì mặc định là 1 trang.
func LastPage(linkHeader string) int {
	matches := lastPageRe.FindStringSubmatch(linkHeader)
	if matches == nil {
		return 1
	}

	page, err := strconv.Atoi(matches[1])
	if err != nil || page < 1 {
		return 1
	}
	return page
}
