package githubapi

import "time"

// Mapping response của API /repos/{user}/{repo}
type RepoResponse struct {
	Id              int64  `json:"id"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	StargazersCount int64  `json:"stargazers_count"`
	ForksCount      int64  `json:"forks_count"`
	WatchersCount   int64  `json:"watchers_count"`
	OpenIssuesCount int64  `json:"open_issues_count"`
	Owner           Owner  `json:"owner"`
}

type Owner struct {
	Login string `json:"login"`
}

// Mapping response của API stargazers với header Accept star+json.
// Chỉ định dạng này mới trả về thời điểm mỗi user đã star repository.
type StargazerResponse struct {
	StarredAt time.Time `json:"starred_at"`
	User      Owner     `json:"user"`
}

// Mapping response của API /rate_limit
type RateLimitResponse struct {
	Resources RateLimitResources `json:"resources"`
}

type RateLimitResources struct {
	Core RateResource `json:"core"`
}

type RateResource struct {
	Limit     int   `json:"limit"`
	Used      int   `json:"used"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}
