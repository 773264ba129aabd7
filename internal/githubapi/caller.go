// Gói githubapi cung cấp một caller cho GitHub API, để lấy dữ liệu stargazer.
// Caller chịu trách nhiệm thực hiện yêu cầu API và phân loại lỗi trả về:
// 403 thành RateLimitError mang thông tin quota, 404 thành ErrNotFound.
// Việc quyết định retry hay chờ thuộc về tầng limiter, không phải caller.

package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/pkg/log"
	"github.com/thep200/star-history-crawler/pkg/metrics"
)

type Caller struct {
	Logger log.Logger
	Config *cfg.Config
	client *http.Client
}

func NewCaller(logger log.Logger, config *cfg.Config) *Caller {
	timeout := time.Duration(config.GithubApi.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Caller{
		Logger: logger,
		Config: config,
		client: &http.Client{Timeout: timeout},
	}
}

// ListStargazers lấy một trang stargazer kèm theo header Link để biết tổng số trang.
// Header Accept star+json là bắt buộc để nhận được starred_at của từng user.
func (c *Caller) ListStargazers(ctx context.Context, user, repo string, page int) ([]StargazerResponse, string, error) {
	perPage := c.Config.GithubApi.PerPage
	if perPage <= 0 {
		perPage = 100
	}

	url := fmt.Sprintf("%s/repos/%s/%s/stargazers?per_page=%d&page=%d",
		c.Config.GithubApi.ApiUrl, user, repo, perPage, page)

	var stargazers []StargazerResponse
	header, err := c.do(ctx, url, "application/vnd.github.v3.star+json", "stargazers", &stargazers)
	if err != nil {
		return nil, "", err
	}

	return stargazers, header.Get("Link"), nil
}

// GetRepo lấy thông tin repository, dùng để có số sao chính xác tại thời điểm hiện tại.
func (c *Caller) GetRepo(ctx context.Context, user, repo string) (*RepoResponse, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.Config.GithubApi.ApiUrl, user, repo)

	repoResponse := &RepoResponse{}
	if _, err := c.do(ctx, url, "application/vnd.github.v3+json", "repo", repoResponse); err != nil {
		return nil, err
	}

	return repoResponse, nil
}

// GetRateLimit lấy trạng thái quota hiện tại của token.
func (c *Caller) GetRateLimit(ctx context.Context) (*RateLimitResponse, error) {
	url := fmt.Sprintf("%s/rate_limit", c.Config.GithubApi.ApiUrl)

	rateLimit := &RateLimitResponse{}
	if _, err := c.do(ctx, url, "application/vnd.github.v3+json", "rate_limit", rateLimit); err != nil {
		return nil, err
	}

	return rateLimit, nil
}

func (c *Caller) do(ctx context.Context, url, accept, endpoint string, out interface{}) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.Logger.Error(ctx, "Cannot request: %v", err)
		return nil, err
	}

	req.Header.Set("Accept", accept)
	if c.Config.GithubApi.AccessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", c.Config.GithubApi.AccessToken))
	}

	// Thực hiện request
	metrics.ApiCalls.WithLabelValues(endpoint).Inc()
	resp, err := c.client.Do(req)
	if err != nil {
		c.Logger.Error(ctx, "cannot send request: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	rateRemaining := resp.Header.Get("X-RateLimit-Remaining")
	c.Logger.Debug(ctx, "Called %s, rate limit remaining: %s", endpoint, rateRemaining)

	// Phân loại lỗi theo status code
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, c.rateLimitError(resp)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("cannot received response: %v", resp.Status)
	}

	// Giải mã phản hồi
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, err
	}

	return resp.Header, nil
}

// rateLimitError dựng RateLimitError từ header của một response 403.
func (c *Caller) rateLimitError(resp *http.Response) *RateLimitError {
	rle := &RateLimitError{StatusCode: resp.StatusCode}

	if remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil {
		rle.Remaining = remaining
		rle.HasQuota = true
	}
	if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		rle.Reset = reset
	}

	return rle
}
