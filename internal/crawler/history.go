package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/githubapi"
	"github.com/thep200/star-history-crawler/internal/limiter"
	"github.com/thep200/star-history-crawler/internal/model"
	"github.com/thep200/star-history-crawler/pkg/log"
)

// Assembler dựng chuỗi điểm lịch sử sao cho một repository:
// lấy trang 1 để biết tổng số trang, lập plan, lấy các trang trong plan,
// rồi lấy số sao chính xác làm anchor point. Mọi call đều đi qua Retrier.
type Assembler struct {
	Logger  log.Logger
	Config  *cfg.Config
	Caller  *githubapi.Caller
	Retrier *limiter.Retrier
	Planner *Planner
}

func NewAssembler(logger log.Logger, config *cfg.Config, caller *githubapi.Caller, retrier *limiter.Retrier) (*Assembler, error) {
	planner, err := NewPlanner(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner: %w", err)
	}

	return &Assembler{
		Logger:  logger,
		Config:  config,
		Caller:  caller,
		Retrier: retrier,
		Planner: planner,
	}, nil
}

// FetchHistory trả về chuỗi điểm (date, count) của một repository.
// Repository không tồn tại hoặc chưa có sao nào thì trả về githubapi.ErrNotFound
// ngay sau call đầu tiên, không tốn thêm ngân sách request.
func (a *Assembler) FetchHistory(ctx context.Context, fullName string) ([]model.StarSample, error) {
	user, name, ok := SplitFullName(fullName)
	if !ok {
		return nil, fmt.Errorf("invalid repository full name: %q", fullName)
	}

	// Trang đầu tiên cho biết repo có sao hay không và có bao nhiêu trang
	var firstPage []githubapi.StargazerResponse
	var linkHeader string
	err := a.Retrier.Do(ctx, fullName+" stargazers page 1", func() error {
		var callErr error
		firstPage, linkHeader, callErr = a.Caller.ListStargazers(ctx, user, name, 1)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if len(firstPage) == 0 {
		return nil, githubapi.ErrNotFound
	}

	pageCount := githubapi.LastPage(linkHeader)
	plan := a.Planner.Plan(pageCount)
	a.Logger.Debug(ctx, "Plan cho %s: %d trang, chiến lược %s, lấy %d trang",
		fullName, pageCount, plan.Strategy, len(plan.Pages))

	pageData, err := a.fetchPlannedPages(ctx, user, name, plan, firstPage)
	if err != nil {
		return nil, err
	}

	// Số sao chính xác tại thời điểm hiện tại làm anchor point
	var repoInfo *githubapi.RepoResponse
	err = a.Retrier.Do(ctx, fullName+" repo info", func() error {
		var callErr error
		repoInfo, callErr = a.Caller.GetRepo(ctx, user, name)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	return a.Planner.Assemble(plan, pageData, int(repoInfo.StargazersCount)), nil
}

// fetchPlannedPages lấy các trang trong plan. Các trang của cùng một repo được
// lấy song song qua một semaphore giới hạn số worker; không bao giờ song song
// giữa nhiều repo vì abuse detection của GitHub nhạy với burst concurrency.
func (a *Assembler) fetchPlannedPages(ctx context.Context, user, name string, plan SamplingPlan, firstPage []githubapi.StargazerResponse) (map[int][]githubapi.StargazerResponse, error) {
	workers := a.Config.Crawler.PageWorkers
	if workers <= 0 {
		workers = 5
	}

	pageData := make(map[int][]githubapi.StargazerResponse, len(plan.Pages))
	pageData[1] = firstPage

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	semaphore := make(chan struct{}, workers)

	for _, page := range plan.Pages {
		if page == 1 {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(page int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			var stars []githubapi.StargazerResponse
			err := a.Retrier.Do(ctx, fmt.Sprintf("%s/%s stargazers page %d", user, name, page), func() error {
				var callErr error
				stars, _, callErr = a.Caller.ListStargazers(ctx, user, name, page)
				return callErr
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			pageData[page] = stars
		}(page)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return pageData, nil
}
