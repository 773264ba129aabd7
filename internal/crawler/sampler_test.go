package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/githubapi"
	"github.com/thep200/star-history-crawler/internal/model"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	loader, _ := cfg.NewMockLoader()
	config, _ := loader.Load()

	planner, err := NewPlanner(config)
	require.NoError(t, err)
	return planner
}

// starsFrom sinh ra n stargazer với timestamp mỗi sao một ngày khác nhau
// để kết quả không bị dedupe theo ngày.
func starsFrom(start time.Time, n int) []githubapi.StargazerResponse {
	stars := make([]githubapi.StargazerResponse, n)
	for i := range stars {
		stars[i] = githubapi.StargazerResponse{StarredAt: start.AddDate(0, 0, i)}
	}
	return stars
}

func TestPlanFullStrategy(t *testing.T) {
	planner := newTestPlanner(t)

	plan := planner.Plan(5)
	assert.Equal(t, StrategyFull, plan.Strategy)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, plan.Pages)
}

func TestPlanClampsPageCount(t *testing.T) {
	planner := newTestPlanner(t)

	plan := planner.Plan(0)
	assert.Equal(t, StrategyFull, plan.Strategy)
	assert.Equal(t, []int{1}, plan.Pages)
}

func TestPlanSampledStrategy(t *testing.T) {
	planner := newTestPlanner(t)

	plan := planner.Plan(2186)
	assert.Equal(t, StrategySampled, plan.Strategy)

	// 3 trang đầu luôn có mặt
	assert.Contains(t, plan.Pages, 1)
	assert.Contains(t, plan.Pages, 2)
	assert.Contains(t, plan.Pages, 3)

	// Số trang nằm trong ngân sách request
	assert.LessOrEqual(t, len(plan.Pages), 3+planner.Config.Crawler.MaxRequestAmount)

	// Tăng dần, không trùng, không vượt pageCount
	for i, page := range plan.Pages {
		assert.GreaterOrEqual(t, page, 1)
		assert.LessOrEqual(t, page, 2186)
		if i > 0 {
			assert.Greater(t, page, plan.Pages[i-1])
		}
	}
}

func TestPlanSampledAtBudgetBoundary(t *testing.T) {
	planner := newTestPlanner(t)

	// pageCount == ngân sách thì đã chuyển sang sampled
	plan := planner.Plan(planner.Config.Crawler.MaxRequestAmount)
	assert.Equal(t, StrategySampled, plan.Strategy)
}

func TestAssembleFullEndsWithAnchor(t *testing.T) {
	planner := newTestPlanner(t)

	plan := planner.Plan(2)
	pages := map[int][]githubapi.StargazerResponse{
		1: starsFrom(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 100),
		2: starsFrom(time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC), 43),
	}

	samples := planner.Assemble(plan, pages, 143)
	require.NotEmpty(t, samples)

	// Anchor point: hôm nay với số sao chính xác
	last := samples[len(samples)-1]
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), last.Date)
	assert.Equal(t, 143, last.Count)

	// Điểm đầu tiên là sao đầu tiên
	assert.Equal(t, "2020-01-01", samples[0].Date)
	assert.Equal(t, 1, samples[0].Count)
}

func TestAssembleFullStep(t *testing.T) {
	planner := newTestPlanner(t)
	planner.Config.Crawler.MaxRequestAmount = 10

	plan := SamplingPlan{PageCount: 1, Pages: []int{1}, Strategy: StrategyFull}
	pages := map[int][]githubapi.StargazerResponse{
		1: starsFrom(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 100),
	}

	samples := planner.Assemble(plan, pages, 100)

	// step = floor(100/10) = 10, các count là 1, 11, 21, ... 91 cộng anchor
	require.GreaterOrEqual(t, len(samples), 2)
	assert.Equal(t, 1, samples[0].Count)
	assert.Equal(t, 11, samples[1].Count)
	assert.Equal(t, 100, samples[len(samples)-1].Count)
}

func TestAssembleSampledDenseEarlyPages(t *testing.T) {
	planner := newTestPlanner(t)

	plan := SamplingPlan{PageCount: 100, Pages: []int{1}, Strategy: StrategySampled}
	pages := map[int][]githubapi.StargazerResponse{
		1: starsFrom(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 100),
	}

	samples := planner.Assemble(plan, pages, 10000)

	counts := make([]int, 0, len(samples))
	for _, sample := range samples[:len(samples)-1] { // bỏ anchor
		counts = append(counts, sample.Count)
	}

	// Trong cửa sổ 100 sao đầu: vị trí 1, các bội số của 5, và 100
	assert.Contains(t, counts, 1)
	assert.Contains(t, counts, 5)
	assert.Contains(t, counts, 100)
	assert.NotContains(t, counts, 2)
	assert.NotContains(t, counts, 7)
	assert.Len(t, counts, 21)
}

func TestAssembleSampledLaterPagesOnePoint(t *testing.T) {
	planner := newTestPlanner(t)

	plan := SamplingPlan{PageCount: 100, Pages: []int{50}, Strategy: StrategySampled}
	pages := map[int][]githubapi.StargazerResponse{
		50: starsFrom(time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), 100),
	}

	samples := planner.Assemble(plan, pages, 10000)
	require.Len(t, samples, 2) // một điểm cho trang + anchor

	// Count xấp xỉ perPage*(trang-1), timestamp lấy từ sao đầu trang
	assert.Equal(t, "2021-03-15", samples[0].Date)
	assert.Equal(t, 4900, samples[0].Count)
}

func TestAssembleSampledSkipsEmptyPages(t *testing.T) {
	planner := newTestPlanner(t)

	plan := SamplingPlan{PageCount: 100, Pages: []int{1, 50}, Strategy: StrategySampled}
	pages := map[int][]githubapi.StargazerResponse{
		50: starsFrom(time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), 10),
	}

	samples := planner.Assemble(plan, pages, 10000)
	require.Len(t, samples, 2)
	assert.Equal(t, 4900, samples[0].Count)
}

func TestDedupeByDateLastWins(t *testing.T) {
	samples := dedupeByDate([]model.StarSample{
		{Date: "2020-01-01", Count: 1},
		{Date: "2020-01-02", Count: 5},
		{Date: "2020-01-01", Count: 3},
	})

	require.Len(t, samples, 2)
	assert.Equal(t, "2020-01-01", samples[0].Date)
	assert.Equal(t, 3, samples[0].Count)
	assert.Equal(t, "2020-01-02", samples[1].Date)
	assert.Equal(t, 5, samples[1].Count)
}

func TestSplitFullName(t *testing.T) {
	user, name, ok := SplitFullName("octocat/hello-world")
	require.True(t, ok)
	assert.Equal(t, "octocat", user)
	assert.Equal(t, "hello-world", name)

	_, _, ok = SplitFullName("no-slash")
	assert.False(t, ok)

	_, _, ok = SplitFullName("too/many/parts")
	assert.False(t, ok)

	_, _, ok = SplitFullName("/empty-user")
	assert.False(t, ok)
}
