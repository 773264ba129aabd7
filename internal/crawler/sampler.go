// Gói crawler tái dựng lịch sử sao của repository GitHub từ API stargazers.
// Vì API phân trang và quota có hạn nên lịch sử là một chuỗi điểm xấp xỉ:
// planner chọn trang nào cần lấy trong ngân sách request cho trước, rồi đổi
// timestamp của các stargazer đã lấy được thành chuỗi điểm (date, count).

package crawler

import (
	"math"
	"sort"
	"time"

	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/githubapi"
	"github.com/thep200/star-history-crawler/internal/model"
)

const (
	StrategyFull    = "full"
	StrategySampled = "sampled"
)

// SamplingPlan cho biết cần lấy những trang nào của một repository.
// Tạo một lần cho mỗi repo, dùng xong bỏ.
type SamplingPlan struct {
	PageCount int
	Pages     []int
	Strategy  string
}

type Planner struct {
	Config *cfg.Config
}

func NewPlanner(config *cfg.Config) (*Planner, error) {
	return &Planner{Config: config}, nil
}

func (p *Planner) maxRequestAmount() int {
	if p.Config.Crawler.MaxRequestAmount > 0 {
		return p.Config.Crawler.MaxRequestAmount
	}
	return 60
}

func (p *Planner) perPage() int {
	if p.Config.GithubApi.PerPage > 0 {
		return p.Config.GithubApi.PerPage
	}
	return 100
}

// Các hằng lấy mẫu dày cho những sao đầu tiên. Giá trị mặc định (cửa sổ 100,
// bước 5 dưới cửa sổ, bước 10 phía trên) được chỉnh theo kinh nghiệm chứ
// không suy ra từ một mục tiêu sai số nào, nên để ở config thay vì hardcode.
func (p *Planner) denseWindow() int {
	if p.Config.Crawler.DenseStarWindow > 0 {
		return p.Config.Crawler.DenseStarWindow
	}
	return 100
}

func (p *Planner) denseStepEarly() int {
	if p.Config.Crawler.DenseStepEarly > 0 {
		return p.Config.Crawler.DenseStepEarly
	}
	return 5
}

func (p *Planner) denseStepLate() int {
	if p.Config.Crawler.DenseStepLate > 0 {
		return p.Config.Crawler.DenseStepLate
	}
	return 10
}

// Plan chọn các trang cần lấy cho một repository có pageCount trang.
//   - Ít trang hơn ngân sách: lấy hết, mỗi trang một request.
//   - Ngược lại: luôn lấy 3 trang đầu để có độ phân giải dày cho những sao
//     đầu tiên, phần còn lại rải đều ngân sách trên toàn dải trang.
func (p *Planner) Plan(pageCount int) SamplingPlan {
	if pageCount < 1 {
		pageCount = 1
	}

	maxAmount := p.maxRequestAmount()

	if pageCount < maxAmount {
		plan := SamplingPlan{PageCount: pageCount, Strategy: StrategyFull}
		for page := 1; page <= pageCount; page++ {
			plan.Pages = append(plan.Pages, page)
		}
		return plan
	}

	const startPage = 4

	seen := make(map[int]bool)
	plan := SamplingPlan{PageCount: pageCount, Strategy: StrategySampled}

	// 3 trang đầu tiên luôn có mặt
	for page := 1; page <= 3 && page <= pageCount; page++ {
		seen[page] = true
		plan.Pages = append(plan.Pages, page)
	}

	span := float64(pageCount - startPage + 1)
	for i := 1; i <= maxAmount; i++ {
		page := int(math.Round(float64(startPage) + float64(i)*span/float64(maxAmount)))
		if page < 1 || page > pageCount || seen[page] {
			continue
		}
		seen[page] = true
		plan.Pages = append(plan.Pages, page)
	}

	sort.Ints(plan.Pages)
	return plan
}

// Assemble đổi dữ liệu các trang đã lấy được thành chuỗi điểm (date, count),
// kết thúc bằng anchor point: ngày hôm nay với số sao chính xác lấy riêng từ
// API repo. Anchor ghi đè mọi sai số xấp xỉ tích lũy trước đó.
func (p *Planner) Assemble(plan SamplingPlan, pages map[int][]githubapi.StargazerResponse, totalStars int) []model.StarSample {
	var samples []model.StarSample

	switch plan.Strategy {
	case StrategyFull:
		samples = p.assembleFull(plan, pages)
	default:
		samples = p.assembleSampled(plan, pages)
	}

	samples = append(samples, model.StarSample{
		Date:  dayString(time.Now()),
		Count: totalStars,
	})

	return dedupeByDate(samples)
}

// assembleFull gộp toàn bộ timestamp rồi phát một điểm sau mỗi bước
// floor(tổng sao / ngân sách) sao, tối thiểu 1.
func (p *Planner) assembleFull(plan SamplingPlan, pages map[int][]githubapi.StargazerResponse) []model.StarSample {
	var all []githubapi.StargazerResponse
	for _, page := range plan.Pages {
		all = append(all, pages[page]...)
	}

	if len(all) == 0 {
		return nil
	}

	step := len(all) / p.maxRequestAmount()
	if step < 1 {
		step = 1
	}

	var samples []model.StarSample
	for i := 0; i < len(all); i += step {
		samples = append(samples, model.StarSample{
			Date:  dayString(all[i].StarredAt),
			Count: i + 1,
		})
	}

	return samples
}

// assembleSampled phát điểm theo hai chế độ:
//   - 3 trang đầu: một điểm cho từng sao ở các vị trí được chọn, cho độ phân
//     giải dày ở giai đoạn đầu đời của repo (phục vụ các phân tích kiểu
//     "bao nhiêu ngày để đạt 300 sao")
//   - các trang còn lại: một điểm duy nhất lấy timestamp của sao đầu trang,
//     count xấp xỉ bằng perPage*(trang-1). Đây là đánh đổi độ chính xác lấy
//     chi phí, không phải count chính xác.
func (p *Planner) assembleSampled(plan SamplingPlan, pages map[int][]githubapi.StargazerResponse) []model.StarSample {
	perPage := p.perPage()
	window := p.denseWindow()
	stepEarly := p.denseStepEarly()
	stepLate := p.denseStepLate()

	var samples []model.StarSample
	for _, page := range plan.Pages {
		stars := pages[page]
		if len(stars) == 0 {
			continue
		}

		if page <= 3 {
			for idx, star := range stars {
				position := perPage*(page-1) + idx + 1

				keep := false
				if position <= window {
					keep = position%stepEarly == 0 || position == 1 || position == window
				} else {
					keep = position%stepLate == 0
				}
				if !keep {
					continue
				}

				samples = append(samples, model.StarSample{
					Date:  dayString(star.StarredAt),
					Count: position,
				})
			}
			continue
		}

		samples = append(samples, model.StarSample{
			Date:  dayString(stars[0].StarredAt),
			Count: perPage * (page - 1),
		})
	}

	return samples
}

// dedupeByDate giữ lại một điểm cho mỗi ngày, điểm ghi sau thắng.
// Thứ tự xuất hiện đầu tiên của mỗi ngày được giữ nguyên.
func dedupeByDate(samples []model.StarSample) []model.StarSample {
	index := make(map[string]int, len(samples))
	result := make([]model.StarSample, 0, len(samples))

	for _, sample := range samples {
		if at, ok := index[sample.Date]; ok {
			result[at].Count = sample.Count
			continue
		}
		index[sample.Date] = len(result)
		result = append(result, sample)
	}

	return result
}

func dayString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
