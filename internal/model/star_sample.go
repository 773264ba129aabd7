package model

import (
	"fmt"

	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/pkg/db"
	"github.com/thep200/star-history-crawler/pkg/log"
	"gorm.io/gorm"
)

// StarSample là một điểm ước lượng trên đường cong sao tích lũy của repository.
// Date có dạng YYYY-MM-DD theo UTC. Trong một series, count không giảm khi sắp
// xếp theo date, trừ sai số xấp xỉ tại biên trang - consumer phải chấp nhận
// điều đó thay vì giả định đơn điệu tuyệt đối.
type StarSample struct {
	Model
	RepoID int64  `json:"repo_id" gorm:"column:repo_id;not null;uniqueIndex:idx_repo_date"`
	Date   string `json:"date" gorm:"column:date;type:varchar(10);not null;uniqueIndex:idx_repo_date"`
	Count  int    `json:"count" gorm:"column:count;not null;default:0"`
}

func NewStarSample(config *cfg.Config, logger log.Logger, db *db.Mysql) (*StarSample, error) {
	sample := &StarSample{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return sample, nil
}

func (s *StarSample) TableName() string {
	return "star_samples"
}

// ReplaceForRepo thay toàn bộ series của một repository bằng series mới
// trong một transaction. Lưu ngay sau khi crawl xong từng repo, không dồn
// đến cuối batch.
func (s *StarSample) ReplaceForRepo(repoID int64, samples []StarSample) error {
	db, err := s.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	rows := make([]StarSample, 0, len(samples))
	for _, sample := range samples {
		rows = append(rows, StarSample{
			RepoID: repoID,
			Date:   sample.Date,
			Count:  sample.Count,
		})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("repo_id = ?", repoID).Delete(&StarSample{}).Error; err != nil {
			return fmt.Errorf("failed to clear existing samples: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}

		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("failed to batch create samples: %w", err)
		}

		return nil
	})
}

// ForRepo đọc series đã lưu của một repository theo thứ tự ngày tăng dần.
func (s *StarSample) ForRepo(repoID int64) ([]StarSample, error) {
	db, err := s.Mysql.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	var samples []StarSample
	if err := db.Where("repo_id = ?", repoID).Order("date ASC").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("failed to load samples: %w", err)
	}

	return samples, nil
}
