package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/pkg/db"
	"github.com/thep200/star-history-crawler/pkg/log"
	"gorm.io/gorm/clause"
)

// Repo là repository đã được phát hiện bởi trending scraper và lưu trong storage.
// Crawler chỉ tra cứu id nội bộ theo full name, không tự sinh id.
type Repo struct {
	Model
	ID        int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	User      string    `json:"user" gorm:"column:user;type:varchar(255);not null;uniqueIndex:idx_user_name"`
	Name      string    `json:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex:idx_user_name"`
	StarCount int       `json:"star_count" gorm:"column:star_count;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`
}

func NewRepo(config *cfg.Config, logger log.Logger, db *db.Mysql) (*Repo, error) {
	repo := &Repo{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return repo, nil
}

func (r *Repo) TableName() string {
	return "repos"
}

// LookupID tra cứu id nội bộ của repository theo full name "owner/name".
// Trả về gorm.ErrRecordNotFound khi repository chưa có trong storage.
func (r *Repo) LookupID(fullName string) (int64, error) {
	user, name, ok := splitFullName(fullName)
	if !ok {
		return 0, fmt.Errorf("invalid repository full name: %q", fullName)
	}

	db, err := r.Mysql.Db()
	if err != nil {
		return 0, fmt.Errorf("failed to get database connection: %w", err)
	}

	var repo Repo
	if err := db.Select("id").Where("user = ? AND name = ?", user, name).First(&repo).Error; err != nil {
		return 0, err
	}

	return repo.ID, nil
}

// AllFullNames trả về toàn bộ full name trong storage, repo nhiều sao trước.
// Đây là danh sách công việc mặc định của một lần chạy batch.
func (r *Repo) AllFullNames() ([]string, error) {
	db, err := r.Mysql.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	var repos []Repo
	if err := db.Select("user", "name").Order("star_count DESC").Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.User+"/"+repo.Name)
	}

	return names, nil
}

// UpdateStarCount cập nhật số sao chính xác lấy từ anchor point.
func (r *Repo) UpdateStarCount(id int64, starCount int) error {
	ctx := context.Background()

	db, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if err := db.Model(&Repo{}).Where("id = ?", id).
		Updates(map[string]interface{}{"star_count": starCount, "updated_at": time.Now()}).Error; err != nil {
		r.Logger.Error(ctx, "Failed to update star count for repo %d: %v", id, err)
		return err
	}

	return nil
}

// Upsert thêm repository mới hoặc cập nhật số sao nếu đã tồn tại.
func (r *Repo) Upsert(user, name string, starCount int) error {
	ctx := context.Background()

	db, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	newRepo := &Repo{
		User:      TruncateString(user, 250),
		Name:      TruncateString(name, 250),
		StarCount: starCount,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"star_count", "updated_at"}),
	}).Create(newRepo).Error; err != nil {
		r.Logger.Error(ctx, "Failed to upsert repo %s/%s: %v", user, name, err)
		return err
	}

	return nil
}

func splitFullName(fullName string) (string, string, bool) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
