package crawler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/thep200/star-history-crawler/pkg/log"
)

const (
	remainingFile = "remaining-repos.txt"
	completedFile = "completed-repos.txt"
	failedFile    = "failed-repos.txt"
)

// CorruptionError báo checkpoint không đọc được hoặc chứa dòng sai định dạng.
// Lỗi này là fatal lúc khởi động: không được âm thầm bỏ tiến độ cũ, operator
// phải chạy lại với cờ reset nếu muốn bắt đầu từ đầu.
type CorruptionError struct {
	File    string
	Line    int
	Content string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("checkpoint file %s corrupted at line %d: %q", e.File, e.Line, e.Content)
}

// CheckpointStore lưu tiến độ của một lần chạy batch vào ba file text,
// mỗi dòng một full name. Chỉ có đúng một writer trong suốt run nên không
// cần lock file, chỉ cần mutex cho các goroutine trong process.
type CheckpointStore struct {
	Logger log.Logger
	Dir    string

	mu        sync.Mutex
	remaining []string
	inQueue   map[string]bool
	completed map[string]bool
	failed    map[string]bool
}

func NewCheckpointStore(logger log.Logger, dir string) (*CheckpointStore, error) {
	if dir == "" {
		dir = "."
	}
	return &CheckpointStore{
		Logger:    logger,
		Dir:       dir,
		inQueue:   make(map[string]bool),
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
	}, nil
}

// Reset xóa cả ba file checkpoint, dùng cho cờ -reset.
func (c *CheckpointStore) Reset() error {
	for _, file := range []string{remainingFile, completedFile, failedFile} {
		if err := os.Remove(filepath.Join(c.Dir, file)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove checkpoint file %s: %w", file, err)
		}
	}
	return nil
}

// Load đọc ba log, trộn với danh sách authoritative từ storage và trả về hàng
// đợi cần xử lý: remaining trước, rồi các repo failed của run trước (luôn được
// thử lại), cuối cùng là các repo mới xuất hiện. Log failed được xóa ngay khi
// nội dung của nó đã vào lại hàng đợi.
func (c *CheckpointStore) Load(authoritative []string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining, err := c.readLog(remainingFile)
	if err != nil {
		return nil, err
	}
	completed, err := c.readLog(completedFile)
	if err != nil {
		return nil, err
	}
	failed, err := c.readLog(failedFile)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(remaining)+len(completed)+len(failed))
	for _, name := range remaining {
		known[name] = true
	}
	for _, name := range completed {
		known[name] = true
		c.completed[name] = true
	}
	for _, name := range failed {
		known[name] = true
	}

	queue := make([]string, 0, len(remaining)+len(failed))
	for _, name := range remaining {
		if !c.inQueue[name] {
			c.inQueue[name] = true
			queue = append(queue, name)
		}
	}
	for _, name := range failed {
		if !c.inQueue[name] && !c.completed[name] {
			c.inQueue[name] = true
			queue = append(queue, name)
		}
	}
	for _, name := range authoritative {
		name = strings.TrimSpace(name)
		if name == "" || known[name] || c.inQueue[name] {
			continue
		}
		c.inQueue[name] = true
		queue = append(queue, name)
	}

	c.remaining = queue

	// Các repo failed đã được re-queue, log failed bắt đầu lại từ rỗng
	if err := c.writeLog(failedFile, nil); err != nil {
		return nil, err
	}
	if err := c.writeRemainingLocked(); err != nil {
		return nil, err
	}

	return append([]string(nil), queue...), nil
}

// MarkCompleted ghi nhận một repo đã xử lý xong: append vào log completed và
// ghi lại log remaining. Ghi xong mới được chuyển sang repo kế tiếp.
func (c *CheckpointStore) MarkCompleted(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.appendLine(completedFile, name); err != nil {
		return err
	}
	c.completed[name] = true
	c.removeRemainingLocked(name)
	return c.writeRemainingLocked()
}

// MarkFailed ghi nhận một repo thất bại sau khi đã hết lượt retry.
// Repo này sẽ tự động được thử lại ở lần chạy sau.
func (c *CheckpointStore) MarkFailed(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.appendLine(failedFile, name); err != nil {
		return err
	}
	c.failed[name] = true
	c.removeRemainingLocked(name)
	return c.writeRemainingLocked()
}

// MarkSkipped loại một repo không resolve được ra khỏi hàng đợi mà không ghi
// vào completed hay failed: nếu sau này nó xuất hiện trong storage thì lần
// chạy kế tiếp sẽ coi nó là repo mới.
func (c *CheckpointStore) MarkSkipped(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeRemainingLocked(name)
	return c.writeRemainingLocked()
}

// Remaining trả về số repo còn lại trong hàng đợi.
func (c *CheckpointStore) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.remaining)
}

// Flush ghi toàn bộ trạng thái trong bộ nhớ xuống đĩa. Đây là đường duy nhất
// kết thúc một run, dùng chung cho cả kết thúc bình thường lẫn tín hiệu
// SIGINT/SIGTERM. File remaining chỉ bị xóa khi hàng đợi đã rỗng - file
// vắng mặt chính là dấu hiệu "run đã hoàn tất".
func (c *CheckpointStore) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeLog(completedFile, setToLines(c.completed)); err != nil {
		return err
	}
	if err := c.writeLog(failedFile, setToLines(c.failed)); err != nil {
		return err
	}
	return c.writeRemainingLocked()
}

func (c *CheckpointStore) readLog(file string) ([]string, error) {
	path := filepath.Join(c.Dir, file)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &CorruptionError{File: file, Line: 0, Content: err.Error()}
	}

	var names []string
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, _, ok := SplitFullName(line); !ok {
			return nil, &CorruptionError{File: file, Line: i + 1, Content: line}
		}
		names = append(names, line)
	}

	return names, nil
}

func (c *CheckpointStore) writeLog(file string, lines []string) error {
	path := filepath.Join(c.Dir, file)

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file %s: %w", file, err)
	}
	return nil
}

func (c *CheckpointStore) appendLine(file, name string) error {
	path := filepath.Join(c.Dir, file)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint file %s: %w", file, err)
	}
	defer f.Close()

	if _, err := f.WriteString(name + "\n"); err != nil {
		return fmt.Errorf("failed to append to checkpoint file %s: %w", file, err)
	}
	return nil
}

func (c *CheckpointStore) removeRemainingLocked(name string) {
	if !c.inQueue[name] {
		return
	}
	delete(c.inQueue, name)
	for i, queued := range c.remaining {
		if queued == name {
			c.remaining = append(c.remaining[:i], c.remaining[i+1:]...)
			break
		}
	}
}

func (c *CheckpointStore) writeRemainingLocked() error {
	if len(c.remaining) == 0 {
		path := filepath.Join(c.Dir, remainingFile)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove checkpoint file %s: %w", remainingFile, err)
		}
		return nil
	}
	return c.writeLog(remainingFile, c.remaining)
}

func setToLines(set map[string]bool) []string {
	lines := make([]string, 0, len(set))
	for name := range set {
		lines = append(lines, name)
	}
	return lines
}
