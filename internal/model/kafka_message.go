package model

// HistoryPoint là một điểm (date, count) trong message gửi tới Kafka
type HistoryPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// HistoryMessage là series sao của một repository gửi tới Kafka
// sau khi crawl thành công
type HistoryMessage struct {
	RepoID   int64          `json:"repo_id"`
	FullName string         `json:"full_name"`
	Points   []HistoryPoint `json:"points"`
}
