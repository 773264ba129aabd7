// Package metrics đếm các chỉ số quan trọng của một lần chạy crawler.
// Các counter được export qua một listener promhttp tùy chọn, phục vụ việc
// theo dõi các run kéo dài nhiều giờ.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ApiCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "star_crawler_api_calls_total",
		Help: "Total GitHub API calls by endpoint",
	}, []string{"endpoint"})

	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_crawler_rate_limit_waits_total",
		Help: "Number of governor mandated waits",
	})

	ReposCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_crawler_repos_completed_total",
		Help: "Repositories whose history was persisted",
	})

	ReposFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_crawler_repos_failed_total",
		Help: "Repositories that failed after retries",
	})

	ReposSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_crawler_repos_skipped_total",
		Help: "Repositories skipped because they did not resolve",
	})

	SamplesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_crawler_samples_persisted_total",
		Help: "Star samples written to storage",
	})
)

// Serve khởi động HTTP listener cho /metrics nếu addr khác rỗng.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go server.ListenAndServe()
}
