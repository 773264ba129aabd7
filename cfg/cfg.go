package cfg

type (
	App struct {
		Name    string
		Version string
	}

	Mysql struct {
		Host                  string
		Port                  string
		Username              string
		Password              string
		Database              string
		MaxIdleConnection     int
		MaxOpenConnection     int
		MaxLifeTimeConnection int
	}

	GithubApi struct {
		AccessToken       string
		ApiUrl            string
		PerPage           int
		RequestTimeoutSec int
	}

	Crawler struct {
		MaxRequestAmount        int
		MaxApiCallsPerHour      int
		EstimatedCallsPerRepo   int
		InterCallDelayMs        int
		MaxRetries              int
		ShortWaitSec            int
		ResetMarginSec          int
		PageWorkers             int
		DenseStarWindow         int
		DenseStepEarly          int
		DenseStepLate           int
		StoragePingAfterWaitSec int
		CheckpointDir           string
	}

	Kafka struct {
		Enabled  bool
		Brokers  []string
		Producer KafkaProducer
	}

	KafkaProducer struct {
		TopicHistory string
	}

	Metrics struct {
		ListenAddr string
	}
)

type Config struct {
	App       App
	Mysql     Mysql
	GithubApi GithubApi
	Crawler   Crawler
	Kafka     Kafka
	Metrics   Metrics
}
