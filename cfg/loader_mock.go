package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (yl *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "star-history-crawler",
			Version: "0.0.1",
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Password:              "root",
			Username:              "root",
			Port:                  "3306",
			Database:              "star_history",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// GithubApi
		GithubApi: GithubApi{
			AccessToken:       "",
			ApiUrl:            "https://api.github.com",
			PerPage:           100,
			RequestTimeoutSec: 30,
		},

		// Crawler
		Crawler: Crawler{
			MaxRequestAmount:        60,
			MaxApiCallsPerHour:      4000,
			EstimatedCallsPerRepo:   40,
			InterCallDelayMs:        2500,
			MaxRetries:              3,
			ShortWaitSec:            5,
			ResetMarginSec:          10,
			PageWorkers:             5,
			DenseStarWindow:         100,
			DenseStepEarly:          5,
			DenseStepLate:           10,
			StoragePingAfterWaitSec: 300,
			CheckpointDir:           ".",
		},

		// Kafka
		Kafka: Kafka{
			Enabled: false,
			Brokers: []string{"127.0.0.1:9092"},
			Producer: KafkaProducer{
				TopicHistory: "star-history",
			},
		},

		// Metrics
		Metrics: Metrics{
			ListenAddr: "",
		},
	}, nil
}
