package config

const (
	defaultConfigPath             = "~/.config/modrelay/config.toml"
	defaultDataDir                = "~/.local/share/modrelay"
	defaultLogDir                 = "~/.local/share/modrelay/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultTelegramAPIURL         = "https://api.telegram.org"
	defaultTelegramRequestTimeout = 10
	defaultTelegramSendRate       = 25
	defaultTelegramPollTimeout    = 30
	defaultFeedPollIntervalMillis = 1000
	defaultFeedBatchSize          = 200
	defaultFeedRetryInterval      = 5
	defaultFeedMaxRetryInterval   = 60
	defaultChangeRetentionHours   = 168
	defaultNotificationWorkers    = 4
	defaultNotificationQueueSize  = 256
	defaultNotificationTimeout    = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Telegram: Telegram{
			APIURL:            defaultTelegramAPIURL,
			RequestTimeout:    defaultTelegramRequestTimeout,
			SendRatePerSecond: defaultTelegramSendRate,
			PollTimeout:       defaultTelegramPollTimeout,
			IntakeEnabled:     true,
		},
		Feed: Feed{
			PollIntervalMillis:   defaultFeedPollIntervalMillis,
			BatchSize:            defaultFeedBatchSize,
			RetryInterval:        defaultFeedRetryInterval,
			MaxRetryInterval:     defaultFeedMaxRetryInterval,
			ChangeRetentionHours: defaultChangeRetentionHours,
		},
		Notifications: Notifications{
			Workers:        defaultNotificationWorkers,
			QueueSize:      defaultNotificationQueueSize,
			RequestTimeout: defaultNotificationTimeout,
			NewSubmissions: true,
			FeedErrors:     true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
