package config

type config struct {
	Server      server      `yaml:"server" mapstructure:"server"`
	Mysql       mysql       `yaml:"mysql" mapstructure:"mysql"`
	Redis       redis       `yaml:"redis" mapstructure:"redis"`
	RabbitMq    rabbitmq    `yaml:"rabbitmq" mapstructure:"rabbitmq"`
	UserService userservice `yaml:"userservice" mapstructure:"userservice"`
	Moderation  moderation  `yaml:"moderation" mapstructure:"moderation"`
	Event       event       `yaml:"event" mapstructure:"event"`
	Comment     comment     `yaml:"comment" mapstructure:"comment"`
}

type server struct {
	Addr string `yaml:"addr"`
}

type mysql struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Charset  string `yaml:"charset"`
	Params   string `yaml:"params"`
}

type redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type rabbitmq struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type userservice struct {
	Addr    string `yaml:"addr"`
	Timeout int    `yaml:"timeout"` // 毫秒
}

// 审核策略配置：权重和阈值可调，不改代码即可调整审核松紧
type moderation struct {
	TextWeight       float64  `yaml:"text_weight" mapstructure:"text_weight"`
	ImageWeight      float64  `yaml:"image_weight" mapstructure:"image_weight"`
	VideoWeight      float64  `yaml:"video_weight" mapstructure:"video_weight"`
	LinkWeight       float64  `yaml:"link_weight" mapstructure:"link_weight"`
	ApproveThreshold float64  `yaml:"approve_threshold" mapstructure:"approve_threshold"`
	ReviewThreshold  float64  `yaml:"review_threshold" mapstructure:"review_threshold"`
	SensitiveWords   []string `yaml:"sensitive_words" mapstructure:"sensitive_words"`
	DangerousDomains []string `yaml:"dangerous_domains" mapstructure:"dangerous_domains"`
}

type event struct {
	MaxRetry      int `yaml:"max_retry" mapstructure:"max_retry"`
	RetryBaseMs   int `yaml:"retry_base_ms" mapstructure:"retry_base_ms"`
	PartitionNum  int `yaml:"partition_num" mapstructure:"partition_num"`
	SweepInterval int `yaml:"sweep_interval" mapstructure:"sweep_interval"` // 秒
}

type comment struct {
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	DuplicateWindowSec int `yaml:"duplicate_window_sec" mapstructure:"duplicate_window_sec"`
}
