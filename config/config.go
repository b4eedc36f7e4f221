package config

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var ConfigInfo config

// 使用Viper的好处在于支持配置文件的热更新 同时viper对于大小写并不敏感 都是统一进行处理
func Init() {
	// 获取当前工作目录用于调试
	wd, _ := os.Getwd()
	logrus.Infof("Current working directory: %s", wd)

	viper.SetConfigType("yaml")
	viper.SetConfigName("config.yml")

	// 添加多个可能的配置文件路径
	configPaths := []string{
		"../../config",
		"./config",
		"../config",
		".",
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
		absPath, _ := filepath.Abs(path)
		logrus.Infof("Added config path: %s (absolute: %s)", path, absPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logrus.Errorf("config file not found: %v", err)
		} else {
			logrus.Errorf("config error: %v", err)
		}
		return
	}

	logrus.Infof("Successfully read config file: %s", viper.ConfigFileUsed())

	// 手动从viper获取配置值，避免Unmarshal问题
	ConfigInfo.Server.Addr = viper.GetString("server.addr")

	ConfigInfo.Mysql.Addr = viper.GetString("mysql.addr")
	ConfigInfo.Mysql.Database = viper.GetString("mysql.database")
	ConfigInfo.Mysql.Username = viper.GetString("mysql.username")
	ConfigInfo.Mysql.Password = viper.GetString("mysql.password")
	ConfigInfo.Mysql.Charset = viper.GetString("mysql.charset")

	ConfigInfo.Redis.Addr = viper.GetString("redis.addr")
	ConfigInfo.Redis.Password = viper.GetString("redis.password")

	ConfigInfo.RabbitMq.Addr = viper.GetString("rabbitmq.addr")
	ConfigInfo.RabbitMq.Username = viper.GetString("rabbitmq.username")
	ConfigInfo.RabbitMq.Password = viper.GetString("rabbitmq.password")

	ConfigInfo.UserService.Addr = viper.GetString("userservice.addr")
	ConfigInfo.UserService.Timeout = viper.GetInt("userservice.timeout")

	ConfigInfo.Moderation.TextWeight = viper.GetFloat64("moderation.text_weight")
	ConfigInfo.Moderation.ImageWeight = viper.GetFloat64("moderation.image_weight")
	ConfigInfo.Moderation.VideoWeight = viper.GetFloat64("moderation.video_weight")
	ConfigInfo.Moderation.LinkWeight = viper.GetFloat64("moderation.link_weight")
	ConfigInfo.Moderation.ApproveThreshold = viper.GetFloat64("moderation.approve_threshold")
	ConfigInfo.Moderation.ReviewThreshold = viper.GetFloat64("moderation.review_threshold")
	ConfigInfo.Moderation.SensitiveWords = viper.GetStringSlice("moderation.sensitive_words")
	ConfigInfo.Moderation.DangerousDomains = viper.GetStringSlice("moderation.dangerous_domains")

	ConfigInfo.Event.MaxRetry = viper.GetInt("event.max_retry")
	ConfigInfo.Event.RetryBaseMs = viper.GetInt("event.retry_base_ms")
	ConfigInfo.Event.PartitionNum = viper.GetInt("event.partition_num")
	ConfigInfo.Event.SweepInterval = viper.GetInt("event.sweep_interval")

	ConfigInfo.Comment.RateLimitPerMinute = viper.GetInt("comment.rate_limit_per_minute")
	ConfigInfo.Comment.DuplicateWindowSec = viper.GetInt("comment.duplicate_window_sec")

	// 打印配置信息用于调试
	logrus.Infof("Config loaded - MySQL: %s:%s@%s/%s",
		ConfigInfo.Mysql.Username, "***", ConfigInfo.Mysql.Addr, ConfigInfo.Mysql.Database)
	logrus.Infof("Moderation thresholds - approve: %.2f, review: %.2f, sensitive words: %d",
		ConfigInfo.Moderation.ApproveThreshold,
		ConfigInfo.Moderation.ReviewThreshold,
		len(ConfigInfo.Moderation.SensitiveWords))

	if ConfigInfo.Event.MaxRetry == 0 {
		ConfigInfo.Event.MaxRetry = 3
	}
	if ConfigInfo.Event.RetryBaseMs == 0 {
		ConfigInfo.Event.RetryBaseMs = 2000
	}
	if ConfigInfo.Event.PartitionNum == 0 {
		ConfigInfo.Event.PartitionNum = 100
	}
}
