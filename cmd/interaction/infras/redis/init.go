package redis

import (
	"EngageHub.com/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/go-redis/redis"
)

var redisDBInteraction *redis.Client

func Load() {
	redisDBInteraction = redis.NewClient(&redis.Options{
		Addr:     config.ConfigInfo.Redis.Addr,
		Password: config.ConfigInfo.Redis.Password,
		DB:       0,
	})

	if _, err := redisDBInteraction.Ping().Result(); err != nil {
		hlog.Info("redisDBInteraction", err)
	}
}

// GetClient 暴露给服务层构造缓存管理器
func GetClient() redis.Cmdable {
	return redisDBInteraction
}
