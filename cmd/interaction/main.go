package main

import (
	"context"
	"fmt"

	"EngageHub.com/cmd/interaction/dal"
	"EngageHub.com/cmd/interaction/infras/client"
	infraredis "EngageHub.com/cmd/interaction/infras/redis"
	"EngageHub.com/cmd/interaction/service"
	"EngageHub.com/config"
	"EngageHub.com/pkg/errno"
	"EngageHub.com/pkg/fanout"
	"EngageHub.com/pkg/moderation"
	"EngageHub.com/pkg/mq"
	"EngageHub.com/pkg/utils"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/cors"
)

func Init() {
	config.Init()
	dal.Init()
	infraredis.Load()
}

func main() {
	Init()

	rabbitURL := fmt.Sprintf("amqp://%s:%s@%s/",
		config.ConfigInfo.RabbitMq.Username,
		config.ConfigInfo.RabbitMq.Password,
		config.ConfigInfo.RabbitMq.Addr)

	producer, err := mq.NewProducer(rabbitURL)
	if err != nil {
		hlog.Fatalf("failed to init mq producer: %v", err)
	}
	defer producer.Close()

	registry := fanout.NewRegistry()

	// broker桥接消费者挂了只影响跨实例广播，本实例推送不受影响
	consumer, err := mq.NewEventConsumer(rabbitURL, registry)
	if err != nil {
		hlog.Warnf("failed to init fanout bridge consumer: %v", err)
	} else {
		defer consumer.Close()
		if err := consumer.Start(context.Background()); err != nil {
			hlog.Warnf("failed to start fanout bridge consumer: %v", err)
		}
	}

	cacheClient := infraredis.GetClient()
	likeCache := infraredis.NewLikeCacheManager(cacheClient)
	commentCache := infraredis.NewCommentCacheManager(cacheClient)

	userClient, err := client.NewUserClient(cacheClient)
	if err != nil {
		hlog.Fatalf("failed to init user service client: %v", err)
	}

	pipeline := moderation.NewPipeline(
		moderation.Strategy{
			TextWeight:       config.ConfigInfo.Moderation.TextWeight,
			ImageWeight:      config.ConfigInfo.Moderation.ImageWeight,
			VideoWeight:      config.ConfigInfo.Moderation.VideoWeight,
			LinkWeight:       config.ConfigInfo.Moderation.LinkWeight,
			ApproveThreshold: config.ConfigInfo.Moderation.ApproveThreshold,
			ReviewThreshold:  config.ConfigInfo.Moderation.ReviewThreshold,
		},
		config.ConfigInfo.Moderation.SensitiveWords,
		config.ConfigInfo.Moderation.DangerousDomains,
		nil, // 外部审核能力暂未接入，图像和视频走本地放行
	)

	idgen, err := utils.NewIDGenerator(1, 1)
	if err != nil {
		hlog.Fatalf("failed to init id generator: %v", err)
	}

	ctx := context.Background()
	eventService := service.NewEventService(service.DBEventStore{}, producer)
	likeService := service.NewLikeService(ctx, likeCache, service.DBLikeStore{}, eventService)
	commentService := service.NewCommentService(ctx, service.DBCommentStore{}, pipeline,
		eventService, registry, commentCache, userClient, idgen)
	consistencyService := service.NewConsistencyService(likeCache, service.DBLikeStore{},
		service.DBEventStore{}, eventService)

	// 启动时先补投历史滞留事件，再开周期巡检
	consistencyService.RecoverPendingEvents(ctx)
	consistencyService.StartSweep()
	defer consistencyService.Stop()

	addr := config.ConfigInfo.Server.Addr
	if addr == "" {
		addr = "0.0.0.0:8893"
	}
	r := server.New(
		server.WithHostPorts(addr),
		server.WithHandleMethodNotAllowed(true),
	)
	r.NoHijackConnPool = true

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:8870", "http://localhost:8888"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	r.Use(recovery.Recovery(recovery.WithRecoveryHandler(
		func(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte) {
			hlog.SystemLogger().CtxErrorf(ctx, "[Recovery] err=%v\nstack=%s", err, stack)
			c.JSON(consts.StatusInternalServerError, map[string]interface{}{
				"code":    errno.ServiceErrCode,
				"message": fmt.Sprintf("[Recovery] err=%v", err),
			})
		})))

	h := NewHandlers(likeService, commentService, consistencyService, registry)
	register(r, h)

	r.Spin()
}

func register(r *server.Hertz, h *Handlers) {
	r.GET("/ping", h.Ping)

	interaction := r.Group("/interaction")
	{
		interaction.POST("/like/toggle", h.ToggleLike)
		interaction.GET("/like/count", h.GetLikeCount)
		interaction.GET("/like/status", h.IsLiked)
		interaction.POST("/likes/batch-status", h.BatchLikeStatus)
		interaction.GET("/like/users", h.ListLikers)

		interaction.POST("/comment/add", h.AddComment)
		interaction.GET("/comment/list", h.GetComments)
		interaction.GET("/comment/replies", h.GetCommentReplies)
		interaction.POST("/comment/update", h.UpdateComment)
		interaction.POST("/comment/delete", h.DeleteComment)
		interaction.GET("/comments/subscribe", h.SubscribeComments)

		interaction.POST("/moderate", h.Moderate)
		interaction.POST("/recover", h.RecoverTarget)
		interaction.GET("/consistency/check", h.CheckTarget)
	}
}
