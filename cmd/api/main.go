package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeromicro/go-zero/core/logx"

	v1 "go-messenger/cmd/api/router/v1"
	"go-messenger/internal/app"
	"go-messenger/internal/config"
	qadapter "go-messenger/internal/infrastructure/queue/adapter"
	pubsub "go-messenger/internal/infrastructure/pubsub/port"
	"go-messenger/internal/infrastructure/realtime"
	"go-messenger/internal/pkg/chat/application/broadcast"
	"go-messenger/internal/pkg/chat/application/task"
	"go-messenger/internal/pkg/chat/application/usecase"
	httpHandler "go-messenger/internal/pkg/chat/presentation/http"
)

func main() {
	cfg, err := config.Load()
	logx.Must(err)
	logx.MustSetup(cfg.Log)
	defer logx.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	stores, err := app.OpenStores(startCtx, cfg)
	logx.Must(err)
	defer stores.Close()
	sessions, err := app.OpenSessionCache(startCtx, cfg)
	logx.Must(err)
	defer sessions.Close()
	cancel()

	router := realtime.NewRouter()
	defer router.Close()

	transport, bridge, err := app.OpenTransport(cfg, router)
	logx.Must(err)
	defer transport.Close()
	if bridge != nil {
		go app.RunBridge(ctx, bridge, app.DefaultBackoff)
	}

	// Inline mode publishes from the request path; queue mode hands frames to cmd/worker.
	var publisher pubsub.Publisher = transport
	if cfg.PublishMode == config.PublishQueue {
		client, err := qadapter.NewAsynqClient(cfg.RedisURL)
		logx.Must(err)
		queued := task.NewQueuedPublisher(client)
		defer queued.Close()
		publisher = queued
	}
	b := broadcast.New(publisher).WithTimeout(cfg.PublishTimeout)

	signer, err := realtime.NewChannelSigner(cfg.ChannelKey, cfg.ChannelSecret)
	logx.Must(err)

	chatRepo, users := stores.Chat, stores.Users
	deps := httpHandler.Dependencies{
		Register:           usecase.NewRegisterUserUseCase(users),
		Sessions:           usecase.NewSessionUseCase(users, sessions, cfg.SessionTTL),
		UpdateProfile:      usecase.NewUpdateProfileUseCase(users),
		UpdateUserRole:     usecase.NewUpdateUserRoleUseCase(users),
		CreateConversation: usecase.NewCreateConversationUseCase(chatRepo, users, b),
		ListConversations:  usecase.NewListConversationsUseCase(chatRepo),
		GetConversation:    usecase.NewGetConversationUseCase(chatRepo),
		DeleteConversation: usecase.NewDeleteConversationUseCase(chatRepo, b),
		SendMessage:        usecase.NewSendMessageUseCase(chatRepo, b),
		GetMessages:        usecase.NewGetMessageUseCase(chatRepo),
		MarkSeen:           usecase.NewMarkSeenUseCase(chatRepo, b),
		AuthorizeChannel:   usecase.NewAuthorizeChannelUseCase(chatRepo, signer),
		Router:             router,
		Verifier:           signer,
		RequestTimeout:     cfg.RequestTimeout,
	}

	r := gin.Default()
	v1.RegisterRoutes(r, deps)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logx.Infow("http server listening",
			logx.Field("addr", cfg.HTTPAddr),
			logx.Field("db_driver", cfg.DBDriver),
			logx.Field("pubsub_driver", cfg.PubSubDriver),
			logx.Field("publish_mode", cfg.PublishMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Errorw("http server failed", logx.Field("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Errorw("http shutdown", logx.Field("error", err.Error()))
	}
	logx.Info("http server stopped")
}
