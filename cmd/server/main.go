package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Tyrowin/roomchat/internal/logging"
	"github.com/Tyrowin/roomchat/internal/server"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config := server.NewConfigFromEnv()

	logger, err := logging.New(config.LogLevel, config.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if config.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(config, logger)
	logger.Info("Starting RoomChat server",
		zap.String("port", config.Port),
		zap.Strings("allowedOrigins", config.AllowedOrigins))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		config.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"roomchat": func(ctx context.Context) error {
				logger.Info("Graceful shutdown initiated")
				return srv.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("Server exited", zap.Int("exitCode", exitCode))
	_ = logger.Sync()
	os.Exit(exitCode)
}
