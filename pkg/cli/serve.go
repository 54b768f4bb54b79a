package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/recall/pkg/cli/config"
	httpctrl "github.com/secmon-lab/recall/pkg/controller/http"
	"github.com/secmon-lab/recall/pkg/service/archive"
	"github.com/secmon-lab/recall/pkg/service/embedding"
	"github.com/secmon-lab/recall/pkg/service/reply"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		addr       string
		signingKey string
		repoCfg    config.Repository
		geminiCfg  config.Gemini
		chatCfg    config.Chat
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("RECALL_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "jwt-signing-key",
			Usage:       "HMAC key for session token signing (required)",
			Required:    true,
			Sources:     cli.EnvVars("RECALL_JWT_SIGNING_KEY"),
			Destination: &signingKey,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, chatCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the chat API server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Server configuration",
				"addr", addr,
				"repository", repoCfg,
				"gemini", geminiCfg,
			)

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err)
				}
			}()

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return err
			}
			if llmClient == nil {
				return goerr.New("gemini-project is required to run the server")
			}

			chatConfig, err := chatCfg.Configure()
			if err != nil {
				return err
			}

			embedSvc, err := embedding.New(llmClient, chatConfig.EmbeddingOptions()...)
			if err != nil {
				return goerr.Wrap(err, "failed to create embedding service")
			}

			replySvc, err := reply.New(llmClient, chatConfig.ReplyOptions()...)
			if err != nil {
				return goerr.Wrap(err, "failed to create reply service")
			}

			chatOpts := chatConfig.ChatOptions()
			if bucket := chatConfig.ArchiveBucket(); bucket != "" {
				archiveSvc, err := archive.New(ctx, bucket)
				if err != nil {
					return goerr.Wrap(err, "failed to create archive service")
				}
				defer func() {
					if err := archiveSvc.Close(); err != nil {
						logger.Error("failed to close archive service", "error", err)
					}
				}()
				chatOpts = append(chatOpts, usecase.WithArchiver(archiveSvc))
				logger.Info("Exchange archive enabled", "bucket", bucket)
			}

			authUC, err := usecase.NewAuthUseCase(repo, []byte(signingKey))
			if err != nil {
				return goerr.Wrap(err, "failed to create auth use case")
			}

			chatUC, err := usecase.NewChatUseCase(repo, embedSvc, replySvc, chatOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create chat use case")
			}

			uc := usecase.New(authUC, chatUC)

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logger.Info("Server shutdown completed")
				return nil
			}
		},
	}
}
