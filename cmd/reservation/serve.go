package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/spf13/cobra"

	"github.com/uma-arai/sbcntr-reservation/internal/app"
	"github.com/uma-arai/sbcntr-reservation/internal/common/config"
	"github.com/uma-arai/sbcntr-reservation/internal/common/utils"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reservation service until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 設定の読み込み
			cfg, err := config.LoadConfig(opts.ConfigPath)
			if err != nil {
				return utils.WithStack(fmt.Errorf("failed to load config: %w", err))
			}

			// X-Ray設定
			if cfg.EnableTracing {
				if err := xray.Configure(xray.Config{
					DaemonAddr:     "127.0.0.1:2000", // X-Rayデーモンのアドレス
					ServiceVersion: "1.0.0",
				}); err != nil {
					log.Printf("Failed to configure X-Ray: %v", err)
					// X-Ray設定失敗時はデフォルトの設定を使用
					if configErr := xray.Configure(xray.Config{}); configErr != nil {
						return fmt.Errorf("failed to configure default X-Ray settings: %w", configErr)
					}
				}
				os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
			}

			// シグナルハンドリングの設定
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return utils.WithStack(fmt.Errorf("failed to create application: %w", err))
			}
			defer func() {
				if err := application.Close(); err != nil {
					log.Printf("Failed to close application: %v", err)
				}
			}()

			log.Printf("%s started", app.ProjectName)

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("reservation service failed: %w", err)
			}

			log.Printf("%s stopped", app.ProjectName)
			return nil
		},
	}
}
