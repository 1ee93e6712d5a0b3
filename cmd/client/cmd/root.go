package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"possync/internal/app/client"
	"possync/internal/app/client/config"
	"possync/internal/utils/logger"
)

var (
	cfgFile    string
	cfg        *config.Config
	log        *slog.Logger
	app        *client.App
	debug      bool
	jsonOutput bool
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "possync",
	Short: "PosSync - касса, которая работает без сети",
	Long: `PosSync - клиент кассы с локальным хранением данных.

Товары, корзина и продажи сохраняются локально и сразу доступны.
Изменения, сделанные без сети, ставятся в очередь и отправляются
на сервер, как только связь восстановится.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	err := rootCmd.Execute()
	if app != nil {
		app.Shutdown()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log = logger.NewWithLevel(cfg.Env, level)

	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("ошибка запуска клиента: %w", err)
	}

	cmd.SetContext(client.WithApp(ctx, app))
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		if err := godotenv.Load(cfgFile); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "файл с переменными окружения")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера (host:port)")
}
