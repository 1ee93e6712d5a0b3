package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/internal/app/client"
)

var (
	refresh    bool
	resetStats bool
	showStats  bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Отправить очередь на сервер",
	Long: `Воспроизводит накопленные изменения на сервере в порядке
магазины, подписки, категории, сотрудники, товары, корзина, продажи.

С флагом --refresh после отправки загружает свежие данные с сервера.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := output.App(cmd)
		if err != nil {
			return err
		}

		if resetStats {
			app.Sync().ResetStats()
			fmt.Println("Статистика сброшена")
			return nil
		}
		if showStats {
			return printStats(cmd, app)
		}
		return runSync(cmd, app)
	},
}

func runSync(cmd *cobra.Command, app *client.App) error {
	ctx := cmd.Context()

	if !app.CheckConnection(ctx).Online() {
		return fmt.Errorf("сервер недоступен, изменения останутся в очереди")
	}

	result, err := trigger(ctx, app)
	if err != nil {
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}
	if refresh {
		if err := app.Sync().FetchInitialData(ctx); err != nil {
			return fmt.Errorf("ошибка загрузки данных: %w", err)
		}
	}

	if output.IsJSON(cmd) {
		return output.JSON(result)
	}

	switch {
	case result.Aborted:
		fmt.Println(output.Warn("Связь пропала во время синхронизации"))
	case result.Success:
		fmt.Println(output.OK("Синхронизация завершена"))
	default:
		fmt.Println(output.Warn("Синхронизация завершена с ошибками"))
	}
	fmt.Printf("Время выполнения: %v\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Отправлено: %d\n", result.Uploaded)
	if result.Deferred > 0 {
		fmt.Printf("Отложено до создания связанных записей: %d\n", result.Deferred)
	}
	if result.DeadLettered > 0 {
		fmt.Printf("%s: %d (см. possync queue list)\n", output.Fail("Отклонено сервером"), result.DeadLettered)
	}

	for i, e := range result.Errors {
		if i == 3 {
			fmt.Printf("  ... и еще %d ошибок\n", len(result.Errors)-3)
			break
		}
		fmt.Printf("  • %s %s %s: %s\n", e.Operation, e.Kind, e.RecordID, e.Error)
	}
	return nil
}

// trigger ждет окончания фонового прохода, начатого при запуске.
func trigger(ctx context.Context, app *client.App) (*client.SyncResult, error) {
	for {
		result, err := app.Sync().TriggerSync(ctx)
		if err != nil || !result.Skipped {
			return result, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func printStats(cmd *cobra.Command, app *client.App) error {
	stats := app.Sync().GetStats()
	if output.IsJSON(cmd) {
		return output.JSON(stats)
	}

	fmt.Println(output.Bold("Статистика синхронизации"))
	fmt.Printf("  Всего проходов: %d\n", stats.TotalSyncs)
	fmt.Printf("  Отправлено: %d\n", stats.TotalUploaded)
	fmt.Printf("  Отложено: %d\n", stats.TotalDeferred)
	fmt.Printf("  Отклонено: %d\n", stats.TotalDeadLettered)
	fmt.Printf("  Ошибок: %d\n", stats.TotalErrors)
	fmt.Printf("  Средняя длительность: %.2f с\n", stats.AvgSyncDuration)
	if !stats.LastSuccessful.IsZero() {
		fmt.Printf("  Последний успешный: %s\n", stats.LastSuccessful.Local().Format(time.DateTime))
	}
	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&refresh, "refresh", false, "загрузить данные с сервера после отправки")
	SyncCmd.Flags().BoolVar(&showStats, "stats", false, "показать статистику")
	SyncCmd.Flags().BoolVar(&resetStats, "reset-stats", false, "сбросить статистику")
}
