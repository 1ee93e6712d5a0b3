package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/internal/app/client"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Работать в фоне и синхронизировать изменения",
	Long: `Держит клиент запущенным: следит за сетью и отправляет очередь
при каждом восстановлении связи. Завершается по Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		unsubscribe := app.Sync().Subscribe(func(s client.Status) {
			if jsonOutput {
				_ = output.JSON(s)
				return
			}
			pending := 0
			for _, st := range s.Stores {
				pending += st.PendingCount
			}
			fmt.Printf("%s  в очереди: %d\n", output.State(s.State), pending)
		})
		defer unsubscribe()

		fmt.Println("Клиент запущен. Для выхода нажмите Ctrl+C.")
		<-ctx.Done()
		return nil
	},
}
