package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/cart"
	"possync/cmd/client/cmd/queue"
	"possync/cmd/client/cmd/sync"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Подготовить кассу к работе",
	Long: `Команда init проверяет соединение с сервером и загружает справочники:
магазины, сотрудников, категории и товары. Без сети касса работает
с данными, сохраненными при прошлом запуске.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Println("=== Инициализация PosSync ===")
		fmt.Printf("Сервер: %s\n", cfg.ServerAddress)
		fmt.Printf("Локальные данные: %s\n", cfg.DataPath)

		status := app.CheckConnection(cmd.Context())
		if !status.Online() {
			fmt.Println("Сервер недоступен, касса будет работать офлайн.")
			fmt.Println("Изменения отправятся при появлении сети.")
			return nil
		}

		if _, err := app.Sync().Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("ошибка загрузки данных: %w", err)
		}

		fmt.Println("Данные загружены:")
		for _, st := range app.Status().Stores {
			fmt.Printf("  %-14s %d\n", st.Kind.DisplayName(), len(app.Store(st.Kind).All()))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)

	rootCmd.AddCommand(sync.SyncCmd)

	rootCmd.AddCommand(cart.CartCmd)
	cart.CartCmd.AddCommand(cart.AddCmd)
	cart.CartCmd.AddCommand(cart.ListCmd)
	cart.CartCmd.AddCommand(cart.IncCmd)
	cart.CartCmd.AddCommand(cart.DecCmd)
	cart.CartCmd.AddCommand(cart.CheckoutCmd)

	rootCmd.AddCommand(queue.QueueCmd)
	queue.QueueCmd.AddCommand(queue.ListCmd)
	queue.QueueCmd.AddCommand(queue.RetryCmd)
	queue.QueueCmd.AddCommand(queue.DiscardCmd)
}
