package queue

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/internal/domain/entity"
)

// QueueCmd - просмотр и разбор очереди неотправленных изменений
var QueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Очередь неотправленных изменений",
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать очередь",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := output.App(cmd)
		if err != nil {
			return err
		}

		all := make([]entity.PendingMutation, 0)
		for _, kind := range entity.SyncOrder {
			all = append(all, app.Store(kind).Queue()...)
		}
		if output.IsJSON(cmd) {
			return output.JSON(all)
		}
		if len(all) == 0 {
			fmt.Println(output.OK("Очередь пуста"))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tОПЕРАЦИЯ\tТИП\tЗАПИСЬ\tПОПЫТОК\tСОЗДАНА\tОШИБКА")
		for _, m := range all {
			op := string(m.Kind)
			if m.DeadLetter {
				op = output.Fail(op + " (отклонена)")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				m.ID, op, m.Entity, m.TargetID, m.Attempts,
				m.Timestamp.Local().Format(time.DateTime), m.LastError)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println("\nОтклоненные операции: possync queue retry|discard <kind> <mutation-id>")
		return nil
	},
}

var RetryCmd = &cobra.Command{
	Use:   "retry <kind> <mutation-id>",
	Short: "Вернуть отклоненную операцию в очередь",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := output.App(cmd)
		if err != nil {
			return err
		}
		kind, err := entity.ParseKind(args[0])
		if err != nil {
			return err
		}
		if err := app.Store(kind).RetryDeadLetter(args[1]); err != nil {
			return err
		}
		fmt.Println(output.OK("Операция вернется в очередь при следующей синхронизации"))
		return nil
	},
}

var DiscardCmd = &cobra.Command{
	Use:   "discard <kind> <mutation-id>",
	Short: "Отменить отклоненную операцию",
	Long:  `Удаляет операцию из очереди и возвращает локальную запись в прежнее состояние.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := output.App(cmd)
		if err != nil {
			return err
		}
		kind, err := entity.ParseKind(args[0])
		if err != nil {
			return err
		}
		if err := app.Store(kind).DiscardDeadLetter(args[1]); err != nil {
			return err
		}
		fmt.Println(output.OK("Операция отменена"))
		return nil
	},
}
