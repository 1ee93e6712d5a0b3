package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Состояние сети и очередей",
	RunE: func(cmd *cobra.Command, _ []string) error {
		status := app.Status()
		if jsonOutput {
			return output.JSON(status)
		}

		fmt.Printf("Состояние: %s\n", output.State(status.State))
		if status.LastSync.IsZero() {
			fmt.Println("Последняя синхронизация: никогда")
		} else {
			fmt.Printf("Последняя синхронизация: %s\n", status.LastSync.Local().Format(time.DateTime))
		}
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ТИП\tЗАПИСЕЙ\tВ ОЧЕРЕДИ\tОШИБОК\tПОСЛЕДНЯЯ ОШИБКА")
		for _, st := range status.Stores {
			failed := fmt.Sprint(st.FailedCount)
			if st.FailedCount > 0 {
				failed = output.Fail(failed)
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				st.Kind.DisplayName(),
				len(app.Store(st.Kind).All()),
				st.PendingCount,
				failed,
				st.Error,
			)
		}
		return w.Flush()
	},
}
