package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/internal/domain/entity"
)

var listCmd = &cobra.Command{
	Use:   "list <kind>",
	Short: "Показать локальные записи",
	Long: `Выводит записи из локального хранилища, включая еще не отправленные.

Типы: store, subscription, category, staff, product, cart_item, sale.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := entity.ParseKind(args[0])
		if err != nil {
			return err
		}

		records := app.Store(kind).All()
		if jsonOutput {
			return output.JSON(records)
		}
		if len(records) == 0 {
			fmt.Println("Записи не найдены")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tСТАТУС\tПОЛЯ")
		for _, rec := range records {
			fields, err := json.Marshal(rec.Fields)
			if err != nil {
				return err
			}
			status := string(rec.Status)
			if rec.Status.IsPending() {
				status = output.Warn(status)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", rec.ID, status, fields)
		}
		return w.Flush()
	},
}
