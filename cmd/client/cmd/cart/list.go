package cart

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/internal/domain/entity"
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Содержимое корзины",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := output.App(cmd)
		if err != nil {
			return err
		}

		lines := app.Store(entity.KindCartItem).All()
		if output.IsJSON(cmd) {
			return output.JSON(lines)
		}
		if len(lines) == 0 {
			fmt.Println("Корзина пуста")
			return nil
		}

		products := app.Store(entity.KindProduct)
		total := 0.0

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "СТРОКА\tТОВАР\tКОЛ-ВО\tЦЕНА\tСУММА\tСТАТУС")
		for _, rec := range lines {
			item, ok := rec.Fields.(entity.CartItemFields)
			if !ok {
				continue
			}
			name := item.ProductID
			if p, ok := products.Get(item.ProductID); ok {
				if pf, ok := p.Fields.(entity.ProductFields); ok {
					name = pf.Name
				}
			}
			sum := item.SPrice * float64(item.Quantity)
			total += sum
			fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%s\n", rec.ID, name, item.Quantity, item.SPrice, sum, rec.Status)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\nИтого: %s\n", output.Bold(fmt.Sprintf("%.2f", total)))
		return nil
	},
}
