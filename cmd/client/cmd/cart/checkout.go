package cart

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/internal/app/client"
	"possync/internal/domain/entity"
)

var paymentMethod string

var CheckoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Оформить продажу",
	Long: `Создает продажу из строк корзины и очищает корзину.
Без сети продажа сохраняется локально и отправится позже.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := output.App(cmd)
		if err != nil {
			return err
		}

		cfg := app.Config()
		id, err := app.Optimistic().Checkout(cmd.Context(),
			app.Store(entity.KindCartItem),
			app.Store(entity.KindSale),
			entity.SaleFields{
				StoreID:       cfg.StoreID,
				StaffID:       cfg.StaffID,
				PaymentMethod: paymentMethod,
			},
		)
		if errors.Is(err, client.ErrEmptyCart) {
			fmt.Println("Корзина пуста")
			return nil
		}
		if err != nil {
			return fmt.Errorf("не удалось оформить продажу: %w", err)
		}

		rec, _ := app.Store(entity.KindSale).Get(id)
		if output.IsJSON(cmd) {
			return output.JSON(rec)
		}
		if sale, ok := rec.Fields.(entity.SaleFields); ok {
			fmt.Printf("%s %s на сумму %.2f\n", output.OK("Продажа оформлена:"), rec.ID, sale.Total)
		}
		if rec.Status.IsPending() {
			fmt.Println(output.Warn("Продажа будет отправлена при появлении сети"))
		}
		return nil
	},
}

func init() {
	CheckoutCmd.Flags().StringVar(&paymentMethod, "payment", "cash", "способ оплаты: cash, card")
}
