package cart

import (
	"fmt"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/internal/domain/entity"
)

var (
	addQty   int
	addPrice float64
)

var AddCmd = &cobra.Command{
	Use:   "add <product-id>",
	Short: "Добавить товар в корзину",
	Long: `Добавляет товар в корзину. Если товар уже есть, увеличивает количество.
Цена по умолчанию берется из карточки товара.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := output.App(cmd)
		if err != nil {
			return err
		}

		productID := args[0]
		price := addPrice
		if price == 0 {
			rec, ok := app.Store(entity.KindProduct).Get(productID)
			if !ok {
				return fmt.Errorf("товар %s не найден, укажите цену через --price", productID)
			}
			if p, ok := rec.Fields.(entity.ProductFields); ok {
				price = p.SPrice
				if price == 0 {
					price = p.Price
				}
			}
		}

		cfg := app.Config()
		id, err := app.Optimistic().AddToCart(cmd.Context(), app.Store(entity.KindCartItem), entity.CartItemFields{
			ProductID: productID,
			Quantity:  addQty,
			SPrice:    price,
			StaffID:   cfg.StaffID,
			StoreID:   cfg.StoreID,
		})
		if err != nil {
			return fmt.Errorf("не удалось добавить товар: %w", err)
		}

		fmt.Printf("%s строка %s\n", output.OK("Добавлено:"), id)
		return nil
	},
}

func init() {
	AddCmd.Flags().IntVarP(&addQty, "qty", "q", 1, "количество")
	AddCmd.Flags().Float64Var(&addPrice, "price", 0, "цена продажи")
}
