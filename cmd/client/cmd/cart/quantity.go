package cart

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/internal/domain/entity"
)

var IncCmd = &cobra.Command{
	Use:   "inc <line-id>",
	Short: "Увеличить количество на 1",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return adjust(cmd, args[0], 1)
	},
}

var DecCmd = &cobra.Command{
	Use:   "dec <line-id>",
	Short: "Уменьшить количество на 1",
	Long:  `Уменьшает количество. Строка с нулевым количеством удаляется из корзины.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return adjust(cmd, args[0], -1)
	},
}

func adjust(cmd *cobra.Command, id string, delta int) error {
	app, err := output.App(cmd)
	if err != nil {
		return err
	}

	cart := app.Store(entity.KindCartItem)
	err = app.Optimistic().AdjustQuantity(cmd.Context(), cart, id, delta)
	if errors.Is(err, entity.ErrNotFound) {
		return fmt.Errorf("строка %s не найдена в корзине", id)
	}
	if err != nil {
		return err
	}

	rec, ok := cart.Get(id)
	if !ok {
		fmt.Println(output.Warn("Строка удалена из корзины"))
		return nil
	}
	if item, ok := rec.Fields.(entity.CartItemFields); ok {
		fmt.Printf("Количество: %d\n", item.Quantity)
	}
	return nil
}
