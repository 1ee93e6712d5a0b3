package cart

import (
	"github.com/spf13/cobra"
)

// CartCmd - родительская команда для работы с корзиной
var CartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Корзина",
	Long:  `Добавление товаров, изменение количества и оформление продажи.`,
}
