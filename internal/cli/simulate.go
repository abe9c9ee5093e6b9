package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"pricewatch/internal/pricing"
)

var (
	simulateProduct string
	simulateCurrent float64
	simulateTarget  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次价格触发并走完整的通知流程",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateProduct == "" {
			return errors.New("--product 必须提供")
		}
		if simulateCurrent <= 0 || simulateTarget <= 0 {
			return errors.New("--current 与 --target 必须大于 0")
		}

		current, err := pricing.FromFloat(simulateCurrent)
		if err != nil {
			return err
		}
		target, err := pricing.FromFloat(simulateTarget)
		if err != nil {
			return err
		}

		return getApp().SimulateAlert(cmd.Context(), simulateProduct, current, target)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateProduct, "product", "", "商品 ID")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "模拟的当前价格")
	simulateCmd.Flags().Float64Var(&simulateTarget, "target", 0, "提醒的目标价格")
}
