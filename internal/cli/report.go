package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/pumbayo1/quiltracker/internal/app"
)

var (
	reportPeer      string
	reportBalance   string
	reportTimestamp string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "手动上报一次节点余额",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportBalance == "" {
			return errors.New("--balance 必须提供")
		}

		opts := app.ReportOptions{
			PeerID:    reportPeer,
			Balance:   reportBalance,
			Timestamp: reportTimestamp,
		}
		return getApp().Report(cmd.Context(), opts)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportPeer, "peer", "", "节点 Peer ID (默认取配置或主机名)")
	reportCmd.Flags().StringVar(&reportBalance, "balance", "", "余额文本, 如 '155.372 QUIL'")
	reportCmd.Flags().StringVar(&reportTimestamp, "timestamp", "", "观测时间 (RFC3339, 默认当前时间)")
}
