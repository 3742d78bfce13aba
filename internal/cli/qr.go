package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/TheBase/TheBase/internal/config"
)

var (
	qrOut  string
	qrSize int
)

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Write a QR code of the dashboard URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		url := dashboardURL(cfg)
		if err := qrcode.WriteFile(url, qrcode.Medium, qrSize, qrOut); err != nil {
			return fmt.Errorf("write qr code: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "QR code for %s written to %s\n", url, qrOut)
		return nil
	},
}

// dashboardURL is the public URL when configured, else the listen address.
func dashboardURL(cfg *config.Config) string {
	if cfg.Gateway.PublicURL != "" {
		return cfg.Gateway.PublicURL
	}
	return "http://" + net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port))
}

func init() {
	qrCmd.Flags().StringVar(&qrOut, "out", "thebase-qr.png", "Output PNG path")
	qrCmd.Flags().IntVar(&qrSize, "size", 256, "Image size in pixels")
	rootCmd.AddCommand(qrCmd)
}
