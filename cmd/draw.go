package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var drawCmd = &cobra.Command{
	Use:   "draw <eventId>",
	Short: "Run the lottery of one event now",
	Args:  cobra.ExactArgs(1),
	RunE:  draw,
}

func draw(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.Draw(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
