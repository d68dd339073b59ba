package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-btnodedb"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "输出版本信息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), btnodedb.VersionInfo())
			return err
		},
	}
}
