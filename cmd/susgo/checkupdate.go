package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mattchengg/susgo/internal/versionfetch"
)

func (a *app) fetcher() *versionfetch.Fetcher {
	f := versionfetch.New()
	f.BaseURL = a.cfg.VersionURL
	return f
}

func (a *app) checkUpdateCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "checkupdate",
		Short: "Check the latest firmware version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDevice(); err != nil {
				return err
			}
			if !all {
				ver, err := a.fetcher().Latest(cmd.Context(), a.cfg.Model, a.cfg.Region)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ver)
				return nil
			}

			info, err := a.fetcher().Info(cmd.Context(), a.cfg.Model, a.cfg.Region)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "latest:", info.Latest.Version)
			for _, u := range info.Upgrade {
				size := "?"
				if u.Size > 0 {
					size = humanize.IBytes(uint64(u.Size))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "upgrade: %s (%s)\n", u.Version, size)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "also list upgrade versions")
	return cmd
}
