package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mattchengg/susgo/internal/crypt"
)

func (a *app) decryptCmd() *cobra.Command {
	var (
		version string
		inFile  string
		outFile string
		encVer  int
	)
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt an encrypted firmware package",
		Example: "  susgo -m SM-G998B -r EUX -i 351234567890123 decrypt -v VER/CODE -I file.enc4 -o file.zip\n" +
			"  susgo -m SM-G998B -r EUX decrypt -V 2 -v VER/CODE -I file.enc2 -o file.zip",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDevice(); err != nil {
				return err
			}
			ver, err := crypt.ParseEncVersion(encVer)
			if err != nil {
				return err
			}
			if outFile == "" {
				outFile = crypt.DecryptedName(inFile)
				if outFile == inFile {
					return errors.New("output file (-o) is required")
				}
			}

			// Only V4 sends the device id to the server.
			var deviceID string
			if ver == crypt.V4 {
				if deviceID, err = a.deviceID(cmd.Context()); err != nil {
					return err
				}
			}

			key, err := a.key(cmd.Context(), ver, version, deviceID)
			if err != nil {
				return err
			}
			if err := a.decryptFile(cmd.Context(), key, inFile, outFile); err != nil {
				return err
			}
			a.log.Info("decryption completed", "output", outFile)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&version, "version", "v", "", "firmware version")
	f.StringVarP(&inFile, "input", "I", "", "encrypted input file")
	f.StringVarP(&outFile, "output", "o", "", "decrypted output file (default: input without .enc2/.enc4)")
	f.IntVarP(&encVer, "enc-version", "V", 4, "encryption version (2 or 4)")
	cmd.MarkFlagRequired("version")
	cmd.MarkFlagRequired("input")
	return cmd
}
