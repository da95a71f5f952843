package main

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mattchengg/susgo/internal/crypt"
	"github.com/mattchengg/susgo/internal/firmware"
	"github.com/mattchengg/susgo/internal/fus"
	"github.com/mattchengg/susgo/internal/progress"
)

type downloadOpts struct {
	version   string
	outDir    string
	outFile   string
	showMD5   bool
	noDecrypt bool
}

func (a *app) downloadCmd() *cobra.Command {
	var o downloadOpts
	cmd := &cobra.Command{
		Use:     "download",
		Short:   "Download firmware and decrypt it",
		Example: "  susgo -m SM-G998B -r EUX -i 35123456 download -O .",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDevice(); err != nil {
				return err
			}
			if o.outDir == "" && o.outFile == "" {
				return errors.New("either -O or -o must be specified")
			}
			return a.download(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.version, "version", "v", "", "firmware version (default: latest)")
	f.StringVarP(&o.outDir, "out-dir", "O", "", "output directory")
	f.StringVarP(&o.outFile, "out-file", "o", "", "output file")
	f.BoolVarP(&o.showMD5, "md5", "M", false, "show the server MD5 and verify fresh downloads against it")
	f.BoolVar(&o.noDecrypt, "no-decrypt", false, "keep the encrypted file")
	return cmd
}

func (a *app) download(ctx context.Context, stdout io.Writer, o downloadOpts) error {
	deviceID, err := a.deviceID(ctx)
	if err != nil {
		return err
	}

	client, err := a.newFUSClient(ctx)
	if err != nil {
		return err
	}

	version := o.version
	if version == "" {
		if version, err = a.fetcher().Latest(ctx, a.cfg.Model, a.cfg.Region); err != nil {
			return errors.Wrap(err, "get latest version")
		}
	}
	// V2 keys hash the version exactly as given.
	keyVersion := version
	version = firmware.NormalizeVersion(version)

	info, err := client.BinaryInform(ctx, fus.InformRequest{
		Version:  version,
		Model:    a.cfg.Model,
		Region:   a.cfg.Region,
		DeviceID: deviceID,
	})
	if err != nil {
		return errors.Wrap(err, "get binary info")
	}
	if info.Status != 200 {
		return errors.Errorf("DownloadBinaryInform returned %d", info.Status)
	}
	if info.BinaryName == "" {
		return errors.New("failed to find firmware bundle")
	}

	out := o.outFile
	if out == "" {
		out = filepath.Join(o.outDir, info.BinaryName)
	} else if st, err := os.Stat(out); err == nil && st.IsDir() {
		out = filepath.Join(out, info.BinaryName)
	}

	fmt.Fprintln(stdout, "Device:", a.cfg.Model)
	fmt.Fprintln(stdout, "CSC:", a.cfg.Region)
	fmt.Fprintln(stdout, "FW Version:", version)
	fmt.Fprintln(stdout, "FW Size:", humanize.IBytes(uint64(info.BinaryByteSize)))
	fmt.Fprintln(stdout, "File Path:", out)

	dec := crypt.DecryptedName(out)
	if _, err := os.Stat(dec); err == nil && dec != out {
		fmt.Fprintln(stdout, "File already downloaded and decrypted!")
		return nil
	}

	var offset int64
	if st, err := os.Stat(out); err == nil {
		offset = st.Size()
	}
	switch {
	case offset == info.BinaryByteSize:
		fmt.Fprintln(stdout, "Already downloaded!")
	case offset > info.BinaryByteSize:
		return errors.Errorf("%s is larger than the firmware (%d > %d bytes), remove it first", out, offset, info.BinaryByteSize)
	default:
		if offset > 0 {
			a.log.Info("resuming", "file", info.BinaryName, "offset", offset)
		} else {
			a.log.Info("downloading", "file", info.BinaryName)
		}
		if err := a.fetch(ctx, client, info, out, offset, o.showMD5); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Download completed.")
	}

	if o.noDecrypt || dec == out {
		return nil
	}
	return a.autoDecrypt(ctx, stdout, out, dec, info.BinaryName, keyVersion, deviceID)
}

// fetch downloads the binary into out starting at offset.
func (a *app) fetch(ctx context.Context, client *fus.Client, info *fus.BinaryInfo, out string, offset int64, checkMD5 bool) error {
	if err := client.BinaryInit(ctx, info.BinaryName); err != nil {
		return errors.Wrap(err, "init download")
	}
	resp, err := client.DownloadFile(ctx, info.ModelPath+info.BinaryName, offset)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var want []byte
	if checkMD5 {
		if hdr := resp.Header.Get("Content-MD5"); hdr != "" {
			if want, err = parseContentMD5(hdr); err != nil {
				a.log.Warn("ignoring malformed Content-MD5, download is not verified", "header", hdr, "err", err)
			} else {
				a.log.Info("server md5", "md5", fmt.Sprintf("%x", want))
			}
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	fd, err := os.OpenFile(out, flags, 0o644)
	if err != nil {
		return err
	}

	var sum hash.Hash
	var dst io.Writer = fd
	if want != nil && offset == 0 {
		sum = md5.New()
		dst = io.MultiWriter(fd, sum)
	}

	src := io.Reader(resp.Body)
	if progress.Enabled(os.Stderr) {
		bar := progress.New(os.Stderr, "Downloading ", info.BinaryByteSize).FitWidth(os.Stderr)
		bar.SetCurrent(offset)
		bar.Start()
		defer bar.Finish()
		src = bar.Reader(src)
	}

	n, copyErr := io.Copy(dst, src)
	closeErr := fd.Close()
	if copyErr != nil {
		return errors.Wrap(copyErr, "download interrupted, run again to resume")
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "close download")
	}
	if got := offset + n; got != info.BinaryByteSize {
		return errors.Errorf("download ended at %d of %d bytes, run again to resume", got, info.BinaryByteSize)
	}
	if sum != nil && !bytes.Equal(sum.Sum(nil), want) {
		return errors.Errorf("md5 mismatch: got %x, server says %x", sum.Sum(nil), want)
	}
	return nil
}

// parseContentMD5 decodes a base64 Content-MD5 header.
func parseContentMD5(hdr string) ([]byte, error) {
	sum, err := base64.StdEncoding.DecodeString(hdr)
	if err != nil {
		return nil, errors.Wrap(err, "decode Content-MD5")
	}
	if len(sum) != md5.Size {
		return nil, errors.Errorf("Content-MD5 is %d bytes, want %d", len(sum), md5.Size)
	}
	return sum, nil
}

func (a *app) autoDecrypt(ctx context.Context, stdout io.Writer, out, dec, filename, version, deviceID string) error {
	fmt.Fprintln(stdout, "Decrypting", out)

	key, err := a.key(ctx, crypt.EncVersionOf(filename), version, deviceID)
	if err != nil {
		return errors.WithMessage(err, "get decryption key")
	}
	if err := a.decryptFile(ctx, key, out, dec); err != nil {
		return err
	}
	if err := os.Remove(out); err != nil {
		a.log.Warn("could not remove encrypted file", "file", out, "err", err)
	}
	fmt.Fprintf(stdout, "File %s has been decrypted.\n", out)
	return nil
}
