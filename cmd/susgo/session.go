package main

import (
	"context"
	"math/rand/v2"
	"os"

	"github.com/pkg/errors"

	"github.com/mattchengg/susgo/internal/crypt"
	"github.com/mattchengg/susgo/internal/fus"
	"github.com/mattchengg/susgo/internal/imei"
	"github.com/mattchengg/susgo/internal/progress"
)

func (a *app) newFUSClient(ctx context.Context) (*fus.Client, error) {
	return fus.NewClient(ctx,
		fus.WithBaseURL(a.cfg.FUSURL),
		fus.WithDownloadURL(a.cfg.DownloadURL),
		fus.WithLogger(a.log),
	)
}

// deviceID returns the IMEI or serial to send. IMEI prefixes are completed
// and probed against the server.
func (a *app) deviceID(ctx context.Context) (string, error) {
	switch {
	case a.cfg.IMEI != "":
		if len(a.cfg.IMEI) == imei.Length {
			a.log.Info("IMEI is provided", "imei", a.cfg.IMEI)
			return a.cfg.IMEI, nil
		}
		rnd := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		return imei.Probe(ctx, a.cfg.IMEI, a.cfg.IMEIAttempts, rnd, a.imeiChecker(), a.log)
	case a.cfg.Serial != "":
		a.log.Info("serial number is provided", "serial", a.cfg.Serial)
		return a.cfg.Serial, nil
	}
	return "", errors.New("IMEI (-i) or serial number (-s) is required")
}

func (a *app) imeiChecker() imei.CheckFunc {
	var latest string
	return func(ctx context.Context, candidate string) (bool, error) {
		if latest == "" {
			ver, err := a.fetcher().Latest(ctx, a.cfg.Model, a.cfg.Region)
			if err != nil {
				return false, err
			}
			latest = ver
		}
		client, err := a.newFUSClient(ctx)
		if err != nil {
			return false, err
		}
		info, err := client.BinaryInform(ctx, fus.InformRequest{
			Version:  latest,
			Model:    a.cfg.Model,
			Region:   a.cfg.Region,
			DeviceID: candidate,
		})
		if err != nil {
			return false, err
		}
		return info.Status == 200, nil
	}
}

// key derives the firmware key. V4 opens its own FUS session.
func (a *app) key(ctx context.Context, ver crypt.EncVersion, version, deviceID string) ([]byte, error) {
	req := crypt.KeyRequest{
		Version:  version,
		Model:    a.cfg.Model,
		Region:   a.cfg.Region,
		DeviceID: deviceID,
	}
	var informer crypt.Informer
	if ver == crypt.V4 {
		client, err := a.newFUSClient(ctx)
		if err != nil {
			return nil, err
		}
		informer = client
	}
	return crypt.DeriveKey(ctx, ver, informer, req)
}

func (a *app) decryptOptions(bar *progress.Bar) []crypt.Option {
	opts := []crypt.Option{
		crypt.WithChunkSize(a.cfg.ChunkSize),
		crypt.WithWorkers(a.cfg.Workers),
		crypt.WithLogger(a.log),
	}
	if bar != nil {
		opts = append(opts, crypt.WithProgress(bar.SetCurrent))
	}
	return opts
}

// decryptFile runs DecryptFile behind a progress bar when stderr is a
// terminal.
func (a *app) decryptFile(ctx context.Context, key []byte, in, out string) error {
	stat, err := os.Stat(in)
	if err != nil {
		return err
	}
	var bar *progress.Bar
	if progress.Enabled(os.Stderr) {
		bar = progress.New(os.Stderr, "Decrypting ", stat.Size()).FitWidth(os.Stderr)
		bar.Start()
		defer bar.Finish()
	}
	return crypt.DecryptFile(ctx, key, in, out, a.decryptOptions(bar)...)
}
