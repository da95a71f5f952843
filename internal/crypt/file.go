package crypt

import (
	"bufio"
	"context"
	"os"

	"github.com/pkg/errors"
)

// DecryptFile decrypts inPath into outPath. The output file is removed if
// decryption fails.
func DecryptFile(ctx context.Context, key []byte, inPath, outPath string, opts ...Option) (err error) {
	inf, err := os.Open(inPath)
	if err != nil {
		return &IOError{Op: "open input", Err: err}
	}
	defer inf.Close()

	stat, err := inf.Stat()
	if err != nil {
		return &IOError{Op: "stat input", Err: err}
	}

	outf, err := os.Create(outPath)
	if err != nil {
		return &IOError{Op: "create output", Err: err}
	}
	defer func() {
		if err != nil {
			outf.Close()
			os.Remove(outPath)
		}
	}()

	bw := bufio.NewWriterSize(outf, 1<<20)
	if err = Decrypt(ctx, key, bufio.NewReaderSize(inf, 1<<20), stat.Size(), bw, opts...); err != nil {
		return errors.WithMessagef(err, "decrypt %s", inPath)
	}
	if err = bw.Flush(); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	if err = outf.Close(); err != nil {
		return &IOError{Op: "close output", Err: err}
	}
	return nil
}
