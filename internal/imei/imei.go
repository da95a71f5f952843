// Package imei completes device identifiers for FUS requests. The servers
// want a plausible IMEI, so a TAC or longer prefix is filled up with random
// digits and a Luhn check digit.
package imei

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/pkg/errors"
)

const (
	Length    = 15
	MinPrefix = 8
)

var (
	ErrTooShort    = errors.Errorf("imei: need at least %d digits", MinPrefix)
	ErrTooLong     = errors.Errorf("imei: more than %d digits", Length)
	ErrNoValidIMEI = errors.New("imei: no accepted IMEI found")
)

// LuhnChecksum returns the check digit to append to digits.
func LuhnChecksum(digits string) int {
	digits += "0"
	parity := len(digits) % 2
	s := 0
	for idx, char := range digits {
		d := int(char - '0')
		if idx%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		s += d
	}
	return (10 - (s % 10)) % 10
}

// Valid reports whether imei is 15 digits with a correct check digit.
func Valid(imei string) bool {
	if len(imei) != Length || !isDecimal(imei) {
		return false
	}
	return LuhnChecksum(imei[:Length-1]) == int(imei[Length-1]-'0')
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Complete turns a prefix into a full IMEI. Full IMEIs are returned as they
// are, and so are non-numeric ids, which are taken to be serial numbers.
func Complete(prefix string, rnd *rand.Rand) (string, error) {
	if prefix != "" && !isDecimal(prefix) {
		return prefix, nil
	}
	switch {
	case len(prefix) < MinPrefix:
		return "", ErrTooShort
	case len(prefix) == Length:
		return prefix, nil
	case len(prefix) > Length:
		return "", ErrTooLong
	}

	digits := prefix
	for len(digits) < Length-1 {
		digits += fmt.Sprint(rnd.IntN(10))
	}
	return fmt.Sprintf("%s%d", digits, LuhnChecksum(digits)), nil
}

// CheckFunc asks the server whether it accepts imei.
type CheckFunc func(ctx context.Context, imei string) (bool, error)

// Probe tries up to attempts random completions of prefix until check
// accepts one. Complete ids are returned without probing.
func Probe(ctx context.Context, prefix string, attempts int, rnd *rand.Rand, check CheckFunc, log *slog.Logger) (string, error) {
	if len(prefix) == Length || (prefix != "" && !isDecimal(prefix)) {
		return prefix, nil
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := Complete(prefix, rnd)
		if err != nil {
			return "", err
		}
		ok, err := check(ctx, candidate)
		if err != nil {
			log.Warn("imei check failed", "attempt", attempt, "imei", candidate, "err", err)
			continue
		}
		if ok {
			log.Info("valid imei found", "attempt", attempt, "imei", candidate)
			return candidate, nil
		}
		log.Debug("imei rejected", "attempt", attempt, "imei", candidate)
	}
	return "", errors.Wrapf(ErrNoValidIMEI, "after %d tries", attempts)
}
