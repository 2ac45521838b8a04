package httpapi

import (
	"errors"

	"github.com/enp6s0/dspgate/pkg/util"
)

func isInvalidBody(err error) bool {
	return errors.Is(err, errInvalidBody)
}

func isNotReady(err error) bool {
	return errors.Is(err, util.ErrNotReady) || errors.Is(err, util.ErrTransportDown)
}

func isNoSuchBlock(err error) bool {
	return errors.Is(err, util.ErrNoSuchBlock)
}

// isMalformed reports the class of errors spec §6 maps to 412: a channel
// spec that named a channel, block type, or value the block doesn't support.
func isMalformed(err error) bool {
	return errors.Is(err, util.ErrNoSuchChannel) ||
		errors.Is(err, util.ErrUnsupportedForBlockType) ||
		errors.Is(err, util.ErrOutOfRange) ||
		errors.Is(err, errMalformedSpec)
}
