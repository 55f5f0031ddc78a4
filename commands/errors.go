package commands

import (
	"errors"

	"github.com/cml-fleet/worker-engine/apperr"
)

func asAppErr(err error) (*apperr.Error, bool) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
