package scheduler

import (
	"fmt"

	"github.com/cml-fleet/worker-engine/commands"
)

// errorFromResult turns a failed commands.Result into an error so
// workerpool.Run's per-item return slot carries the failure detail
// alongside the other items' outcomes.
func errorFromResult(res commands.Result) error {
	return fmt.Errorf("status %d: %s", res.StatusCode, res.Detail)
}
