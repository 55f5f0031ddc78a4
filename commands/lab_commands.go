package commands

import (
	"context"
	"strings"
	"time"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/labclient"
)

// LabsRefreshJobID is the scheduler job id consulted by the post-action
// debounce check below.
const LabsRefreshJobID = "labs_refresh"

// ControlLab proxies start/stop/wipe to the lab HTTPS API and, on success,
// triggers a labs refresh after a debounce check.
func (s *Service) ControlLab(ctx context.Context, workerID, labID, action string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("control_lab_"+action, start, err) }()

	client, cerr := s.labClientFor(ctx, workerID)
	if cerr != nil {
		err = cerr
		return fromErr(err, false)
	}

	switch strings.ToLower(action) {
	case "start":
		err = client.StartLab(ctx, labID)
	case "stop":
		err = client.StopLab(ctx, labID)
	case "wipe":
		err = client.WipeLab(ctx, labID)
	default:
		err = apperr.NewValidation("lab", "unknown action "+action)
	}
	if err != nil {
		return fromErr(apperr.NewUpstreamOperation("lab", action+" failed", err), false)
	}

	s.maybeTriggerLabsRefresh(ctx, workerID)
	return ok(map[string]string{"worker_id": workerID, "lab_id": labID, "action": action})
}

// ImportLabInput is the input to ImportLab.
type ImportLabInput struct {
	WorkerID string
	Title    string
	YAML     string
}

// ImportLab proxies a YAML topology import to the lab HTTPS API and
// triggers a labs refresh on success.
func (s *Service) ImportLab(ctx context.Context, in ImportLabInput) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("import_lab", start, err) }()

	if strings.TrimSpace(in.YAML) == "" {
		err = apperr.NewValidation("lab", "yaml content is required")
		return fromErr(err, false)
	}

	client, cerr := s.labClientFor(ctx, in.WorkerID)
	if cerr != nil {
		err = cerr
		return fromErr(err, false)
	}

	labID, ierr := client.ImportLab(ctx, in.Title, in.YAML)
	if ierr != nil {
		err = apperr.NewUpstreamOperation("lab", "import failed", ierr)
		return fromErr(err, false)
	}

	s.maybeTriggerLabsRefresh(ctx, in.WorkerID)
	return ok(map[string]string{"lab_id": labID, "title": in.Title})
}

// DeleteLab proxies a lab delete to the lab HTTPS API and triggers a labs
// refresh on success.
func (s *Service) DeleteLab(ctx context.Context, workerID, labID string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("delete_lab", start, err) }()

	client, cerr := s.labClientFor(ctx, workerID)
	if cerr != nil {
		err = cerr
		return fromErr(err, false)
	}

	if err = client.DeleteLab(ctx, labID); err != nil {
		return fromErr(apperr.NewUpstreamOperation("lab", "delete failed", err), false)
	}
	_ = s.Labs.Delete(ctx, workerID, labID)

	s.maybeTriggerLabsRefresh(ctx, workerID)
	return ok(map[string]string{"worker_id": workerID, "lab_id": labID})
}

// DownloadLab proxies a lab YAML download from the lab HTTPS API.
func (s *Service) DownloadLab(ctx context.Context, workerID, labID string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("download_lab", start, err) }()

	client, cerr := s.labClientFor(ctx, workerID)
	if cerr != nil {
		err = cerr
		return fromErr(err, false)
	}

	yamlBody, derr := client.DownloadLab(ctx, labID)
	if derr != nil {
		err = apperr.NewUpstreamOperation("lab", "download failed", derr)
		return fromErr(err, false)
	}
	return ok(map[string]string{"yaml": yamlBody})
}

func (s *Service) labClientFor(ctx context.Context, workerID string) (labclient.API, error) {
	agg, err := s.Workers.Get(ctx, workerID)
	if err != nil {
		return nil, err
	}
	st := agg.State()
	if st.HTTPSEndpoint == "" {
		return nil, apperr.NewValidation("worker", "worker has no lab service endpoint")
	}
	return s.LabAPI(st.HTTPSEndpoint), nil
}

// maybeTriggerLabsRefresh runs a best-effort, non-failing labs refresh
// after a lab-mutating proxy call, skipping it when the recurrent labs
// refresh job is already due within the configured threshold.
func (s *Service) maybeTriggerLabsRefresh(ctx context.Context, workerID string) {
	threshold := time.Duration(s.Config.Monitoring.UpcomingJobThresholdSeconds) * time.Second
	if nextFire, scheduled := s.Scheduler.NextRun(LabsRefreshJobID); scheduled {
		until := time.Until(nextFire)
		if until > 0 && until <= threshold {
			return
		}
	}
	if res := s.RefreshWorkerLabs(ctx, workerID); res.StatusCode >= 400 {
		s.logWarn(ctx, "post-action labs refresh failed for worker "+workerID, errorFromDetail(res.Detail))
	}
}
