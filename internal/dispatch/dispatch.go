// Package dispatch turns caller requests into commands for the worker
// peer and waits a bounded time for the answer. When the peer is slow
// the caller gets a pending acknowledgement instead of an error; the
// late reply is dropped by the link.
package dispatch

import (
	"context"
	"strconv"
	"time"

	"github.com/caesium-cloud/hera/internal/fault"
	"github.com/caesium-cloud/hera/internal/link"
	"github.com/caesium-cloud/hera/internal/metrics"
	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/internal/protocol"
	"github.com/caesium-cloud/hera/internal/repository"
	"github.com/caesium-cloud/hera/pkg/jsonmap"
	"github.com/caesium-cloud/hera/pkg/log"
)

const DefaultTimeout = 10 * time.Second

// Acknowledgements returned when the peer does not answer in time.
const (
	ExecutePending     = "execution request submitted, please wait"
	CancelPending      = "cancellation submitted, please wait"
	GeneratePending    = "version generation is taking a while, please wait"
	GenerateAllPending = "full version generation is taking a while, please wait"
)

// Result is the outcome of a dispatched command. Completed is false
// when the wait expired, in which case Message holds the pending
// acknowledgement and Success is meaningless.
type Result struct {
	Completed bool   `json:"completed"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

type Gate interface {
	IsAdmin(actor string) bool
	HasPermission(ctx context.Context, actor string, targetID uint, kind models.TargetKind) bool
}

type Repository interface {
	FindJob(ctx context.Context, id uint) (*models.Job, error)
	FindAction(ctx context.Context, id string) (*models.Action, error)
	UpdateAction(ctx context.Context, action *models.Action) error
	FindHistory(ctx context.Context, id uint) (*models.History, error)
	CreateHistory(ctx context.Context, history *models.History) error
	UpdateHistoryStatus(ctx context.Context, id uint, status models.Status) error
}

// Submitter runs fire-and-forget work, refusing it when saturated.
type Submitter interface {
	Submit(fn func()) error
}

type Bridge struct {
	slot    *link.Slot
	gate    Gate
	repo    Repository
	pool    Submitter
	timeout time.Duration
}

func New(slot *link.Slot, gate Gate, repo Repository, pool Submitter, timeout time.Duration) *Bridge {
	if slot == nil || gate == nil || repo == nil || pool == nil {
		panic("dispatch bridge requires slot, gate, repository and pool")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{slot: slot, gate: gate, repo: repo, pool: pool, timeout: timeout}
}

type ExecuteRequest struct {
	ActionID    string
	TriggerType models.TriggerType
	Actor       string
	// Owner, when set, executes on behalf of that identity and skips
	// the permission check.
	Owner string
}

// Execute records a running history for the action and asks the peer
// to run it. A completed successful result carries the action id.
func (b *Bridge) Execute(ctx context.Context, req ExecuteRequest) (Result, error) {
	deadline := time.Now().Add(b.timeout)

	if _, err := models.JobIDFromAction(req.ActionID); err != nil {
		return Result{}, fault.Invalid("invalid action id %q", req.ActionID)
	}

	trigger := req.TriggerType
	switch trigger {
	case 0:
		trigger = models.TriggerTypeManual
	case models.TriggerTypeManual, models.TriggerTypeManualRecover:
	default:
		return Result{}, fault.Invalid("unsupported trigger type %d", trigger)
	}

	checked := req.Owner == "" && !b.gate.IsAdmin(req.Actor)

	action, err := b.repo.FindAction(ctx, req.ActionID)
	if err != nil {
		if checked && repository.IsNotFound(err) {
			return Result{}, fault.Denied()
		}
		return Result{}, lookupFailure(err, "action %s does not exist", req.ActionID)
	}
	if checked && !b.gate.HasPermission(ctx, req.Actor, action.JobID, models.TargetJob) {
		return Result{}, fault.Denied()
	}

	executor := req.Owner
	if executor == "" {
		executor = req.Actor
	}
	if executor == "" {
		return Result{}, fault.Invalid("executor is empty")
	}

	job, err := b.repo.FindJob(ctx, action.JobID)
	if err != nil {
		return Result{}, lookupFailure(err, "job %d does not exist", action.JobID)
	}

	operator := executor
	if b.gate.IsAdmin(executor) {
		operator = job.Owner
	}

	history := &models.History{
		JobID:            job.ID,
		ActionID:         action.ID,
		Status:           models.StatusRunning,
		TriggerType:      trigger,
		Operator:         operator,
		Illustrate:       "triggered by " + executor,
		HostGroupID:      action.HostGroupID,
		Properties:       jsonmap.Clone(job.Configs),
		StatisticEndTime: action.StatisticEndTime,
	}
	if err := b.repo.CreateHistory(ctx, history); err != nil {
		return Result{}, fault.Wrap(err, "record execution history")
	}

	action.Script = job.Script
	action.HistoryID = history.ID
	if err := b.repo.UpdateAction(ctx, action); err != nil {
		b.failHistory(ctx, history.ID, err)
		return Result{}, fault.Wrap(err, "update action")
	}

	log.Info("dispatching execution",
		"action_id", action.ID,
		"history_id", history.ID,
		"trigger", trigger,
		"executor", executor)

	cmd := &protocol.Command{Kind: protocol.ManualKind, ID: strconv.FormatUint(uint64(history.ID), 10)}
	res, err := b.request(ctx, deadline, "execute", protocol.KindExecuteRequest, cmd, ExecutePending)
	if err != nil {
		if fault.KindOf(err) == fault.ConnectivityFailure {
			b.failHistory(ctx, history.ID, err)
		}
		return Result{}, err
	}
	if res.Completed && res.Success {
		res.Message = action.ID
	}
	return res, nil
}

// failHistory closes a history whose command never reached the peer.
func (b *Bridge) failHistory(ctx context.Context, historyID uint, cause error) {
	if err := b.repo.UpdateHistoryStatus(context.WithoutCancel(ctx), historyID, models.StatusFailed); err != nil {
		log.Error("failed to close undelivered history", "history_id", historyID, "error", err)
		return
	}
	log.Warn("execution not delivered", "history_id", historyID, "error", cause)
}

type CancelRequest struct {
	HistoryID uint
	JobID     uint
	Actor     string
}

// Cancel asks the peer to stop a run. Manually triggered runs use the
// manual sub-protocol; everything else is cancelled as scheduled.
func (b *Bridge) Cancel(ctx context.Context, req CancelRequest) (Result, error) {
	deadline := time.Now().Add(b.timeout)

	if !b.gate.HasPermission(ctx, req.Actor, req.JobID, models.TargetJob) {
		return Result{}, fault.Denied()
	}

	history, err := b.repo.FindHistory(ctx, req.HistoryID)
	if err != nil {
		return Result{}, lookupFailure(err, "history %d does not exist", req.HistoryID)
	}
	if history.JobID != req.JobID {
		return Result{}, fault.Denied()
	}

	kind := protocol.ScheduleKind
	if history.TriggerType == models.TriggerTypeManual {
		kind = protocol.ManualKind
	}

	log.Info("dispatching cancellation", "history_id", history.ID, "job_id", req.JobID, "kind", kind)

	cmd := &protocol.Command{Kind: kind, ID: strconv.FormatUint(uint64(history.ID), 10)}
	return b.request(ctx, deadline, "cancel", protocol.KindCancelRequest, cmd, CancelPending)
}

// GenerateVersion asks the peer to rebuild the actions of one job.
func (b *Bridge) GenerateVersion(ctx context.Context, actor string, jobID uint) (Result, error) {
	deadline := time.Now().Add(b.timeout)

	if !b.gate.HasPermission(ctx, actor, jobID, models.TargetJob) {
		return Result{}, fault.Denied()
	}

	cmd := &protocol.Command{Kind: protocol.ManualKind, ID: strconv.FormatUint(uint64(jobID), 10)}
	return b.request(ctx, deadline, "generate", protocol.KindGenerateRequest, cmd, GeneratePending)
}

// GenerateAllVersions rebuilds the actions of every job. Only the
// admin may do this.
func (b *Bridge) GenerateAllVersions(ctx context.Context, actor string) (Result, error) {
	deadline := time.Now().Add(b.timeout)

	if !b.gate.IsAdmin(actor) {
		return Result{}, fault.Denied()
	}

	cmd := &protocol.Command{Kind: protocol.ManualKind, ID: protocol.AllJobs}
	return b.request(ctx, deadline, "generate_all", protocol.KindGenerateRequest, cmd, GenerateAllPending)
}

// PushUpdate notifies the peer that a job definition changed. It never
// blocks; a saturated pool drops the push with a log line.
func (b *Bridge) PushUpdate(jobID uint) {
	id := strconv.FormatUint(uint64(jobID), 10)

	err := b.pool.Submit(func() {
		ctx := context.Background()
		cmd := &protocol.Command{Kind: protocol.ScheduleKind, ID: id}

		res, err := b.request(ctx, time.Now().Add(b.timeout), "update", protocol.KindUpdateRequest, cmd, "")
		switch {
		case err != nil:
			log.Warn("job update push failed", "job_id", jobID, "error", err)
		case !res.Completed:
			log.Warn("job update push timed out", "job_id", jobID)
		case !res.Success:
			log.Warn("peer refused job update", "job_id", jobID, "message", res.Message)
		default:
			log.Debug("job update pushed", "job_id", jobID)
		}
	})
	if err != nil {
		metrics.PushRejectionsTotal.Inc()
		log.Warn("job update push rejected", "job_id", jobID, "error", err)
	}
}

type sent struct {
	call *link.Call
	err  error
}

// request sends cmd and waits until deadline for the reply. The write
// itself races the deadline, so a peer that stops reading cannot hold
// the caller past it.
func (b *Bridge) request(ctx context.Context, deadline time.Time, op string, kind protocol.Kind, cmd *protocol.Command, pending string) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	ch := b.slot.Load()
	if ch == nil {
		metrics.DispatchRequestsTotal.WithLabelValues(op, "error").Inc()
		return Result{}, fault.Connectivity(link.ErrNotConnected)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	sends := make(chan sent, 1)
	go func() {
		call, err := ch.Request(kind, cmd.Marshal())
		sends <- sent{call: call, err: err}
	}()

	var call *link.Call
	select {
	case s := <-sends:
		if s.err != nil {
			metrics.DispatchRequestsTotal.WithLabelValues(op, "error").Inc()
			return Result{}, fault.Connectivity(s.err)
		}
		call = s.call

	case <-timer.C:
		go abandonWhenSent(sends)
		return b.expired(op, cmd, pending), nil

	case <-ctx.Done():
		go abandonWhenSent(sends)
		metrics.DispatchRequestsTotal.WithLabelValues(op, "error").Inc()
		return Result{}, ctx.Err()
	}

	select {
	case env, ok := <-call.Reply():
		if !ok {
			metrics.DispatchRequestsTotal.WithLabelValues(op, "error").Inc()
			return Result{}, fault.Connectivity(link.ErrChannelClosed)
		}
		resp, err := protocol.UnmarshalResponse(env.Payload)
		if err != nil {
			metrics.DispatchRequestsTotal.WithLabelValues(op, "error").Inc()
			return Result{}, fault.Wrap(err, "decode peer response")
		}
		metrics.DispatchRequestsTotal.WithLabelValues(op, "completed").Inc()
		return Result{
			Completed: true,
			Success:   resp.Status == protocol.StatusOK,
			Message:   resp.Message,
		}, nil

	case <-timer.C:
		call.Abandon()
		return b.expired(op, cmd, pending), nil

	case <-ctx.Done():
		call.Abandon()
		metrics.DispatchRequestsTotal.WithLabelValues(op, "error").Inc()
		return Result{}, ctx.Err()
	}
}

func (b *Bridge) expired(op string, cmd *protocol.Command, pending string) Result {
	metrics.DispatchRequestsTotal.WithLabelValues(op, "timed_out").Inc()
	log.Warn("peer did not answer in time", "operation", op, "id", cmd.ID, "timeout", b.timeout)
	return Result{Message: pending}
}

// abandonWhenSent drops the reply registration of a send that finished
// after its caller gave up.
func abandonWhenSent(sends <-chan sent) {
	if s := <-sends; s.call != nil {
		s.call.Abandon()
	}
}

func lookupFailure(err error, format string, args ...any) error {
	if repository.IsNotFound(err) {
		return fault.Missing(format, args...)
	}
	return fault.Wrap(err, "lookup")
}
