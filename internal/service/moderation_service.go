package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"warden/internal/cache"
	"warden/internal/database"
	"warden/internal/featureflags"
	"warden/internal/models"
	"warden/internal/notifications"
	"warden/internal/observability"
	"warden/internal/policy"
	"warden/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultMaxRetries      = 3
	defaultBulkConcurrency = 4
	// MaxBulkItems caps the ids accepted by one bulk request.
	MaxBulkItems = 100
)

// ModerationServiceConfig wires a ModerationService. Zero values get defaults.
type ModerationServiceConfig struct {
	Engine          *policy.Engine
	Notifier        ModerationNotifier
	Flags           *featureflags.Manager
	Cascader        ContentCascader
	MaxRetries      int
	BulkConcurrency int
	Clock           func() time.Time
}

// ModerationService applies admin moderation actions to groups and posts.
// Every mutating call runs in one transaction guarded by the subject's
// version and is retried on concurrent modification.
type ModerationService struct {
	db       *gorm.DB
	engine   *policy.Engine
	subjects repository.SubjectRepository
	reports  repository.ReportRepository
	warnings repository.WarningRepository
	audits   repository.AuditRepository
	cascader ContentCascader
	publish  publisher

	maxRetries      int
	bulkConcurrency int
	now             func() time.Time
	logger          *observability.StructuredLogger
}

// NewModerationService returns a ModerationService over db.
func NewModerationService(db *gorm.DB, cfg ModerationServiceConfig) *ModerationService {
	if cfg.Engine == nil {
		cfg.Engine = policy.DefaultEngine()
	}
	if cfg.Cascader == nil {
		cfg.Cascader = repository.NewContentRepository(db)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = defaultBulkConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &ModerationService{
		db:              db,
		engine:          cfg.Engine,
		subjects:        repository.NewSubjectRepository(db),
		reports:         repository.NewReportRepository(db),
		warnings:        repository.NewWarningRepository(db),
		audits:          repository.NewAuditRepository(db),
		cascader:        cfg.Cascader,
		publish:         newPublisher(cfg.Notifier, cfg.Flags),
		maxRetries:      cfg.MaxRetries,
		bulkConcurrency: cfg.BulkConcurrency,
		now:             cfg.Clock,
		logger:          observability.NewStructuredLogger(),
	}
}

// ActionSummary describes what one moderation call did. A retried call that
// finds nothing left to do returns NoOp with zero counts.
type ActionSummary struct {
	SubjectKind         models.SubjectKind        `json:"subjectKind"`
	SubjectID           uint                      `json:"subjectId"`
	RequestedAction     policy.ActionKind         `json:"requestedAction"`
	Action              policy.ActionKind         `json:"action"`
	Escalated           bool                      `json:"escalated"`
	NoOp                bool                      `json:"noOp"`
	PreviousStatus      models.ModerationStatus   `json:"previousStatus"`
	NewStatus           models.ModerationStatus   `json:"newStatus"`
	Severity            models.Severity           `json:"severity"`
	WarningCount        int                       `json:"warningCount"`
	DismissedCount      int64                     `json:"dismissedCount"`
	ResolvedReports     int64                     `json:"resolvedReports"`
	TransitionedReports int64                     `json:"transitionedReports"`
	Warning             *models.WarningEvent      `json:"warning,omitempty"`
	Cascade             *repository.CascadeResult `json:"cascade,omitempty"`
	At                  time.Time                 `json:"at"`
}

// ViolationInput is the admin-supplied part of a warning or deletion.
type ViolationInput struct {
	ViolationType models.ViolationType
	AdminNote     string
	Reason        string
}

// ReviewResult is the outcome of triaging a single report.
type ReviewResult struct {
	Report  *models.Report `json:"report"`
	Summary *ActionSummary `json:"summary"`
}

// BulkItem is one successful bulk sub-operation.
type BulkItem struct {
	ID     uint                    `json:"id"`
	Status models.ModerationStatus `json:"status"`
	NoOp   bool                    `json:"noOp"`
}

// BulkFailure is one failed bulk sub-operation.
type BulkFailure struct {
	ID    uint   `json:"id"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// BulkResult tallies a bulk call. Partial is set when anything failed.
type BulkResult struct {
	Succeeded []BulkItem    `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
	Partial   bool          `json:"partial"`
}

type request struct {
	kind   models.SubjectKind
	id     uint
	action policy.Action
	// reportID makes the transaction load the report first and target its subject.
	reportID uint
}

type outcome struct {
	record    *repository.SubjectRecord
	decision  policy.Decision
	summary   *ActionSummary
	report    *models.Report
	reporters []uint
	actorID   uint
}

// DismissAllPending dismisses every pending report on the subject and
// returns an investigating subject to active.
func (s *ModerationService) DismissAllPending(ctx context.Context, kind models.SubjectKind, id, actorID uint, note string) (*ActionSummary, error) {
	out, err := s.run(ctx, request{kind: kind, id: id, action: policy.Action{
		Kind:      policy.ActionDismissAllPending,
		ActorID:   actorID,
		AdminNote: note,
	}})
	if err != nil {
		return nil, err
	}
	return out.summary, nil
}

// MarkInvestigating moves a subject with pending reports to investigating.
func (s *ModerationService) MarkInvestigating(ctx context.Context, kind models.SubjectKind, id, actorID uint, note string) (*ActionSummary, error) {
	out, err := s.run(ctx, request{kind: kind, id: id, action: policy.Action{
		Kind:      policy.ActionMarkInvestigating,
		ActorID:   actorID,
		AdminNote: note,
	}})
	if err != nil {
		return nil, err
	}
	return out.summary, nil
}

// BulkMarkInvestigating runs MarkInvestigating for each id independently.
// Item failures are reported in the tally and never abort the batch.
func (s *ModerationService) BulkMarkInvestigating(ctx context.Context, kind models.SubjectKind, ids []uint, actorID uint, note string) (*BulkResult, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, models.NewValidationError("ids must not be empty")
	}
	if len(ids) > MaxBulkItems {
		return nil, models.NewValidationError(fmt.Sprintf("at most %d ids per request", MaxBulkItems))
	}
	if !kind.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown subject kind %q", kind))
	}

	type slot struct {
		summary *ActionSummary
		err     error
	}
	slots := make([]slot, len(ids))

	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			summary, err := s.MarkInvestigating(ctx, kind, id, actorID, note)
			slots[i] = slot{summary: summary, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &BulkResult{Succeeded: []BulkItem{}, Failed: []BulkFailure{}}
	action := string(policy.ActionMarkInvestigating)
	for i, id := range ids {
		if err := slots[i].err; err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Code: errorCode(err), Error: err.Error()})
			observability.BulkItems.WithLabelValues(action, "failed").Inc()
			continue
		}
		result.Succeeded = append(result.Succeeded, BulkItem{
			ID:     id,
			Status: slots[i].summary.NewStatus,
			NoOp:   slots[i].summary.NoOp,
		})
		observability.BulkItems.WithLabelValues(action, "succeeded").Inc()
	}
	result.Partial = len(result.Failed) > 0
	return result, nil
}

// SendWarning issues the next warning to a group. At the cap it deletes the
// group instead, and the summary's Action and Escalated say so.
func (s *ModerationService) SendWarning(ctx context.Context, groupID, actorID uint, in ViolationInput) (*ActionSummary, error) {
	out, err := s.run(ctx, request{kind: models.SubjectGroup, id: groupID, action: policy.Action{
		Kind:          policy.ActionSendWarning,
		ActorID:       actorID,
		ViolationType: in.ViolationType,
		AdminNote:     in.AdminNote,
		Reason:        in.Reason,
	}})
	if err != nil {
		return nil, err
	}
	return out.summary, nil
}

// DeleteForSevereViolation deletes a group or post outright. Deletion is terminal.
func (s *ModerationService) DeleteForSevereViolation(ctx context.Context, kind models.SubjectKind, id, actorID uint, in ViolationInput) (*ActionSummary, error) {
	out, err := s.run(ctx, request{kind: kind, id: id, action: policy.Action{
		Kind:          policy.ActionDeleteForSevereViolation,
		ActorID:       actorID,
		ViolationType: in.ViolationType,
		AdminNote:     in.AdminNote,
		Reason:        in.Reason,
	}})
	if err != nil {
		return nil, err
	}
	return out.summary, nil
}

// ReviewReport moves a single report to investigating or dismissed.
func (s *ModerationService) ReviewReport(ctx context.Context, reportID, actorID uint, status models.ReportStatus, note string) (*ReviewResult, error) {
	out, err := s.run(ctx, request{reportID: reportID, action: policy.Action{
		Kind:         policy.ActionReviewReport,
		ActorID:      actorID,
		AdminNote:    note,
		ReviewStatus: status,
	}})
	if err != nil {
		return nil, err
	}
	return &ReviewResult{Report: out.report, Summary: out.summary}, nil
}

// ListWarnings returns a group's warning ledger in issue order.
func (s *ModerationService) ListWarnings(ctx context.Context, groupID uint) ([]models.WarningEvent, error) {
	if _, err := s.subjects.Load(ctx, models.SubjectGroup, groupID); err != nil {
		return nil, err
	}
	return s.warnings.ListByGroup(ctx, groupID)
}

// ListAudit returns audit entries matching filter, newest first.
func (s *ModerationService) ListAudit(ctx context.Context, filter repository.AuditFilter) ([]models.ModerationAudit, int64, error) {
	return s.audits.List(ctx, filter)
}

func (s *ModerationService) run(ctx context.Context, req request) (out *outcome, err error) {
	start := time.Now()
	kindLabel := string(req.kind)
	if req.reportID != 0 {
		kindLabel = "report"
	}
	ctx, span := observability.StartServiceSpan(ctx, "ModerationService", string(req.action.Kind),
		attribute.String("moderation.kind", kindLabel),
		attribute.Int64("moderation.subject_id", int64(req.id)),
		attribute.Int64("moderation.report_id", int64(req.reportID)),
	)
	defer func() { observability.EndSpan(span, err) }()
	defer observability.ObserveModeration(string(req.action.Kind), start)

	s.logger.LogServiceCall(ctx, "ModerationService", string(req.action.Kind), map[string]interface{}{
		"kind":      kindLabel,
		"id":        req.id,
		"report_id": req.reportID,
		"actor_id":  req.action.ActorID,
	})

	// An admin closing the tab must not abort a half-applied decision.
	txCtx := context.WithoutCancel(ctx)
	for attempt := 0; ; attempt++ {
		out, err = s.applyOnce(txCtx, req)
		if err == nil || !isConflict(err) {
			break
		}
		if attempt >= s.maxRetries {
			observability.ModerationConflicts.WithLabelValues(kindLabel, "surfaced").Inc()
			err = models.NewConcurrencyConflictError(err)
			break
		}
		observability.ModerationConflicts.WithLabelValues(kindLabel, "retried").Inc()
	}

	requested := string(req.action.Kind)
	if err != nil {
		outcomeLabel := "failed"
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			if appErr.Code != models.CodeInternal && appErr.Code != models.CodeConcurrencyConflict {
				outcomeLabel = "rejected"
			}
		} else {
			err = models.NewInternalError(err)
		}
		observability.ModerationDecisions.WithLabelValues(requested, requested, kindLabel, outcomeLabel).Inc()
		return nil, err
	}

	d := out.decision
	outcomeLabel := "applied"
	if d.NoOp {
		outcomeLabel = "noop"
	}
	observability.ModerationDecisions.WithLabelValues(requested, string(d.Action), string(out.record.Kind), outcomeLabel).Inc()
	if !d.NoOp {
		s.afterCommit(ctx, out)
	}
	return out, nil
}

func (s *ModerationService) applyOnce(ctx context.Context, req request) (*outcome, error) {
	out := &outcome{actorID: req.action.ActorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subjects := s.subjects.WithTx(tx)
		reports := s.reports.WithTx(tx)

		kind, id, action := req.kind, req.id, req.action
		if req.reportID != 0 {
			report, err := reports.GetByID(ctx, req.reportID)
			if err != nil {
				return err
			}
			kind, id = report.SubjectKind, report.SubjectID
			action.Report = &policy.ReportRef{ID: report.ID, Status: report.Status}
			out.report = report
		}

		rec, err := subjects.Load(ctx, kind, id)
		if err != nil {
			return err
		}
		if action.Now.IsZero() {
			action.Now = s.now()
		}
		d, err := s.engine.Decide(rec.Subject, action)
		if err != nil {
			return err
		}
		out.record, out.decision = rec, d
		out.summary = newSummary(rec, d)
		if d.NoOp {
			return nil
		}

		// Bump the version first so concurrent writers serialize on the row.
		if err := subjects.CompareAndSwap(ctx, rec.Subject, d); err != nil {
			return err
		}

		var moved int64
		for _, t := range d.Transitions {
			if t.To.Settled() {
				ids, err := s.settledReporters(ctx, reports, kind, id, t, out.report)
				if err != nil {
					return err
				}
				out.reporters = append(out.reporters, ids...)
			}
			n, err := reports.Transition(ctx, kind, id, t, action.ActorID, d.At)
			if err != nil {
				return err
			}
			moved += n
			switch t.To {
			case models.ReportStatusDismissed:
				out.summary.DismissedCount += n
			case models.ReportStatusResolved:
				out.summary.ResolvedReports += n
			}
		}
		out.summary.TransitionedReports = moved
		if moved < int64(d.ExpectedTransitions) {
			return repository.ErrVersionConflict
		}

		if w := d.Warning; w != nil {
			event := &models.WarningEvent{
				GroupID:        id,
				Sequence:       w.Sequence,
				ViolationType:  w.ViolationType,
				AdminNote:      w.AdminNote,
				Reason:         w.Reason,
				IssuedByUserID: w.IssuedBy,
				IssuedAt:       w.IssuedAt,
			}
			if err := s.warnings.WithTx(tx).Append(ctx, event); err != nil {
				return err
			}
			out.summary.Warning = event
		}

		if d.CascadeRemoval {
			res, err := s.cascader.RemoveOwnedContent(ctx, tx, kind, id, d.At)
			if err != nil {
				return fmt.Errorf("cascade removal of %s %d: %w", kind, id, err)
			}
			out.summary.Cascade = &res
		}

		if d.Audit != nil {
			if err := s.audits.WithTx(tx).Create(ctx, auditEntry(rec, d, action.ActorID, out.summary)); err != nil {
				return err
			}
		}

		if out.report != nil {
			report, err := reports.GetByID(ctx, out.report.ID)
			if err != nil {
				return err
			}
			out.report = report
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ModerationService) settledReporters(
	ctx context.Context,
	reports repository.ReportRepository,
	kind models.SubjectKind,
	id uint,
	t policy.ReportTransition,
	single *models.Report,
) ([]uint, error) {
	if t.ReportID != 0 && single != nil {
		return []uint{single.ReporterID}, nil
	}
	return reports.ReporterIDs(ctx, kind, id, t.From)
}

func (s *ModerationService) afterCommit(ctx context.Context, out *outcome) {
	rec, d, summary := out.record, out.decision, out.summary
	cache.InvalidateModerationStats(context.WithoutCancel(ctx), statsCacheKeys(rec.Kind)...)

	s.publish.admin(ctx, notifications.Event{
		Type:        notifications.EventModerationDecision,
		SubjectKind: string(rec.Kind),
		SubjectID:   rec.ID,
		ActorID:     out.actorID,
		Payload:     summary,
		At:          d.At,
	})

	if d.Warning != nil {
		s.publish.user(ctx, rec.OwnerID, featureflags.CreatorNotices, notifications.Event{
			Type:        notifications.EventWarningIssued,
			SubjectKind: string(rec.Kind),
			SubjectID:   rec.ID,
			Payload: map[string]interface{}{
				"title":          rec.Title,
				"warning_count":  d.NewWarningCount,
				"severity":       d.NewSeverity,
				"violation_type": d.Warning.ViolationType,
			},
			At: d.At,
		})
	}
	if d.NewStatus == models.ModerationStatusDeleted {
		s.publish.user(ctx, rec.OwnerID, featureflags.CreatorNotices, notifications.Event{
			Type:        notifications.EventContentRemoved,
			SubjectKind: string(rec.Kind),
			SubjectID:   rec.ID,
			Payload:     map[string]interface{}{"title": rec.Title},
			At:          d.At,
		})
	}
	seen := make(map[uint]struct{}, len(out.reporters))
	for _, reporterID := range out.reporters {
		if _, dup := seen[reporterID]; dup {
			continue
		}
		seen[reporterID] = struct{}{}
		s.publish.user(ctx, reporterID, featureflags.ReporterNotices, notifications.Event{
			Type:        notifications.EventReportSettled,
			SubjectKind: string(rec.Kind),
			SubjectID:   rec.ID,
			Payload:     map[string]interface{}{"action": d.Action},
			At:          d.At,
		})
	}
}

func newSummary(rec *repository.SubjectRecord, d policy.Decision) *ActionSummary {
	return &ActionSummary{
		SubjectKind:     rec.Kind,
		SubjectID:       rec.ID,
		RequestedAction: d.Requested,
		Action:          d.Action,
		Escalated:       d.Escalated,
		NoOp:            d.NoOp,
		PreviousStatus:  rec.Status,
		NewStatus:       d.NewStatus,
		Severity:        d.NewSeverity,
		WarningCount:    d.NewWarningCount,
		At:              d.At,
	}
}

func auditEntry(rec *repository.SubjectRecord, d policy.Decision, actorID uint, summary *ActionSummary) *models.ModerationAudit {
	details := map[string]interface{}{
		"requested":       d.Requested,
		"escalated":       d.Escalated,
		"previous_status": rec.Status,
		"new_status":      d.NewStatus,
		"severity":        d.NewSeverity,
		"warning_count":   d.NewWarningCount,
		"dismissed":       summary.DismissedCount,
		"resolved":        summary.ResolvedReports,
	}
	if summary.Cascade != nil {
		details["removed_posts"] = summary.Cascade.RemovedPosts
		details["removed_memberships"] = summary.Cascade.RemovedMemberships
	}
	raw, _ := json.Marshal(details)

	return &models.ModerationAudit{
		Action:        d.Audit.Action,
		SubjectKind:   string(rec.Kind),
		SubjectID:     rec.ID,
		ActorID:       actorID,
		ViolationType: d.Audit.ViolationType,
		AdminNote:     d.Audit.AdminNote,
		Reason:        d.Audit.Reason,
		Details:       string(raw),
		CreatedAt:     d.At,
	}
}

// statsCacheKeys lists the stats cache entries a change to kind invalidates.
func statsCacheKeys(kind models.SubjectKind) []string {
	keys := []string{string(kind)}
	if kind == models.SubjectPost {
		keys = append(keys, adsStatsKey)
	}
	return keys
}

func isConflict(err error) bool {
	return errors.Is(err, repository.ErrVersionConflict) || database.IsConflict(err)
}

func errorCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return models.CodeInternal
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
