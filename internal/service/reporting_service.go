package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warden/internal/cache"
	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// adsStatsKey is the stats cache entry for the ads-only post tab.
const adsStatsKey = "post:ads"

// Report listing filters accepted by GroupedReports.
const (
	FilterPending       = "pending"
	FilterInvestigating = "investigating"
	FilterResolved      = "resolved"
	FilterDismissed     = "dismissed"
	FilterAll           = "all"
)

// GroupedReportsQuery selects one page of reported subjects.
type GroupedReportsQuery struct {
	Kind    models.SubjectKind
	Status  string
	AdsOnly bool
	Sort    string
	Order   string
	Page    int
	Limit   int
}

// SubjectSummary is the moderation view of a reported group or post.
type SubjectSummary struct {
	ID           uint                    `json:"id"`
	Kind         models.SubjectKind      `json:"kind"`
	Title        string                  `json:"title"`
	OwnerID      uint                    `json:"ownerId"`
	Status       models.ModerationStatus `json:"status"`
	Severity     models.Severity         `json:"severity"`
	WarningCount int                     `json:"warningCount"`
	IsAd         bool                    `json:"isAd,omitempty"`
	GroupID      *uint                   `json:"groupId,omitempty"`
}

// GroupedReport is one subject and the reports that matched the filter.
type GroupedReport struct {
	Subject          SubjectSummary  `json:"subject"`
	Reports          []models.Report `json:"reports"`
	ReportCount      int             `json:"reportCount"`
	ReportTypeCount  map[string]int  `json:"reportTypeCount"`
	EarliestReportAt time.Time       `json:"earliestReportAt"`
	LatestReportAt   time.Time       `json:"latestReportAt"`
}

// Pagination describes the page GroupedReports returned.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// GroupedReportsResult is the report listing response.
type GroupedReportsResult struct {
	Data       []GroupedReport             `json:"data"`
	Pagination Pagination                  `json:"pagination"`
	Stats      *repository.ModerationStats `json:"stats"`
}

// ReportingService answers the admin report listings. It only reads.
type ReportingService struct {
	repo     repository.ReportingRepository
	statsTTL time.Duration
}

// NewReportingService returns a ReportingService. A non-positive statsTTL
// uses cache.DefaultStatsTTL.
func NewReportingService(db *gorm.DB, statsTTL time.Duration) *ReportingService {
	if statsTTL <= 0 {
		statsTTL = cache.DefaultStatsTTL
	}
	return &ReportingService{repo: repository.NewReportingRepository(db), statsTTL: statsTTL}
}

// Stats returns the summary counters for kind, from cache when fresh.
func (s *ReportingService) Stats(ctx context.Context, kind models.SubjectKind, adsOnly bool) (stats *repository.ModerationStats, err error) {
	if !kind.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown subject kind %q", kind))
	}
	adsOnly = adsOnly && kind == models.SubjectPost

	ctx, span := observability.StartServiceSpan(ctx, "ReportingService", "Stats",
		attribute.String("moderation.kind", string(kind)),
		attribute.Bool("moderation.ads_only", adsOnly),
	)
	defer func() { observability.EndSpan(span, err) }()

	key := string(kind)
	if adsOnly {
		key = adsStatsKey
	}
	stats = &repository.ModerationStats{}
	hit, err := cache.Aside(ctx, cache.ModerationStatsKey(key), stats, s.statsTTL, func() error {
		fresh, err := s.repo.Stats(ctx, kind, adsOnly)
		if err != nil {
			return err
		}
		*stats = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	observability.StatsCacheResults.WithLabelValues(result).Inc()
	return stats, nil
}

// GroupedReports lists reported subjects with their matching reports.
func (s *ReportingService) GroupedReports(ctx context.Context, q GroupedReportsQuery) (res *GroupedReportsResult, err error) {
	statuses, rq, err := normalizeReportQuery(q)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartServiceSpan(ctx, "ReportingService", "GroupedReports",
		attribute.String("moderation.kind", string(rq.Kind)),
		attribute.String("moderation.status", q.Status),
		attribute.String("moderation.sort", rq.Sort),
	)
	defer func() { observability.EndSpan(span, err) }()

	page, total, err := s.repo.SubjectPage(ctx, rq)
	if err != nil {
		return nil, err
	}
	stats, err := s.Stats(ctx, rq.Kind, rq.AdsOnly)
	if err != nil {
		return nil, err
	}

	res = &GroupedReportsResult{
		Data:       make([]GroupedReport, 0, len(page)),
		Pagination: paginate(rq.Offset/rq.Limit+1, rq.Limit, total),
		Stats:      stats,
	}
	if len(page) == 0 {
		return res, nil
	}

	ids := make([]uint, len(page))
	for i, row := range page {
		ids[i] = row.SubjectID
	}
	summaries, err := s.summaries(ctx, rq.Kind, ids)
	if err != nil {
		return nil, err
	}
	reports, err := s.repo.ReportsFor(ctx, rq.Kind, ids, statuses)
	if err != nil {
		return nil, err
	}
	bySubject := make(map[uint][]models.Report, len(ids))
	for _, r := range reports {
		bySubject[r.SubjectID] = append(bySubject[r.SubjectID], r)
	}

	for _, id := range ids {
		summary, ok := summaries[id]
		if !ok {
			// Reports can outlive a hard-deleted row; keep the id visible.
			summary = SubjectSummary{ID: id, Kind: rq.Kind}
		}
		res.Data = append(res.Data, groupReports(summary, bySubject[id]))
	}
	return res, nil
}

func (s *ReportingService) summaries(ctx context.Context, kind models.SubjectKind, ids []uint) (map[uint]SubjectSummary, error) {
	out := make(map[uint]SubjectSummary, len(ids))
	if kind == models.SubjectGroup {
		groups, err := s.repo.GroupsByID(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			out[g.ID] = SubjectSummary{
				ID:           g.ID,
				Kind:         kind,
				Title:        g.Name,
				OwnerID:      g.OwnerID,
				Status:       g.Status,
				Severity:     g.Severity,
				WarningCount: g.WarningCount,
			}
		}
		return out, nil
	}
	posts, err := s.repo.PostsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		out[p.ID] = SubjectSummary{
			ID:       p.ID,
			Kind:     kind,
			Title:    p.Title,
			OwnerID:  p.AuthorID,
			Status:   p.Status,
			Severity: p.Severity,
			IsAd:     p.IsAd,
			GroupID:  p.GroupID,
		}
	}
	return out, nil
}

func groupReports(summary SubjectSummary, reports []models.Report) GroupedReport {
	g := GroupedReport{
		Subject:         summary,
		Reports:         reports,
		ReportCount:     len(reports),
		ReportTypeCount: make(map[string]int),
	}
	if g.Reports == nil {
		g.Reports = []models.Report{}
	}
	for i, r := range reports {
		g.ReportTypeCount[r.ReportType]++
		if i == 0 || r.CreatedAt.Before(g.EarliestReportAt) {
			g.EarliestReportAt = r.CreatedAt
		}
		if r.CreatedAt.After(g.LatestReportAt) {
			g.LatestReportAt = r.CreatedAt
		}
	}
	return g
}

func normalizeReportQuery(q GroupedReportsQuery) ([]models.ReportStatus, repository.ReportQuery, error) {
	var rq repository.ReportQuery
	if !q.Kind.Valid() {
		return nil, rq, models.NewValidationError(fmt.Sprintf("unknown subject kind %q", q.Kind))
	}

	// statuses picks the reports shown per row; pageStatuses and
	// subjectStatus pick the rows.
	var statuses []models.ReportStatus
	var subjectStatus models.ModerationStatus
	switch strings.ToLower(strings.TrimSpace(q.Status)) {
	case "", FilterPending:
		statuses = []models.ReportStatus{models.ReportStatusPending}
	case FilterInvestigating:
		// The tab follows the subject status so it agrees with
		// ModerationStats.InvestigatingSubjects.
		statuses = []models.ReportStatus{models.ReportStatusPending, models.ReportStatusInvestigating}
		subjectStatus = models.ModerationStatusInvestigating
	case FilterResolved:
		statuses = []models.ReportStatus{models.ReportStatusResolved}
	case FilterDismissed:
		statuses = []models.ReportStatus{models.ReportStatusDismissed}
	case FilterAll:
	default:
		return nil, rq, models.NewValidationError(fmt.Sprintf("invalid status filter %q", q.Status))
	}

	sortField := strings.ToLower(strings.TrimSpace(q.Sort))
	switch sortField {
	case "":
		sortField = repository.SortLatestReport
	case repository.SortLatestReport, repository.SortEarliestReport, repository.SortReportCount,
		repository.SortWarningCount, repository.SortID:
	default:
		return nil, rq, models.NewValidationError(fmt.Sprintf("invalid sort field %q", q.Sort))
	}

	desc := true
	switch strings.ToLower(strings.TrimSpace(q.Order)) {
	case "", "desc":
	case "asc":
		desc = false
	default:
		return nil, rq, models.NewValidationError(fmt.Sprintf("invalid sort order %q", q.Order))
	}

	if q.Page < 0 || q.Limit < 0 {
		return nil, rq, models.NewValidationError("page and limit must not be negative")
	}
	page := q.Page
	if page == 0 {
		page = 1
	}
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	pageStatuses := statuses
	if subjectStatus != "" {
		pageStatuses = nil
	}

	rq = repository.ReportQuery{
		Kind:          q.Kind,
		Statuses:      pageStatuses,
		SubjectStatus: subjectStatus,
		AdsOnly:       q.AdsOnly && q.Kind == models.SubjectPost,
		Sort:          sortField,
		Desc:          desc,
		Limit:         limit,
		Offset:        (page - 1) * limit,
	}
	return statuses, rq, nil
}

func paginate(page, limit int, total int64) Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
