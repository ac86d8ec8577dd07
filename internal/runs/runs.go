// Package runs implements the analysis-run state machine: source ->
// model -> (skill) -> report -> delivery, composed through a
// Capabilities bundle of collaborator services supplied by the caller.
package runs

import (
	"time"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/metrics"
	"github.com/rcourtman/insightctl/internal/modelrun"
	"github.com/rcourtman/insightctl/internal/reports"
	"github.com/rcourtman/insightctl/internal/reports/channels"
	"github.com/rcourtman/insightctl/internal/skills"
	"github.com/rcourtman/insightctl/internal/sources"
	"github.com/rcourtman/insightctl/internal/state"
)

// Capabilities bundles the concrete services an analysis run steps
// through; the caller constructs them and hands them to New.
type Capabilities struct {
	Sources *sources.Service
	Model   *modelrun.Runner
	Skills  *skills.Service
	Reports *reports.Service
}

// ExecuteOptions carries the caller-supplied overrides for one
// execution of the state machine.
type ExecuteOptions struct {
	PeriodDays     int
	ForceSync      bool
	SkillPayload   skills.Payload
	ReportChannels []string
}

// Service drives analysis runs against the store and the injected
// capabilities.
type Service struct {
	store *state.Store
	caps  Capabilities
}

func New(store *state.Store, caps Capabilities) *Service {
	return &Service{store: store, caps: caps}
}

// Create inserts a new draft run.
func (s *Service) Create(tenant state.Tenant, in state.AnalysisRun) state.AnalysisRun {
	in.TenantID = tenant.ID
	in.Status = "draft"
	in.Steps = []state.RunStep{
		{Name: "source", Status: "pending"},
		{Name: "model", Status: "pending"},
		{Name: "skill", Status: "pending"},
		{Name: "report", Status: "pending"},
		{Name: "delivery", Status: "pending"},
	}
	return s.store.CreateAnalysisRun(in)
}

// Execute walks the run through every step in order, short-circuiting
// to failed on the first error.
func (s *Service) Execute(tenant state.Tenant, runID string, opts ExecuteOptions, now time.Time) (*state.AnalysisRun, error) {
	run, err := s.store.GetAnalysisRun(tenant.ID, runID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.MutateAnalysisRun(tenant.ID, runID, func(r *state.AnalysisRun) {
		r.Status = "running"
		state.AppendTimeline(r, "execution started", now)
	}); err != nil {
		return nil, err
	}

	steps := []func(state.Tenant, *state.AnalysisRun, ExecuteOptions, time.Time) error{
		s.runSourceStep,
		s.runModelStep,
		s.runSkillStep,
		s.runReportStep,
		s.runDeliveryStep,
	}
	names := []string{"source", "model", "skill", "report", "delivery"}

	for i, step := range steps {
		name := names[i]
		if _, err := s.store.MutateAnalysisRun(tenant.ID, runID, func(r *state.AnalysisRun) {
			setStepStatus(r, name, "running", "")
		}); err != nil {
			return nil, err
		}

		stepErr := step(tenant, run, opts, now)

		if stepErr != nil {
			s.store.MutateAnalysisRun(tenant.ID, runID, func(r *state.AnalysisRun) {
				setStepStatus(r, name, "error", stepErr.Error())
				r.Status = "failed"
				state.AppendTimeline(r, "step "+name+" failed: "+stepErr.Error(), now)
			})
			metrics.Get().RecordAnalysisRun("failed")
			return nil, stepErr
		}

		if _, err := s.store.MutateAnalysisRun(tenant.ID, runID, func(r *state.AnalysisRun) {
			setStepStatus(r, name, "done", "")
			r.Artifacts = run.Artifacts
			state.AppendTimeline(r, "step "+name+" completed", now)
		}); err != nil {
			return nil, err
		}
	}

	final, err := s.store.MutateAnalysisRun(tenant.ID, runID, func(r *state.AnalysisRun) {
		r.Status = "completed"
		state.AppendTimeline(r, "execution completed", now)
	})
	if err == nil {
		metrics.Get().RecordAnalysisRun("completed")
	}
	return final, err
}

func setStepStatus(r *state.AnalysisRun, name, status, detail string) {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			r.Steps[i].Status = status
			r.Steps[i].Detail = detail
			return
		}
	}
	r.Steps = append(r.Steps, state.RunStep{Name: name, Status: status, Detail: detail})
}

// runSourceStep selects the most recent source run, triggering a fresh
// sync when it's missing, stale past freshnessSlaHours, or forceSync was
// requested, then enforces the connection's quality gate.
func (s *Service) runSourceStep(tenant state.Tenant, run *state.AnalysisRun, opts ExecuteOptions, now time.Time) error {
	if run.SourceConnectionID == "" {
		return apierror.BadRequest("analysis run requires a source connection")
	}
	conn, err := s.store.GetConnection(tenant.ID, run.SourceConnectionID)
	if err != nil {
		return err
	}

	latest, ok := s.store.LatestSourceRun(tenant.ID, run.SourceConnectionID)
	stale := !ok || now.Sub(latest.CreatedAt) > time.Duration(conn.SyncPolicy.FreshnessSlaHours)*time.Hour

	if !ok || stale || opts.ForceSync {
		periodDays := opts.PeriodDays
		if periodDays == 0 {
			periodDays = conn.SyncPolicy.BackfillDays
		}
		if periodDays == 0 {
			periodDays = 30
		}
		result, err := s.caps.Sources.Sync(tenant, run.SourceConnectionID, "", periodDays, false, false, now)
		if err != nil {
			return err
		}
		latest = result.Run
	}

	if conn.QualityPolicy.BlockModelRun {
		if !latest.Diagnostics.QualityPassed || latest.Diagnostics.QualityScore < conn.QualityPolicy.MinQualityScore {
			return apierror.BadRequest("quality gate failed")
		}
	}
	return nil
}

// runModelStep invokes the model runner using the run's model profile,
// recording the resulting insight id on the run's artifacts.
func (s *Service) runModelStep(tenant state.Tenant, run *state.AnalysisRun, opts ExecuteOptions, now time.Time) error {
	if run.ModelProfileID == "" {
		return nil
	}
	profile, err := s.store.GetModelProfile(tenant.ID, run.ModelProfileID)
	if err != nil {
		return err
	}
	task := modelrun.Task{
		Objective:       profile.Objective,
		OutputMetricIDs: []string{profile.TargetMetricID},
		HorizonDays:     profile.HorizonDays,
		Provider:        profile.Provider,
	}
	_, insight, err := s.caps.Model.Run(tenant, task, now)
	if err != nil {
		return err
	}
	run.Artifacts.InsightID = insight.ID
	return nil
}

// runSkillStep dispatches the configured skill, only if run.SkillID is set.
func (s *Service) runSkillStep(tenant state.Tenant, run *state.AnalysisRun, opts ExecuteOptions, now time.Time) error {
	if run.SkillID == "" {
		return nil
	}
	payload := opts.SkillPayload
	payload.SkillID = run.SkillID
	adapters := skills.Adapters{
		Model: modelAdapterFunc(func(t state.Tenant, objective, metricID string) (state.ModelRun, state.Insight, error) {
			return s.caps.Model.Run(t, modelrun.Task{Objective: objective, OutputMetricIDs: []string{metricID}, HorizonDays: 30}, now)
		}),
		Report: reportAdapterFunc(func(t state.Tenant, insight *state.Insight) (state.Report, error) {
			return s.caps.Reports.Generate(t, reports.GenerateInput{})
		}),
	}
	_, err := s.caps.Skills.Dispatch(tenant, payload, adapters)
	return err
}

// runReportStep generates a report titled and formatted from the run's
// report type. The template context drawn from the model step's insight
// is built later, per channel, in Deliver.
func (s *Service) runReportStep(tenant state.Tenant, run *state.AnalysisRun, opts ExecuteOptions, now time.Time) error {
	if run.ReportTypeID == "" {
		return nil
	}
	rt, err := s.store.GetReportType(tenant.ID, run.ReportTypeID)
	if err != nil {
		return err
	}
	report, err := s.caps.Reports.Generate(tenant, reports.GenerateInput{
		Title:  rt.Name,
		Format: rt.DefaultFormat,
	})
	if err != nil {
		return err
	}
	run.Artifacts.ReportID = report.ID
	return nil
}

// runDeliveryStep fans the generated report out to the run's channels
// and records the new channel event ids on the run's artifacts;
// per-channel failures do not fail the step, since retries happen
// explicitly later.
func (s *Service) runDeliveryStep(tenant state.Tenant, run *state.AnalysisRun, opts ExecuteOptions, now time.Time) error {
	if run.Artifacts.ReportID == "" || len(run.Channels) == 0 {
		return nil
	}
	updated, err := s.Deliver(tenant, run.ID, opts.ReportChannels, now)
	if err != nil {
		return err
	}
	run.Artifacts = updated.Artifacts
	return nil
}

// Deliver delivers an already-generated report over the requested
// channels (or the run's own channels when unset), appending the new
// channel event ids to the run's artifacts.
func (s *Service) Deliver(tenant state.Tenant, runID string, channelList []string, now time.Time) (*state.AnalysisRun, error) {
	run, err := s.store.GetAnalysisRun(tenant.ID, runID)
	if err != nil {
		return nil, err
	}
	if run.Artifacts.ReportID == "" {
		return nil, apierror.BadRequest("analysis run %q has no generated report yet", runID)
	}
	if len(channelList) == 0 {
		channelList = run.Channels
	}

	report, err := s.store.GetReport(tenant.ID, run.Artifacts.ReportID)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.Settings(tenant.ID)
	if err != nil {
		return nil, err
	}

	var templates state.DeliveryTemplates
	if run.ReportTypeID != "" {
		if rt, rtErr := s.store.GetReportType(tenant.ID, run.ReportTypeID); rtErr == nil {
			templates = rt.DeliveryTemplates
		}
	}

	var insightID string
	var confidence float64
	var actionsCount int
	if run.Artifacts.InsightID != "" {
		if insight, iErr := s.store.GetInsight(tenant.ID, run.Artifacts.InsightID); iErr == nil {
			insightID = insight.ID
			confidence = insight.Confidence
			actionsCount = len(insight.RecommendedActions)
		}
	}

	var newEventIDs []string
	for _, ch := range channelList {
		template := templateFor(templates, ch)
		ctx := channels.TemplateContext{
			ReportTitle:   report.Title,
			ReportSummary: report.Summary,
			TenantID:      tenant.ID,
			Channel:       ch,
			RunID:         run.ID,
			InsightID:     insightID,
			Confidence:    confidence,
			ActionsCount:  actionsCount,
		}
		event := channels.Deliver(tenant, &settings, report, ch, template, ctx, nil)
		stored := s.store.AppendChannelEvent(event)
		newEventIDs = append(newEventIDs, stored.ID)
	}

	return s.store.MutateAnalysisRun(tenant.ID, runID, func(r *state.AnalysisRun) {
		r.Artifacts.ChannelEventIDs = append(r.Artifacts.ChannelEventIDs, newEventIDs...)
		state.AppendTimeline(r, "delivered to channels", now)
	})
}

func templateFor(templates state.DeliveryTemplates, channel string) string {
	switch channel {
	case channels.Slack:
		return templates.Slack
	case channels.Telegram:
		return templates.Telegram
	case channels.Email:
		return templates.Email
	default:
		return ""
	}
}

type modelAdapterFunc func(state.Tenant, string, string) (state.ModelRun, state.Insight, error)

func (f modelAdapterFunc) RunModel(tenant state.Tenant, objective, metricID string) (state.ModelRun, state.Insight, error) {
	return f(tenant, objective, metricID)
}

type reportAdapterFunc func(state.Tenant, *state.Insight) (state.Report, error)

func (f reportAdapterFunc) GenerateReport(tenant state.Tenant, insight *state.Insight) (state.Report, error) {
	return f(tenant, insight)
}
