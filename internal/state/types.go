// Package state holds the process-wide, tenant-partitioned data model:
// tenants, blueprints, canonical facts, source connections/runs, the
// live-query cache, model provider health, model runs, insights,
// installed skills, skill runs, reports, schedules, channel events,
// analysis runs and the audit log.
//
// Every mutating operation in the codebase goes through a method on
// *Store so invariants (idempotency, single-active-step, etc.) are
// enforced in one place under the store's write lock.
package state

import "time"

// ModelConfig selects how a tenant sources model providers.
type ModelConfig struct {
	Mode                   string   `json:"mode"` // managed | byo
	DefaultProvider        string   `json:"defaultProvider"`
	FailoverChain          []string `json:"failoverChain"`
	ByoProviders           []string `json:"byoProviders"`
	ProviderCooldownMinutes int     `json:"providerCooldownMinutes"`
}

// AutonomyPolicy is the tenant's per-action governance configuration.
type AutonomyPolicy struct {
	AutonomyMode        string   `json:"autonomyMode"` // policy-gated | manual
	AutopilotEnabled    bool     `json:"autopilotEnabled"`
	ConfidenceThreshold float64  `json:"confidenceThreshold"`
	ActionAllowlist     []string `json:"actionAllowlist"`
	HighImpactActions   []string `json:"highImpactActions"`
	BudgetGuardrailUsd  float64  `json:"budgetGuardrailUsd"`
	KillSwitch          bool     `json:"killSwitch"`
}

// DataPolicy bounds the live-query broker.
type DataPolicy struct {
	MaxLiveQueryRows       int `json:"maxLiveQueryRows"`
	MaxLiveQueryTimeoutMs  int `json:"maxLiveQueryTimeoutMs"`
	MaxLiveQueryCostUnits  int `json:"maxLiveQueryCostUnits"`
}

// Tenant is the top-level isolation unit.
type Tenant struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Status         string         `json:"status"`
	BlueprintID    string         `json:"blueprintId"`
	Branding       map[string]any `json:"branding,omitempty"`
	TrainingOptIn  bool           `json:"trainingOptIn"`
	ModelConfig    ModelConfig    `json:"modelConfig"`
	AutonomyPolicy AutonomyPolicy `json:"autonomyPolicy"`
	DataPolicy     DataPolicy     `json:"dataPolicy"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Metric is a single named metric definition carried by a Blueprint.
type Metric struct {
	ID      string `json:"id"`
	Formula string `json:"formula"`
	Grain   string `json:"grain"`
	Domain  string `json:"domain"`
}

// Blueprint is a static bundle of domains + metric definitions.
type Blueprint struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Domains []string `json:"domains"`
	Metrics []Metric `json:"metrics"`
}

// Lineage records provenance for a canonical fact.
type Lineage struct {
	Provider      string    `json:"provider"`
	ConnectorRunID string   `json:"connectorRunId"`
	ExtractedAt   time.Time `json:"extractedAt"`
}

// Fact is a canonical, normalized measurement (the unit of metrics aggregation).
type Fact struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenantId"`
	Domain   string  `json:"domain"`
	MetricID string  `json:"metricId"`
	Date     string  `json:"date"` // yyyy-mm-dd
	Value    float64 `json:"value"`
	Source   string  `json:"source"`
	Lineage  Lineage `json:"lineage"`
}

// IdempotencyKey is the unique tuple a fact is deduplicated on.
type IdempotencyKey struct {
	TenantID string
	Date     string
	Domain   string
	MetricID string
	Source   string
}

// SyncPolicy controls how often and how far back a connection syncs.
type SyncPolicy struct {
	IntervalMinutes   int `json:"intervalMinutes"`
	BackfillDays      int `json:"backfillDays"`
	FreshnessSlaHours int `json:"freshnessSlaHours"`
}

// QualityPolicy gates model execution on sync quality.
type QualityPolicy struct {
	MinQualityScore float64 `json:"minQualityScore"`
	BlockModelRun   bool    `json:"blockModelRun"`
}

// QueryPolicy is the live-query allowlist enforced at query time.
type QueryPolicy struct {
	AllowedTables         []string            `json:"allowedTables"`
	AllowedColumnsByTable map[string][]string `json:"allowedColumnsByTable"`
}

// ConnectionMetadata carries the human-facing/extraction-shaping bits of a connection.
type ConnectionMetadata struct {
	Label          string         `json:"label"`
	Owner          string         `json:"owner"`
	QualityChecks  []string       `json:"qualityChecks"`
	ExtractionSpec map[string]any `json:"extractionSpec,omitempty"`
}

// SecretDescriptor is all that's ever stored about a connection's credentials.
type SecretDescriptor struct {
	HasCredentials bool   `json:"hasCredentials"`
	Fingerprint    string `json:"fingerprint"`
}

// SourceConnection is a tenant's configured link to an external source.
type SourceConnection struct {
	ID           string              `json:"id"`
	TenantID     string              `json:"tenantId"`
	SourceType   string              `json:"sourceType"`
	Mode         string              `json:"mode"` // ingest | live | hybrid
	AuthRef      string              `json:"authRef"`
	Status       string              `json:"status"` // active | error
	SyncPolicy   SyncPolicy          `json:"syncPolicy"`
	QualityPolicy QualityPolicy      `json:"qualityPolicy"`
	QueryPolicy  QueryPolicy         `json:"queryPolicy"`
	Metadata     ConnectionMetadata  `json:"metadata"`
	Checkpoint   string              `json:"checkpoint"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// QualityCheckResult records a single named quality check outcome.
type QualityCheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // pass | fail | warn
}

// SourceRunDiagnostics is the outcome detail of a single sync.
type SourceRunDiagnostics struct {
	GeneratedRecords int                   `json:"generatedRecords"`
	InsertedRecords  int                   `json:"insertedRecords"`
	QualityScore     float64               `json:"qualityScore"`
	Retries          int                   `json:"retries"`
	QualityPassed    bool                  `json:"qualityPassed"`
	QualityChecks    []QualityCheckResult  `json:"qualityChecks"`
}

// SourceRunCheckpoint is the cursor left behind by a completed run.
type SourceRunCheckpoint struct {
	Cursor string `json:"cursor"`
}

// SourceRun is one execution of a connection's sync.
type SourceRun struct {
	ID           string               `json:"id"`
	ConnectionID string               `json:"connectionId"`
	TenantID     string               `json:"tenantId"`
	Status       string               `json:"status"` // success | error
	Diagnostics  SourceRunDiagnostics `json:"diagnostics"`
	Checkpoint   SourceRunCheckpoint  `json:"checkpoint"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// LiveQueryCacheEntry is a cached live-query result.
type LiveQueryCacheEntry struct {
	ResultID      string           `json:"resultId"`
	Rows          []map[string]any `json:"rows"`
	QueryMetadata map[string]any   `json:"queryMetadata"`
	ExpiresAt     time.Time        `json:"expiresAt"`
	TenantID      string           `json:"tenantId"`
	ConnectionID  string           `json:"connectionId"`
}

// MaterializationRun records the outcome of ingesting a query result.
type MaterializationRun struct {
	ID              string `json:"id"`
	SourceResultID  string `json:"sourceResultId"`
	DatasetName     string `json:"datasetName"`
	InsertedRecords int    `json:"insertedRecords"`
	TotalRows       int    `json:"totalRows"`
}

// ProviderHealth is per-(tenant,provider) cooldown bookkeeping.
type ProviderHealth struct {
	Provider             string    `json:"provider"`
	FailCount            int       `json:"failCount"`
	SuccessCount         int       `json:"successCount"`
	ConsecutiveSuccesses int       `json:"consecutiveSuccesses"`
	LastError            string    `json:"lastError"`
	CooldownUntil        time.Time `json:"cooldownUntil"`
}

// CoolingDown reports whether the provider is presently in cooldown.
func (p ProviderHealth) CoolingDown(now time.Time) bool {
	return p.CooldownUntil.After(now)
}

// ProviderTrace records what happened during provider selection.
type ProviderTrace struct {
	Chain         []string `json:"chain"`
	FailoverTrace []string `json:"failoverTrace"`
}

// ModelRun is one execution of the model runner.
type ModelRun struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"tenantId"`
	Objective      string        `json:"objective"` // forecast | anomaly
	Provider       string        `json:"provider"`
	ProviderTrace  ProviderTrace `json:"providerTrace"`
	MetricID       string        `json:"metricId"`
	Status         string        `json:"status"` // completed | completed_with_warnings
	QualityWarnings []string     `json:"qualityWarnings"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// ForecastPoint is one projected value at a future step.
type ForecastPoint struct {
	Step  int     `json:"step"`
	Value float64 `json:"value"`
}

// AnomalyPoint is a flagged outlier sample.
type AnomalyPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	ZHint float64 `json:"zHint"`
}

// RecommendedAction is a proposed, policy-evaluated action.
type RecommendedAction struct {
	ID                      string  `json:"id"`
	ActionType              string  `json:"actionType"`
	TargetSystem            string  `json:"targetSystem"`
	RequiresApproval        bool    `json:"requiresApproval"`
	PolicyDecision          string  `json:"policyDecision"` // allow | review | deny
	PolicyReason            string  `json:"policyReason"`
	Confidence              float64 `json:"confidence"`
	EstimatedBudgetImpactUsd float64 `json:"estimatedBudgetImpactUsd"`
	ExecutionState          string  `json:"executionState"` // executed | pending | rejected
}

// ActionApproval is a human decision on a pending RecommendedAction.
type ActionApproval struct {
	ID       string `json:"id"`
	ActionID string `json:"actionId"`
	Decision string `json:"decision"` // approve | reject
	Reason   string `json:"reason"`
}

// Insight is the synthesized output of a model run.
type Insight struct {
	ID                string              `json:"id"`
	TenantID          string              `json:"tenantId"`
	ModelRunID        string              `json:"modelRunId"`
	Severity          string              `json:"severity"` // low | medium | high
	Confidence        float64             `json:"confidence"`
	Objective         string              `json:"objective"`
	MetricID          string              `json:"metricId"`
	Summary           string              `json:"summary"`
	Forecast          []ForecastPoint     `json:"forecast"`
	Anomalies         []AnomalyPoint      `json:"anomalies"`
	RecommendedActions []RecommendedAction `json:"recommendedActions"`
	QualityWarnings   []string            `json:"qualityWarnings"`
	CreatedAt         time.Time           `json:"createdAt"`
}

// ToolSpec names one tool a skill is allowed to call.
type ToolSpec struct {
	ID    string `json:"id"`
	Allow bool   `json:"allow"`
}

// Triggers is when/where a skill can be invoked.
type Triggers struct {
	Intents  []string `json:"intents"`
	Channels []string `json:"channels"`
}

// Guardrails are the pre-execution policy checks for a skill.
type Guardrails struct {
	ConfidenceMin         float64  `json:"confidenceMin"`
	HumanApprovalFor      []string `json:"humanApprovalFor"`
	BudgetCapUsd          float64  `json:"budgetCapUsd"`
	TokenBudget           int      `json:"tokenBudget"`
	TimeBudgetMs          int      `json:"timeBudgetMs"`
	ContextTokenBudget    int      `json:"contextTokenBudget"`
	KillSwitch            bool     `json:"killSwitch"`
}

// Prompts carries the skill's system prompt.
type Prompts struct {
	System string `json:"system"`
}

// SkillManifest is the versioned, signed definition of a skill pack.
type SkillManifest struct {
	ID          string     `json:"id"`
	Version     string     `json:"version"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Triggers    Triggers   `json:"triggers"`
	Tools       []ToolSpec `json:"tools"`
	Guardrails  Guardrails `json:"guardrails"`
	Prompts     Prompts    `json:"prompts"`
	Schedules   []string   `json:"schedules"`
	RiskLevel   string     `json:"riskLevel"` // low | medium | high
	Precedence  string     `json:"precedence,omitempty"` // workspace | local | bundled
}

// InstalledSkill is a tenant's activated/installed copy of a manifest.
type InstalledSkill struct {
	InstallID string        `json:"installId"`
	ID        string        `json:"id"` // "{baseId}@{version}"
	BaseID    string        `json:"baseId"`
	TenantID  string        `json:"tenantId"`
	Manifest  SkillManifest `json:"manifest"`
	Signature string        `json:"signature"`
	Active    bool          `json:"active"`
	InstalledAt time.Time   `json:"installedAt"`
}

// ToolTrace records which tools were requested/allowed/executed.
type ToolTrace struct {
	Requested           []string `json:"requested"`
	Allowed             []string `json:"allowed"`
	DeterministicExecuted []string `json:"deterministicExecuted"`
}

// SkillRunTrace is the audit-facing record of a skill dispatch.
type SkillRunTrace struct {
	Routing    string    `json:"routing"`
	Tools      ToolTrace `json:"tools"`
	Guardrails []string  `json:"guardrails"`
}

// SkillRunArtifacts are the structured/model/report outputs of a skill run.
type SkillRunArtifacts struct {
	DeterministicOutputs map[string]any `json:"deterministicOutputs"`
	Model                *ModelRun      `json:"model,omitempty"`
	Models               []ModelRun     `json:"models,omitempty"`
	Report               *Report        `json:"report,omitempty"`
	Reports              []Report       `json:"reports,omitempty"`
}

// SkillRun is one dispatch of an installed skill.
type SkillRun struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenantId"`
	SkillID        string            `json:"skillId"`
	BaseID         string            `json:"baseId"`
	Channel        string            `json:"channel"`
	Intent         string            `json:"intent"`
	Status         string            `json:"status"` // completed | completed_with_warning
	Confidence     float64           `json:"confidence"`
	Artifacts      SkillRunArtifacts `json:"artifacts"`
	Trace          SkillRunTrace     `json:"trace"`
	ReasoningHints []string          `json:"reasoningHints"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Report is a generated, delivered document.
type Report struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Title     string    `json:"title"`
	Format    string    `json:"format"` // pdf | html | markdown
	Summary   string    `json:"summary"`
	MetricIDs []string  `json:"metricIds"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReportSchedule is a periodic report dispatch configuration.
type ReportSchedule struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	Name           string    `json:"name"`
	MetricIDs      []string  `json:"metricIds"`
	Channels       []string  `json:"channels"`
	Format         string    `json:"format"`
	IntervalMinutes int      `json:"intervalMinutes"`
	Active         bool      `json:"active"`
	LastRunAt      time.Time `json:"lastRunAt"`
	NextRunAt      time.Time `json:"nextRunAt"`
}

// ChannelPayload is what gets handed to a channel transport. Attachment
// is populated only for pdf-format reports; other formats deliver the
// rendered Message body alone.
type ChannelPayload struct {
	ReportID           string `json:"reportId"`
	Title              string `json:"title"`
	Summary            string `json:"summary"`
	Message            string `json:"message"`
	Attachment         []byte `json:"attachment,omitempty"`
	AttachmentFilename string `json:"attachmentFilename,omitempty"`
}

// ChannelEvent records one delivery attempt and its outcome.
type ChannelEvent struct {
	ID                string         `json:"id"`
	TenantID          string         `json:"tenantId"`
	Channel           string         `json:"channel"` // email | slack | telegram
	EventType         string         `json:"eventType"`
	Status            string         `json:"status"` // delivered | failed | failed_permanent
	AttemptCount      int            `json:"attemptCount"`
	MaxAttempts       int            `json:"maxAttempts"`
	LastError         string         `json:"lastError"`
	Payload           ChannelPayload `json:"payload"`
	ResponseMetadata  map[string]any `json:"responseMetadata,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// RunStep is one stage of an analysis run's state machine.
type RunStep struct {
	Name   string `json:"name"` // source | model | skill | report | delivery
	Status string `json:"status"` // pending | running | done | error
	Detail string `json:"detail,omitempty"`
}

// RunArtifacts links an analysis run to what it produced.
type RunArtifacts struct {
	InsightID       string   `json:"insightId,omitempty"`
	ReportID        string   `json:"reportId,omitempty"`
	ChannelEventIDs []string `json:"channelEventIds,omitempty"`
}

// TimelineEntry is an ordered, human-readable breadcrumb for a run.
type TimelineEntry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// AnalysisRun composes source -> quality gate -> model -> (skill) ->
// report -> delivery into one orchestrated execution.
type AnalysisRun struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenantId"`
	Status             string          `json:"status"` // draft | running | completed | failed
	SourceConnectionID string          `json:"sourceConnectionId"`
	ModelProfileID     string          `json:"modelProfileId"`
	ReportTypeID       string          `json:"reportTypeId"`
	SkillID            string          `json:"skillId,omitempty"`
	Channels           []string        `json:"channels"`
	Steps              []RunStep       `json:"steps"`
	Artifacts          RunArtifacts    `json:"artifacts"`
	Timeline           []TimelineEntry `json:"timeline"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// AuditEvent is an append-only, hash-chained record of a mutation.
type AuditEvent struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	TenantID string    `json:"tenantId"`
	ActorID  string    `json:"actorId"`
	Action   string    `json:"action"`
	Details  any       `json:"details,omitempty"`
	PrevHash string    `json:"prevHash"`
	Hash     string    `json:"hash"`
}

// ModelProfile is a reusable model-run preset.
type ModelProfile struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenantId"`
	Name         string `json:"name"`
	Objective    string `json:"objective"`
	TargetMetricID string `json:"targetMetricId"`
	HorizonDays  int    `json:"horizonDays"`
	Provider     string `json:"provider,omitempty"`
	Active       bool   `json:"active"`
}

// DeliveryTemplates are per-channel default templates for a report type.
type DeliveryTemplates struct {
	Email    string `json:"email,omitempty"`
	Slack    string `json:"slack,omitempty"`
	Telegram string `json:"telegram,omitempty"`
}

// ReportType is a reusable report configuration.
type ReportType struct {
	ID                string            `json:"id"`
	TenantID          string            `json:"tenantId"`
	Name              string            `json:"name"`
	Sections          []string          `json:"sections"`
	DefaultChannels   []string          `json:"defaultChannels"`
	DefaultFormat     string            `json:"defaultFormat"` // pdf | html
	Schedule          string            `json:"schedule,omitempty"`
	DeliveryTemplates DeliveryTemplates `json:"deliveryTemplates"`
}

// ChannelSettings is one channel's enablement/credentials-by-reference.
type ChannelSettings struct {
	Enabled    bool   `json:"enabled"`
	WebhookRef string `json:"webhookRef,omitempty"`
	BotTokenRef string `json:"botTokenRef,omitempty"`
	ChatID     string `json:"chatId,omitempty"`
}

// Checklist surfaces onboarding completeness flags, derived on read.
type Checklist struct {
	ConnectionsConfigured  bool `json:"connectionsConfigured"`
	ModelProfileConfigured bool `json:"modelProfileConfigured"`
	ReportTypeConfigured   bool `json:"reportTypeConfigured"`
	ChannelsConfigured     bool `json:"channelsConfigured"`
}

// Settings is the lazily-initialized, tenant-scoped configuration
// surface. Policies is a read-time projection of
// Tenant.AutonomyPolicy; it is never stored separately.
type Settings struct {
	TenantID          string                     `json:"tenantId"`
	General           map[string]any             `json:"general"`
	ModelPreferences  ModelPreferences           `json:"modelPreferences"`
	Training          TrainingSettings           `json:"training"`
	Channels          map[string]ChannelSettings `json:"channels"`
	Policies          AutonomyPolicy             `json:"policies"`
	Checklist         Checklist                  `json:"checklist"`
}

// ModelPreferences records the tenant's chosen default provider/profile.
type ModelPreferences struct {
	DefaultProvider  string `json:"defaultProvider"`
	DefaultProfileID string `json:"defaultProfileId"`
}

// TrainingSettings mirrors Tenant.TrainingOptIn.
type TrainingSettings struct {
	OptIn bool `json:"optIn"`
}
