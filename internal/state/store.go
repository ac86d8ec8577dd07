package state

import (
	"sort"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/ids"
)

// Store is the single process-wide, tenant-partitioned container for
// all control-plane state. One mutex guards every mutating
// sequence/map; read-only scans take the same lock (cheap, in-memory)
// to keep the discipline uniform and avoid torn reads during a save.
type Store struct {
	mu sync.Mutex

	blueprints map[string]Blueprint // static catalog, not mutated after boot

	tenants map[string]*Tenant

	facts       []Fact
	factIndex   map[IdempotencyKey]string // key -> fact id

	secrets map[string]SecretDescriptor // authRef -> descriptor

	connections map[string]*SourceConnection
	sourceRuns  []SourceRun

	liveQueryCache *cache.Cache
	materializations []MaterializationRun

	providerHealth map[string]*ProviderHealth // "tenantId|provider"

	modelRuns []ModelRun
	insights  []Insight
	approvals []ActionApproval

	installedSkills map[string]*InstalledSkill // installId -> skill
	skillRuns       []SkillRun

	reports        []Report
	schedules      map[string]*ReportSchedule
	consumedTicks  map[string]bool // "scheduleId|nextRunAtUnix"
	channelEvents  map[string]*ChannelEvent

	analysisRuns map[string]*AnalysisRun

	auditEvents []AuditEvent
	lastHash    string

	modelProfiles map[string]*ModelProfile
	reportTypes   map[string]*ReportType
	settings      map[string]*Settings

	onMutate func(Snapshot) // persistence hook, invoked under the write lock after every mutation
}

// New constructs an empty store seeded with the static blueprint catalog.
func New(blueprints map[string]Blueprint) *Store {
	return &Store{
		blueprints:      blueprints,
		tenants:         map[string]*Tenant{},
		factIndex:       map[IdempotencyKey]string{},
		secrets:         map[string]SecretDescriptor{},
		connections:     map[string]*SourceConnection{},
		liveQueryCache:  cache.New(60*time.Second, 2*time.Minute),
		providerHealth:  map[string]*ProviderHealth{},
		installedSkills: map[string]*InstalledSkill{},
		schedules:       map[string]*ReportSchedule{},
		consumedTicks:   map[string]bool{},
		channelEvents:   map[string]*ChannelEvent{},
		analysisRuns:    map[string]*AnalysisRun{},
		modelProfiles:   map[string]*ModelProfile{},
		reportTypes:     map[string]*ReportType{},
		settings:        map[string]*Settings{},
	}
}

// SetMutateHook registers the callback invoked, still under the write
// lock, after every mutating operation, used by the persistence port to
// save. It receives the freshly mutated snapshot so it never needs to
// call back into the store (which would deadlock while the lock is held).
func (s *Store) SetMutateHook(fn func(Snapshot)) {
	s.mu.Lock()
	s.onMutate = fn
	s.mu.Unlock()
}

// withLock runs fn under the write lock and, while still holding it,
// fires the persistence hook. Mutation and save must be atomically
// observable together: a concurrent reader must never see the mutated
// state before it's durable, so the lock stays held across both.
func (s *Store) withLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	if s.onMutate != nil {
		s.onMutate(s.snapshotLocked())
	}
}

func (s *Store) readLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Blueprint looks up a static blueprint by id.
func (s *Store) Blueprint(id string) (Blueprint, bool) {
	bp, ok := s.blueprints[id]
	return bp, ok
}

// requireTenant returns the tenant or a NotFound error. Caller must hold s.mu.
func (s *Store) requireTenant(tenantID string) (*Tenant, error) {
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, apierror.NotFound("tenant %q not found", tenantID)
	}
	return t, nil
}

// sortedKeys is a small helper used by several list operations to
// produce deterministic output order for map-backed collections.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newULID(prefix string) string { return ids.NewSortable(prefix) }
func newUUID(prefix string) string { return ids.New(prefix) }
