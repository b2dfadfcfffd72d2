package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
	"kyccase/pkg/platform/sentinel"
)

type memoryData struct {
	subjects  map[id.SubjectID]*models.Subject
	documents map[id.DocumentID]*models.Document
	cases     map[id.SubjectID]workflow.Snapshot
	results   map[id.SubjectID][]*models.ScreeningResult
	reports   map[id.SubjectID][]*models.Report
}

func newMemoryData() *memoryData {
	return &memoryData{
		subjects:  make(map[id.SubjectID]*models.Subject),
		documents: make(map[id.DocumentID]*models.Document),
		cases:     make(map[id.SubjectID]workflow.Snapshot),
		results:   make(map[id.SubjectID][]*models.ScreeningResult),
		reports:   make(map[id.SubjectID][]*models.Report),
	}
}

// snapshot copies the maps. Entries are replaced, never mutated, so a
// shallow copy is enough to roll back.
func (d *memoryData) snapshot() *memoryData {
	out := newMemoryData()
	for k, v := range d.subjects {
		out.subjects[k] = v
	}
	for k, v := range d.documents {
		out.documents[k] = v
	}
	for k, v := range d.cases {
		out.cases[k] = v
	}
	for k, v := range d.results {
		out.results[k] = v
	}
	for k, v := range d.reports {
		out.reports[k] = v
	}
	return out
}

// Memory is an in-process catalog. Transactions are serialized and roll
// back by restoring the pre-transaction maps.
type Memory struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    *memoryData
}

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{d: newMemoryData()}
}

const defaultTxTimeout = 5 * time.Second

func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	before := m.d.snapshot()
	m.mu.RUnlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.d = before
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) CreateSubject(_ context.Context, s *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.d.subjects[s.ID]; ok {
		return sentinel.ErrConflict
	}
	if m.identifierTaken(s) {
		return sentinel.ErrConflict
	}
	m.d.subjects[s.ID] = cloneSubject(s)
	return nil
}

func (m *Memory) UpdateSubject(_ context.Context, s *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.d.subjects[s.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if m.identifierTaken(s) {
		return sentinel.ErrConflict
	}
	m.d.subjects[s.ID] = cloneSubject(s)
	return nil
}

// identifierTaken reports whether another subject already holds one of s's
// unique keys. External ids are unique everywhere; document numbers,
// registration numbers and emails only among submitted subjects of the same
// variant.
func (m *Memory) identifierTaken(s *models.Subject) bool {
	for _, existing := range m.d.subjects {
		if existing.ID == s.ID {
			continue
		}
		if existing.ExternalID == s.ExternalID {
			return true
		}
		if s.IsDraft || existing.IsDraft || existing.Variant() != s.Variant() {
			continue
		}
		if sameKey(existing.IDDocumentNumber(), s.IDDocumentNumber()) ||
			sameKey(existing.RegistrationNumber(), s.RegistrationNumber()) ||
			sameKey(existing.Email, s.Email) {
			return true
		}
	}
	return false
}

func sameKey(a, b string) bool { return a != "" && a == b }

func (m *Memory) GetSubject(_ context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.d.subjects[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSubject(s), nil
}

func (m *Memory) FindSubjectByIdentifier(_ context.Context, identifier string) (*models.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subjects := m.sortedSubjects()
	// submitted subjects hold their keys uniquely; drafts may repeat them
	sort.SliceStable(subjects, func(i, j int) bool { return !subjects[i].IsDraft && subjects[j].IsDraft })
	matchers := []func(*models.Subject) string{
		(*models.Subject).IDDocumentNumber,
		(*models.Subject).RegistrationNumber,
		func(s *models.Subject) string { return s.ExternalID },
	}
	for _, field := range matchers {
		for _, s := range subjects {
			if v := field(s); v != "" && v == identifier {
				return cloneSubject(s), nil
			}
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) ListSubjectsCreatedBetween(_ context.Context, from, to time.Time) ([]*models.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Subject
	for _, s := range m.sortedSubjects() {
		if !s.CreatedAt.Before(from) && s.CreatedAt.Before(to) {
			out = append(out, cloneSubject(s))
		}
	}
	return out, nil
}

func (m *Memory) ListIndividualsWithIDExpiryBefore(_ context.Context, before time.Time) ([]*models.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Subject
	for _, s := range m.sortedSubjects() {
		if exp := s.PrimaryIDExpiry(); exp != nil && exp.Before(before) {
			out = append(out, cloneSubject(s))
		}
	}
	return out, nil
}

func (m *Memory) sortedSubjects() []*models.Subject {
	out := make([]*models.Subject, 0, len(m.d.subjects))
	for _, s := range m.d.subjects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (m *Memory) SaveDocument(_ context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.d.subjects[d.SubjectID]; !ok {
		return sentinel.ErrNotFound
	}
	m.d.documents[d.ID] = cloneDocument(d)
	return nil
}

func (m *Memory) GetDocument(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.d.documents[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDocument(d), nil
}

func (m *Memory) ListDocuments(_ context.Context, subjectID id.SubjectID) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Document
	for _, d := range m.d.documents {
		if d.SubjectID == subjectID {
			out = append(out, cloneDocument(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) SaveCase(_ context.Context, c *workflow.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.cases[c.SubjectID()] = c.Snapshot()
	return nil
}

func (m *Memory) GetCase(_ context.Context, subjectID id.SubjectID) (*workflow.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.d.cases[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return workflow.Restore(snap)
}

// GetCaseForUpdate relies on RunInTx serializing writers.
func (m *Memory) GetCaseForUpdate(ctx context.Context, subjectID id.SubjectID) (*workflow.Case, error) {
	return m.GetCase(ctx, subjectID)
}

func (m *Memory) ListCases(_ context.Context, filter ports.CaseFilter) ([]*workflow.Case, error) {
	m.mu.RLock()
	snaps := make([]workflow.Snapshot, 0, len(m.d.cases))
	for _, snap := range m.d.cases {
		if filter.State != "" && snap.CurrentState != filter.State {
			continue
		}
		if filter.CreatedFrom != nil && snap.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && !snap.CreatedAt.Before(*filter.CreatedTo) {
			continue
		}
		snaps = append(snaps, snap)
	}
	m.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
		}
		return snaps[i].SubjectID.String() < snaps[j].SubjectID.String()
	})
	if filter.Limit > 0 && len(snaps) > filter.Limit {
		snaps = snaps[:filter.Limit]
	}

	out := make([]*workflow.Case, 0, len(snaps))
	for _, snap := range snaps {
		c, err := workflow.Restore(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *Memory) SaveResult(_ context.Context, r *models.ScreeningResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.d.results[r.SubjectID]
	next := make([]*models.ScreeningResult, 0, len(prev)+1)
	for _, existing := range prev {
		if existing.ID != r.ID {
			next = append(next, existing)
		}
	}
	m.d.results[r.SubjectID] = append(next, cloneResult(r))
	return nil
}

func (m *Memory) LatestResult(_ context.Context, subjectID id.SubjectID) (*models.ScreeningResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.ScreeningResult
	for _, r := range m.d.results[subjectID] {
		if latest == nil || !r.ScreenedAt.Before(latest.ScreenedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneResult(latest), nil
}

func (m *Memory) DeleteResults(_ context.Context, subjectID id.SubjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.d.results[subjectID])
	delete(m.d.results, subjectID)
	return n, nil
}

func (m *Memory) SaveReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.d.reports[r.SubjectID]
	next := make([]*models.Report, 0, len(prev)+1)
	for _, existing := range prev {
		if existing.ID == r.ID {
			continue
		}
		if existing.ReportNumber == r.ReportNumber {
			return sentinel.ErrConflict
		}
		next = append(next, existing)
	}
	m.d.reports[r.SubjectID] = append(next, cloneReport(r))
	return nil
}

func (m *Memory) CurrentReport(_ context.Context, subjectID id.SubjectID) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var current *models.Report
	for _, r := range m.d.reports[subjectID] {
		if r.Superseded {
			continue
		}
		if current == nil || !r.GeneratedAt.Before(current.GeneratedAt) {
			current = r
		}
	}
	if current == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneReport(current), nil
}

func (m *Memory) ListReports(_ context.Context, subjectID id.SubjectID) ([]*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Report, 0, len(m.d.reports[subjectID]))
	for _, r := range m.d.reports[subjectID] {
		out = append(out, cloneReport(r))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.Before(out[j].GeneratedAt) })
	return out, nil
}
