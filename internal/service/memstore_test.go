package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/repository"
)

// In-memory fakes mirroring the SQL stores' semantics: the partial unique
// active-session constraint, the terminal CAS, and the transactional
// status checks on answer and violation writes.

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[uuid.UUID]*model.Session)}
}

func (m *memSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) GetActive(_ context.Context, examID uuid.UUID, studentID int) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ExamID == examID && s.StudentID == studentID && s.Status == model.SessionStatusInProgress {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memSessionStore) GetLatest(_ context.Context, examID uuid.UUID, studentID int) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Session
	for _, s := range m.sessions {
		if s.ExamID != examID || s.StudentID != studentID {
			continue
		}
		if latest == nil || s.ServerStartedAt.After(latest.ServerStartedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *latest
	return &cp, nil
}

func (m *memSessionStore) Create(_ context.Context, s *model.Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.ExamID == s.ExamID && existing.StudentID == s.StudentID &&
			existing.Status == model.SessionStatusInProgress {
			return false, nil
		}
	}
	s.Status = model.SessionStatusInProgress
	s.Version = 0
	s.LastHeartbeatAt = s.ServerStartedAt
	cp := *s
	m.sessions[s.ID] = &cp
	return true, nil
}

func (m *memSessionStore) Terminate(_ context.Context, id uuid.UUID, expectedVersion int64, status model.SessionStatus, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != model.SessionStatusInProgress || s.Version != expectedVersion {
		return false, nil
	}
	s.Status = status
	s.Version++
	s.TerminationReason = &reason
	terminatedAt := at
	s.TerminatedAt = &terminatedAt
	return true, nil
}

func (m *memSessionStore) RecordHeartbeat(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != model.SessionStatusInProgress {
		return false, nil
	}
	s.LastHeartbeatAt = at
	return true, nil
}

func (m *memSessionStore) ListStale(_ context.Context, cutoff time.Time) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusInProgress && s.LastHeartbeatAt.Before(cutoff) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSessionStore) ListOverdue(_ context.Context, now time.Time) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusInProgress && !s.ServerDeadline.After(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSessionStore) CountTerminal(_ context.Context, examID uuid.UUID, studentID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.ExamID == examID && s.StudentID == studentID && s.Status != model.SessionStatusInProgress {
			n++
		}
	}
	return n, nil
}

// put inserts a session verbatim, bypassing Create's invariants.
func (m *memSessionStore) put(s *model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
}

type answerKey struct {
	sessionID  uuid.UUID
	questionID uuid.UUID
}

type memAnswerStore struct {
	mu       sync.Mutex
	sessions *memSessionStore
	answers  map[answerKey]model.Answer
}

func newMemAnswerStore(sessions *memSessionStore) *memAnswerStore {
	return &memAnswerStore{
		sessions: sessions,
		answers:  make(map[answerKey]model.Answer),
	}
}

func (m *memAnswerStore) UpsertBatch(ctx context.Context, sessionID uuid.UUID, answers []model.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil || s.Status != model.SessionStatusInProgress {
		return repository.ErrSessionNotWritable
	}

	for _, a := range answers {
		m.answers[answerKey{sessionID, a.QuestionID}] = a
	}
	return nil
}

func (m *memAnswerStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Answer
	for k, a := range m.answers {
		if k.sessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memViolationStore struct {
	mu       sync.Mutex
	sessions *memSessionStore
	events   []model.ViolationEvent
	nextID   int64
}

func newMemViolationStore(sessions *memSessionStore) *memViolationStore {
	return &memViolationStore{sessions: sessions}
}

func (m *memViolationStore) AppendAndCount(_ context.Context, ev *model.ViolationEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions.mu.Lock()
	s, ok := m.sessions.sessions[ev.SessionID]
	if !ok || s.Status != model.SessionStatusInProgress {
		m.sessions.mu.Unlock()
		return 0, repository.ErrSessionNotWritable
	}
	s.ViolationCount++
	count := s.ViolationCount
	m.sessions.mu.Unlock()

	m.nextID++
	ev.ID = m.nextID
	m.events = append(m.events, *ev)
	return count, nil
}

func (m *memViolationStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.ViolationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ViolationEvent
	for _, ev := range m.events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type memExamStore struct {
	mu       sync.Mutex
	exams    map[uuid.UUID]*model.Exam
	enrolled map[uuid.UUID]map[int]bool
}

func newMemExamStore() *memExamStore {
	return &memExamStore{
		exams:    make(map[uuid.UUID]*model.Exam),
		enrolled: make(map[uuid.UUID]map[int]bool),
	}
}

func (m *memExamStore) add(e *model.Exam, studentIDs ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.exams[e.ID] = &cp
	set := make(map[int]bool)
	for _, id := range studentIDs {
		set[id] = true
	}
	m.enrolled[e.ID] = set
}

func (m *memExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m *memExamStore) ListAvailable(_ context.Context) ([]model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Exam
	for _, e := range m.exams {
		if e.Status == model.ExamStatusPublished || e.Status == model.ExamStatusActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memExamStore) ListEnrolled(_ context.Context, studentID int) ([]model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Exam
	for id, e := range m.exams {
		if m.enrolled[id][studentID] {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memExamStore) IsEnrolled(_ context.Context, examID uuid.UUID, studentID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrolled[examID][studentID], nil
}

type memQuestionStore struct {
	mu        sync.Mutex
	questions map[uuid.UUID][]model.Question
}

func newMemQuestionStore() *memQuestionStore {
	return &memQuestionStore{questions: make(map[uuid.UUID][]model.Question)}
}

func (m *memQuestionStore) add(examID uuid.UUID, qs ...model.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[examID] = append(m.questions[examID], qs...)
}

func (m *memQuestionStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Question, len(m.questions[examID]))
	copy(out, m.questions[examID])
	return out, nil
}

type memCache struct {
	mu       sync.Mutex
	payloads map[uuid.UUID]*model.ExamPayload
	sets     int
}

func newMemCache() *memCache {
	return &memCache{payloads: make(map[uuid.UUID]*model.ExamPayload)}
}

func (m *memCache) Get(_ context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payloads[examID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return p, nil
}

func (m *memCache) Set(_ context.Context, payload *model.ExamPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[payload.ExamID] = payload
	m.sets++
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	enqueued  []uuid.UUID
	published []TerminatedMessage
}

func (n *fakeNotifier) EnqueueResult(_ context.Context, sessionID uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enqueued = append(n.enqueued, sessionID)
	return nil
}

func (n *fakeNotifier) PublishTerminated(_ context.Context, sessionID uuid.UUID, status model.SessionStatus, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, TerminatedMessage{SessionID: sessionID, Status: status, Reason: reason})
	return nil
}

func (n *fakeNotifier) enqueueCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.enqueued)
}
