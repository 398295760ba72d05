package services

import (
	"context"
	"io"
	"log/slog"

	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ===== QUESTION REPOSITORY MOCK =====

type usageBump struct {
	ids   []uint
	delta int
}

type mockQuestionRepo struct {
	questions   map[uint]*models.Question
	pools       map[models.DifficultyLevel][]*models.Question
	incremented []usageBump
	outcomes    []repositories.QuestionOutcome
}

func newMockQuestionRepo() *mockQuestionRepo {
	return &mockQuestionRepo{
		questions: make(map[uint]*models.Question),
		pools:     make(map[models.DifficultyLevel][]*models.Question),
	}
}

func (m *mockQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if question.ID == 0 {
		question.ID = uint(len(m.questions) + 1)
	}
	m.questions[question.ID] = question
	return nil
}

func (m *mockQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return q, nil
}

func (m *mockQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	m.questions[question.ID] = question
	return nil
}

func (m *mockQuestionRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if q, ok := m.questions[id]; ok {
		q.Active = false
	}
	return nil
}

func (m *mockQuestionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	for _, q := range questions {
		if err := m.Create(ctx, tx, q); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	var out []*models.Question
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockQuestionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	var out []*models.Question
	for _, q := range m.questions {
		out = append(out, q)
	}
	return out, int64(len(out)), nil
}

func (m *mockQuestionRepo) GetPool(ctx context.Context, tx *gorm.DB, subjectIDs []uint, ownerID string, difficulty models.DifficultyLevel) ([]*models.Question, error) {
	var out []*models.Question
	for _, q := range m.pools[difficulty] {
		if q.CreatedBy == ownerID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockQuestionRepo) CountPool(ctx context.Context, tx *gorm.DB, subjectIDs []uint, ownerID string) (map[models.DifficultyLevel]int, error) {
	counts := make(map[models.DifficultyLevel]int)
	for _, level := range models.Difficulties {
		counts[level] = 0
		for _, q := range m.pools[level] {
			if q.CreatedBy == ownerID {
				counts[level]++
			}
		}
	}
	return counts, nil
}

func (m *mockQuestionRepo) IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uint, delta int) error {
	m.incremented = append(m.incremented, usageBump{ids: ids, delta: delta})
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			q.TimesUsed += delta
		}
	}
	return nil
}

func (m *mockQuestionRepo) usageTotals() map[uint]int {
	totals := make(map[uint]int)
	for _, bump := range m.incremented {
		for _, id := range bump.ids {
			totals[id] += bump.delta
		}
	}
	return totals
}

func (m *mockQuestionRepo) RecordOutcome(ctx context.Context, tx *gorm.DB, outcomes []repositories.QuestionOutcome) error {
	m.outcomes = append(m.outcomes, outcomes...)
	return nil
}

func (m *mockQuestionRepo) GetUsageStats(ctx context.Context, tx *gorm.DB, subjectID uint) (*repositories.QuestionUsageStats, error) {
	return &repositories.QuestionUsageStats{}, nil
}

// ===== SUBJECT REPOSITORY MOCK =====

type mockSubjectRepo struct {
	subjects map[uint]*models.Subject
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{subjects: make(map[uint]*models.Subject)}
}

func (m *mockSubjectRepo) Create(ctx context.Context, tx *gorm.DB, subject *models.Subject) error {
	if subject.ID == 0 {
		subject.ID = uint(len(m.subjects) + 1)
	}
	m.subjects[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error) {
	s, ok := m.subjects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (m *mockSubjectRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Subject, error) {
	var out []*models.Subject
	for _, id := range ids {
		if s, ok := m.subjects[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSubjectRepo) List(ctx context.Context, tx *gorm.DB) ([]*models.Subject, error) {
	var out []*models.Subject
	for _, s := range m.subjects {
		out = append(out, s)
	}
	return out, nil
}

// ===== EXAM REPOSITORY MOCK =====

type mockExamRepo struct {
	exams      map[uint]*models.Exam
	hasResults bool
	statuses   map[uint]models.ExamStatus
}

func newMockExamRepo() *mockExamRepo {
	return &mockExamRepo{
		exams:    make(map[uint]*models.Exam),
		statuses: make(map[uint]models.ExamStatus),
	}
}

func (m *mockExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if exam.ID == 0 {
		exam.ID = uint(len(m.exams) + 1)
	}
	m.exams[exam.ID] = exam
	return nil
}

func (m *mockExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	e, ok := m.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return e, nil
}

func (m *mockExamRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	return m.GetByID(ctx, tx, id)
}

func (m *mockExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	m.exams[exam.ID] = exam
	return nil
}

func (m *mockExamRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	delete(m.exams, id)
	return nil
}

func (m *mockExamRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	var out []*models.Exam
	for _, e := range m.exams {
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (m *mockExamRepo) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	var out []*models.Exam
	for _, e := range m.exams {
		if e.CreatedBy == creatorID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockExamRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus) error {
	m.statuses[id] = status
	if e, ok := m.exams[id]; ok {
		e.Status = status
	}
	return nil
}

func (m *mockExamRepo) HasResults(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	return m.hasResults, nil
}

// ===== VARIATION REPOSITORY MOCK =====

type mockVariationRepo struct {
	variations map[uint]*models.Variation
	links      map[uint][]*models.VariationQuestion
	nextID     uint
	deletes    []uint
	qrPayloads map[uint][]byte
}

func newMockVariationRepo() *mockVariationRepo {
	return &mockVariationRepo{
		variations: make(map[uint]*models.Variation),
		links:      make(map[uint][]*models.VariationQuestion),
		qrPayloads: make(map[uint][]byte),
	}
}

func (m *mockVariationRepo) Create(ctx context.Context, tx *gorm.DB, variation *models.Variation) error {
	m.nextID++
	variation.ID = m.nextID
	m.variations[variation.ID] = variation
	return nil
}

func (m *mockVariationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Variation, error) {
	v, ok := m.variations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return v, nil
}

func (m *mockVariationRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Variation, error) {
	return m.GetByID(ctx, tx, id)
}

func (m *mockVariationRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Variation, error) {
	var out []*models.Variation
	for _, v := range m.variations {
		if v.ExamID == examID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockVariationRepo) DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error {
	m.deletes = append(m.deletes, examID)
	for id, v := range m.variations {
		if v.ExamID == examID {
			delete(m.variations, id)
			delete(m.links, id)
		}
	}
	return nil
}

func (m *mockVariationRepo) UpdateQRPayload(ctx context.Context, tx *gorm.DB, id uint, payload []byte) error {
	m.qrPayloads[id] = payload
	return nil
}

func (m *mockVariationRepo) CreateQuestionLinks(ctx context.Context, tx *gorm.DB, links []*models.VariationQuestion) error {
	for _, link := range links {
		m.links[link.VariationID] = append(m.links[link.VariationID], link)
	}
	return nil
}

func (m *mockVariationRepo) GetQuestionLinks(ctx context.Context, tx *gorm.DB, variationID uint) ([]*models.VariationQuestion, error) {
	return m.links[variationID], nil
}

func (m *mockVariationRepo) CountQuestionUsage(ctx context.Context, tx *gorm.DB, examID uint) (map[uint]int, error) {
	usage := make(map[uint]int)
	for id, v := range m.variations {
		if v.ExamID != examID {
			continue
		}
		for _, link := range m.links[id] {
			usage[link.QuestionID]++
		}
	}
	return usage, nil
}

func (m *mockVariationRepo) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	var count int64
	for _, v := range m.variations {
		if v.ExamID == examID {
			count++
		}
	}
	return count, nil
}

// ===== RESULT REPOSITORY MOCK =====

type mockResultRepo struct {
	results map[uint]*models.Result
	byKey   map[string]*models.Result
	byExam  map[uint][]*models.Result
	nextID  uint
}

func newMockResultRepo() *mockResultRepo {
	return &mockResultRepo{
		results: make(map[uint]*models.Result),
		byKey:   make(map[string]*models.Result),
		byExam:  make(map[uint][]*models.Result),
	}
}

func (m *mockResultRepo) Create(ctx context.Context, tx *gorm.DB, result *models.Result) error {
	m.nextID++
	result.ID = m.nextID
	m.results[result.ID] = result
	m.byKey[result.SubmissionKey] = result
	m.byExam[result.ExamID] = append(m.byExam[result.ExamID], result)
	return nil
}

func (m *mockResultRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Result, error) {
	r, ok := m.results[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r, nil
}

func (m *mockResultRepo) GetBySubmissionKey(ctx context.Context, tx *gorm.DB, key string) (*models.Result, error) {
	r, ok := m.byKey[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r, nil
}

func (m *mockResultRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.ResultFilters) ([]*models.Result, int64, error) {
	out := m.byExam[examID]
	return out, int64(len(out)), nil
}

func (m *mockResultRepo) GetByVariation(ctx context.Context, tx *gorm.DB, variationID uint) ([]*models.Result, error) {
	var out []*models.Result
	for _, r := range m.results {
		if r.VariationID == variationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockResultRepo) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.ResultFilters) ([]*models.Result, int64, error) {
	var out []*models.Result
	for _, r := range m.results {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockResultRepo) GetAllByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Result, error) {
	return m.byExam[examID], nil
}

func (m *mockResultRepo) ExistsForExam(ctx context.Context, tx *gorm.DB, examID uint) (bool, error) {
	return len(m.byExam[examID]) > 0, nil
}

// ===== AGGREGATE MOCK =====

type mockRepository struct {
	question  *mockQuestionRepo
	subject   *mockSubjectRepo
	exam      *mockExamRepo
	variation *mockVariationRepo
	result    *mockResultRepo
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		question:  newMockQuestionRepo(),
		subject:   newMockSubjectRepo(),
		exam:      newMockExamRepo(),
		variation: newMockVariationRepo(),
		result:    newMockResultRepo(),
	}
}

func (m *mockRepository) Question() repositories.QuestionRepository   { return m.question }
func (m *mockRepository) Subject() repositories.SubjectRepository     { return m.subject }
func (m *mockRepository) Exam() repositories.ExamRepository           { return m.exam }
func (m *mockRepository) Variation() repositories.VariationRepository { return m.variation }
func (m *mockRepository) Result() repositories.ResultRepository       { return m.result }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }
