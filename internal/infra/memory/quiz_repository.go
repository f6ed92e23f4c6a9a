package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
)

// QuizRepository stores quizzes and results in memory. Deleting a quiz removes its
// questions, answers and results.
type QuizRepository struct {
	mu         sync.RWMutex
	seq        int64
	quizzes    map[int64]domain.Quiz
	questionOf map[int64]int64
	results    map[int64][]domain.QuizResult
}

func NewQuizRepository() *QuizRepository {
	return &QuizRepository{
		quizzes:    make(map[int64]domain.Quiz),
		questionOf: make(map[int64]int64),
		results:    make(map[int64][]domain.QuizResult),
	}
}

func (r *QuizRepository) next() int64 {
	r.seq++
	return r.seq
}

func (r *QuizRepository) Create(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz.ID = r.next()
	quiz.Questions = nil
	r.quizzes[quiz.ID] = quiz
	return quiz, nil
}

func (r *QuizRepository) Get(_ context.Context, id int64) (domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quiz, ok := r.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.NotFound("quiz")
	}
	return cloneQuiz(quiz), nil
}

func (r *QuizRepository) List(_ context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(r.quizzes))
	for _, q := range r.quizzes {
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if filter.AuthorID != 0 && q.AuthorID != filter.AuthorID {
			continue
		}
		q.Questions = nil
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *QuizRepository) AddQuestion(_ context.Context, question domain.Question) (domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.quizzes[question.QuizID]
	if !ok {
		return domain.Question{}, domain.NotFound("quiz")
	}
	if !quiz.Status.Editable() {
		return domain.Question{}, domain.State("quiz in status %s cannot be edited", quiz.Status)
	}
	question.ID = r.next()
	question.Answers = nil
	quiz.Questions = append(quiz.Questions, question)
	r.quizzes[quiz.ID] = quiz
	r.questionOf[question.ID] = quiz.ID
	return question, nil
}

func (r *QuizRepository) QuestionOwner(_ context.Context, questionID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quizID, ok := r.questionOf[questionID]
	if !ok {
		return 0, domain.NotFound("question")
	}
	return quizID, nil
}

func (r *QuizRepository) AddAnswer(_ context.Context, answer domain.Answer) (domain.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quizID, ok := r.questionOf[answer.QuestionID]
	if !ok {
		return domain.Answer{}, domain.NotFound("question")
	}
	quiz := r.quizzes[quizID]
	if !quiz.Status.Editable() {
		return domain.Answer{}, domain.State("quiz in status %s cannot be edited", quiz.Status)
	}
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == answer.QuestionID {
			answer.ID = r.next()
			quiz.Questions[i].Answers = append(quiz.Questions[i].Answers, answer)
			r.quizzes[quizID] = quiz
			return answer, nil
		}
	}
	return domain.Answer{}, domain.NotFound("question")
}

func (r *QuizRepository) Transition(_ context.Context, id int64, from []domain.QuizStatus, to domain.QuizStatus, reason *string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.quizzes[id]
	if !ok {
		return false, domain.NotFound("quiz")
	}
	allowed := false
	for _, s := range from {
		if quiz.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	quiz.Status = to
	quiz.RejectReason = reason
	quiz.UpdatedAt = at
	r.quizzes[id] = quiz
	return true, nil
}

func (r *QuizRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.quizzes[id]
	if !ok {
		return domain.NotFound("quiz")
	}
	for _, q := range quiz.Questions {
		delete(r.questionOf, q.ID)
	}
	delete(r.quizzes, id)
	delete(r.results, id)
	return nil
}

// Save implements app.ResultRepository.
func (r *QuizRepository) Save(_ context.Context, result domain.QuizResult) (domain.QuizResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[result.QuizID]; !ok {
		return domain.QuizResult{}, domain.NotFound("quiz")
	}
	result.ID = r.next()
	r.results[result.QuizID] = append(r.results[result.QuizID], result)
	return result, nil
}

// Top implements app.ResultRepository.
func (r *QuizRepository) Top(_ context.Context, quizID int64, limit int) ([]domain.QuizResult, error) {
	r.mu.RLock()
	ranked := append([]domain.QuizResult(nil), r.results[quizID]...)
	r.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool { return app.RankLess(ranked[i], ranked[j]) })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// GetQuiz lets the repository act as an app.QuizReader in single-process setups.
func (r *QuizRepository) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return r.Get(ctx, quizID)
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Answers = append([]domain.Answer(nil), question.Answers...)
		questions[i] = question
	}
	q.Questions = questions
	return q
}
