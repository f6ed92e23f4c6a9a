package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/NitrousOX/DRS---projekat/internal/infra/postgres"
	pgmigrations "github.com/NitrousOX/DRS---projekat/internal/infra/postgres/migrations"
	infraredis "github.com/NitrousOX/DRS---projekat/internal/infra/redis"
	"github.com/NitrousOX/DRS---projekat/internal/infra/security"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestAccountsAndQuizzesAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	if _, err := postgres.Migrate(ctx, db, pgmigrations.Accounts); err != nil {
		t.Fatalf("migrate accounts: %v", err)
	}
	if _, err := postgres.Migrate(ctx, db, pgmigrations.Quizzes); err != nil {
		t.Fatalf("migrate quizzes: %v", err)
	}
	applied, err := postgres.Migrate(ctx, db, pgmigrations.Quizzes)
	if err != nil {
		t.Fatalf("re-run migrations: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected no pending migrations, got %v", applied)
	}

	pool, err := postgres.ConnectPool(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	t.Run("lockout", func(t *testing.T) {
		users := postgres.NewUserRepository(pool)
		accounts := app.NewAccountService(users, security.NewBcryptHasher(4),
			security.NewTokenManager("integration-secret", time.Hour), app.AccountOptions{})
		now := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
		accounts.SetClock(func() time.Time { return now })

		if _, err := accounts.Register(ctx, domain.Registration{
			Email: "Ana@Example.com", Password: "secret1", FirstName: "Ana", LastName: "Anic",
		}); err != nil {
			t.Fatalf("register: %v", err)
		}
		_, err := accounts.Register(ctx, domain.Registration{
			Email: "ana@example.com", Password: "secret1", FirstName: "Ana", LastName: "Anic",
		})
		if domain.KindOf(err) != domain.KindConflict {
			t.Fatalf("expected conflict on duplicate email, got %v", err)
		}

		for i := 0; i < 3; i++ {
			if _, err := accounts.Login(ctx, "ana@example.com", "wrong"); domain.KindOf(err) != domain.KindAuth {
				t.Fatalf("attempt %d: expected auth error, got %v", i+1, err)
			}
		}
		_, err = accounts.Login(ctx, "ana@example.com", "secret1")
		if domain.KindOf(err) != domain.KindLocked {
			t.Fatalf("expected locked account, got %v", err)
		}
		if secs := domain.AsError(err).RetryAfterSeconds(); secs != 60 {
			t.Fatalf("expected retry after 60s, got %d", secs)
		}

		now = now.Add(61 * time.Second)
		session, err := accounts.Login(ctx, "ana@example.com", "secret1")
		if err != nil {
			t.Fatalf("login after lock expiry: %v", err)
		}
		user, err := users.ByID(ctx, session.User.ID)
		if err != nil {
			t.Fatalf("load user: %v", err)
		}
		if user.FailedLogins != 0 || user.LockedUntil != nil {
			t.Fatalf("expected counters reset, got %d/%v", user.FailedLogins, user.LockedUntil)
		}
	})

	t.Run("concurrent failures stop at the threshold", func(t *testing.T) {
		users := postgres.NewUserRepository(pool)
		created, err := users.Create(ctx, domain.User{
			Email: "race@example.com", PasswordHash: "x", FirstName: "R", LastName: "R", Role: domain.RolePlayer,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		now := time.Now().UTC()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := users.RecordFailedLogin(ctx, created.ID, now, domain.DefaultLockoutPolicy); err != nil {
					t.Errorf("record failed login: %v", err)
				}
			}()
		}
		wg.Wait()

		user, err := users.ByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("load user: %v", err)
		}
		if user.FailedLogins != 3 {
			t.Fatalf("expected exactly 3 counted failures, got %d", user.FailedLogins)
		}
		if user.LockedUntil == nil || !user.LockedUntil.After(now) {
			t.Fatalf("expected account locked, got %v", user.LockedUntil)
		}
	})

	t.Run("quiz lifecycle and ranking", func(t *testing.T) {
		quizzes := postgres.NewQuizRepository(db)
		results := postgres.NewResultRepository(db)
		service := app.NewQuizService(quizzes, results, zap.NewNop())

		quiz, err := service.CreateQuiz(ctx, domain.NewQuiz{
			Title: "Capitals", DurationSeconds: 120, AuthorID: 7, AuthorEmail: "author@example.com",
		})
		if err != nil {
			t.Fatalf("create quiz: %v", err)
		}
		if quiz.Status != domain.StatusDraft {
			t.Fatalf("expected DRAFT, got %s", quiz.Status)
		}

		q1, err := service.AddQuestion(ctx, quiz.ID, "Capital of France?", 2)
		if err != nil {
			t.Fatalf("add question: %v", err)
		}
		q2, err := service.AddQuestion(ctx, quiz.ID, "Pick the even numbers", 3)
		if err != nil {
			t.Fatalf("add question: %v", err)
		}
		paris := mustAnswer(t, ctx, service, q1.ID, "Paris", true)
		mustAnswer(t, ctx, service, q1.ID, "Lyon", false)
		two := mustAnswer(t, ctx, service, q2.ID, "2", true)
		four := mustAnswer(t, ctx, service, q2.ID, "4", true)
		mustAnswer(t, ctx, service, q2.ID, "5", false)

		if _, err := service.AddAnswer(ctx, 999999, "orphan", true); domain.KindOf(err) != domain.KindNotFound {
			t.Fatalf("expected not found for unknown question, got %v", err)
		}

		full, err := service.Get(ctx, quiz.ID)
		if err != nil {
			t.Fatalf("get quiz: %v", err)
		}
		if len(full.Questions) != 2 || full.Questions[0].ID != q1.ID || len(full.Questions[1].Answers) != 3 {
			t.Fatalf("unexpected quiz tree: %+v", full)
		}
		if full.MaxScore() != 5 {
			t.Fatalf("expected max score 5, got %d", full.MaxScore())
		}

		if _, err := service.Approve(ctx, quiz.ID); domain.KindOf(err) != domain.KindState {
			t.Fatalf("expected state error approving a draft, got %v", err)
		}
		if _, err := service.Submit(ctx, quiz.ID); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if _, err := service.Reject(ctx, quiz.ID, "typo in question 2"); err != nil {
			t.Fatalf("reject: %v", err)
		}
		rejected, err := service.Get(ctx, quiz.ID)
		if err != nil {
			t.Fatalf("get rejected: %v", err)
		}
		if rejected.RejectReason == nil || *rejected.RejectReason != "typo in question 2" {
			t.Fatalf("expected reject reason stored, got %v", rejected.RejectReason)
		}
		if _, err := service.Submit(ctx, quiz.ID); err != nil {
			t.Fatalf("resubmit: %v", err)
		}
		approved, err := service.Approve(ctx, quiz.ID)
		if err != nil {
			t.Fatalf("approve: %v", err)
		}
		if approved.Status != domain.StatusApproved || approved.RejectReason != nil {
			t.Fatalf("unexpected approved quiz: %+v", approved)
		}
		if _, err := service.AddQuestion(ctx, quiz.ID, "late", 1); domain.KindOf(err) != domain.KindState {
			t.Fatalf("expected approved quiz to be read-only, got %v", err)
		}
		if _, err := quizzes.AddQuestion(ctx, domain.Question{QuizID: quiz.ID, Text: "raced", Points: 1}); domain.KindOf(err) != domain.KindState {
			t.Fatalf("expected guarded insert to refuse a non-editable quiz, got %v", err)
		}
		if _, err := quizzes.AddAnswer(ctx, domain.Answer{QuestionID: q1.ID, Text: "raced"}); domain.KindOf(err) != domain.KindState {
			t.Fatalf("expected guarded answer insert to refuse a non-editable quiz, got %v", err)
		}

		grade := func(user int64, spent int, answers []domain.SubmittedAnswer) domain.ScoreResult {
			t.Helper()
			res, err := service.Grade(ctx, quiz.ID, domain.Submission{
				UserID: user, UserEmail: fmt.Sprintf("p%d@example.com", user), TimeSpentSeconds: spent, Answers: answers,
			})
			if err != nil {
				t.Fatalf("grade user %d: %v", user, err)
			}
			return res
		}
		perfect := []domain.SubmittedAnswer{
			{QuestionID: q1.ID, AnswerIDs: []int64{paris.ID}},
			{QuestionID: q2.ID, AnswerIDs: []int64{four.ID, two.ID}},
		}
		partial := []domain.SubmittedAnswer{
			{QuestionID: q1.ID, AnswerIDs: []int64{paris.ID}},
			{QuestionID: q2.ID, AnswerIDs: []int64{two.ID}},
		}
		if res := grade(1, 40, perfect); res.Score != 5 || res.CorrectCount != 2 {
			t.Fatalf("unexpected perfect result: %+v", res)
		}
		if res := grade(2, 10, partial); res.Score != 2 || res.CorrectCount != 1 {
			t.Fatalf("unexpected partial result: %+v", res)
		}
		grade(3, 30, perfect)

		board, err := service.Leaderboard(ctx, quiz.ID, 10)
		if err != nil {
			t.Fatalf("leaderboard: %v", err)
		}
		var order []int64
		for _, entry := range board.Results {
			order = append(order, entry.UserID)
		}
		if fmt.Sprint(order) != "[3 1 2]" {
			t.Fatalf("expected ranking [3 1 2], got %v", order)
		}
		top, err := service.Leaderboard(ctx, quiz.ID, 1)
		if err != nil {
			t.Fatalf("leaderboard limit: %v", err)
		}
		if len(top.Results) != 1 {
			t.Fatalf("expected one result, got %d", len(top.Results))
		}

		if err := service.Delete(ctx, quiz.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := service.Get(ctx, quiz.ID); domain.KindOf(err) != domain.KindNotFound {
			t.Fatalf("expected deleted quiz to be gone, got %v", err)
		}
		var leftover int
		if err := db.NewRaw(`SELECT count(*) FROM quiz_results WHERE quiz_id = ?`, quiz.ID).Scan(ctx, &leftover); err != nil {
			t.Fatalf("count results: %v", err)
		}
		if leftover != 0 {
			t.Fatalf("expected results removed with the quiz, got %d", leftover)
		}
	})
}

func TestAttemptsAreSingleUseInRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	store := infraredis.NewAttemptStore(client)
	attempt := domain.Attempt{ID: "a-1", UserID: 4, UserEmail: "p@example.com", QuizID: 9, StartedAt: time.Now().UTC()}
	if err := store.Save(ctx, attempt, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Take(ctx, attempt.ID)
			if err != nil {
				if domain.KindOf(err) != domain.KindNotFound {
					t.Errorf("take: %v", err)
				}
				return
			}
			if got.QuizID != attempt.QuizID {
				t.Errorf("unexpected attempt: %+v", got)
			}
			mu.Lock()
			taken++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if taken != 1 {
		t.Fatalf("expected exactly one successful take, got %d", taken)
	}

	outcome := domain.AttemptOutcome{AttemptID: attempt.ID, Status: domain.OutcomeProcessing}
	if err := store.SaveOutcome(ctx, outcome, time.Minute); err != nil {
		t.Fatalf("save outcome: %v", err)
	}
	got, err := store.Outcome(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if got.Status != domain.OutcomeProcessing {
		t.Fatalf("expected processing outcome, got %s", got.Status)
	}
}

func mustAnswer(t *testing.T, ctx context.Context, service *app.QuizService, questionID int64, text string, correct bool) domain.Answer {
	t.Helper()
	answer, err := service.AddAnswer(ctx, questionID, text, correct)
	if err != nil {
		t.Fatalf("add answer %q: %v", text, err)
	}
	return answer
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "kviz", "POSTGRES_PASSWORD": "kvizpass", "POSTGRES_DB": "kviz"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://kviz:kvizpass@%s:%s/kviz?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
