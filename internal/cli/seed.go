package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"quizzer/internal/app"
	"quizzer/internal/config"
	"quizzer/internal/domain"
)

// NewSeedCmd wipes the store and loads demo accounts, courses and quizzes.
func NewSeedCmd(configPath *string) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Reset the store and load demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, password)
		},
	}
	cmd.Flags().StringVar(&password, "password", "password", "password for every seeded account")
	return cmd
}

type seedCourse struct {
	teacher string
	input   app.CourseInput
	quiz    app.AuthoringInput
}

var (
	seedTeachers = []app.RegisterInput{
		{Name: "Meera Iyer", Username: "meera", Age: 47, Occupation: string(domain.RoleTeacher)},
		{Name: "Tomas Brandt", Username: "tomas", Age: 38, Occupation: string(domain.RoleTeacher)},
	}
	seedStudents = []app.RegisterInput{
		{Name: "Ada Okafor", Username: "ada", Age: 19, Occupation: string(domain.RoleStudent)},
		{Name: "Ravi Menon", Username: "ravi", Age: 20, Occupation: string(domain.RoleStudent)},
		{Name: "Lena Vogel", Username: "lena", Age: 21, Occupation: string(domain.RoleStudent)},
	}
	seedCourses = []seedCourse{
		{
			teacher: "meera",
			input:   app.CourseInput{Name: "Arithmetic", Code: "MATH101", PassingScore: 20},
			quiz: app.AuthoringInput{
				Topics:    []string{"addition", "multiplication"},
				Questions: []string{"What is 7 + 5?", "What is 6 x 7?", "What is 9 x 9?"},
				Options: [][]string{
					{"11", "12", "13", "14"},
					{"36", "48", "42", "49"},
					{"81", "72", "99", "18"},
				},
				Correct:         []int{2, 3, 1},
				DurationMinutes: 5,
			},
		},
		{
			teacher: "tomas",
			input:   app.CourseInput{Name: "Networking Basics", Code: "NET110", PassingScore: 10},
			quiz: app.AuthoringInput{
				Topics:    []string{"tcp/ip"},
				Questions: []string{"Which port does HTTPS use by default?", "Which layer does IP belong to?"},
				Options: [][]string{
					{"80", "21", "443", "8080"},
					{"Transport", "Network", "Session", "Physical"},
				},
				Correct:         []int{3, 2},
				DurationMinutes: 3,
			},
		},
	}
)

func runSeed(ctx context.Context, configPath, password string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Store.Driver == config.DriverMemory {
		return fmt.Errorf("seeding the in-memory store has no lasting effect; configure postgres or mongo")
	}
	log := newLogger(cfg)

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	service := app.NewService(b.store, b.feeds, app.WithLogger(log))
	if err := seed(ctx, b.store, service, password); err != nil {
		return err
	}
	log.Info("seeding completed",
		"teachers", len(seedTeachers),
		"students", len(seedStudents),
		"courses", len(seedCourses),
	)
	return nil
}

// seed resets store and loads the demo data through service so every record
// passes the same validation as user input.
func seed(ctx context.Context, store app.Store, service *app.Service, password string) error {
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}

	teachers := make(map[string]domain.User, len(seedTeachers))
	for _, in := range seedTeachers {
		in.Password = password
		user, err := service.Register(ctx, in)
		if err != nil {
			return fmt.Errorf("seed teacher %s: %w", in.Username, err)
		}
		teachers[user.Username] = user
	}

	courseIDs := make([]string, 0, len(seedCourses))
	for _, sc := range seedCourses {
		course, err := service.CreateCourse(ctx, teachers[sc.teacher].ID, sc.input)
		if err != nil {
			return fmt.Errorf("seed course %s: %w", sc.input.Code, err)
		}
		if _, err := service.ReplaceQuiz(ctx, course.ID, sc.quiz); err != nil {
			return fmt.Errorf("seed quiz for %s: %w", sc.input.Code, err)
		}
		courseIDs = append(courseIDs, course.ID)
	}

	for i, in := range seedStudents {
		in.Password = password
		user, err := service.Register(ctx, in)
		if err != nil {
			return fmt.Errorf("seed student %s: %w", in.Username, err)
		}
		// the last student is left unenrolled to demo enrollment
		if i == len(seedStudents)-1 {
			continue
		}
		if _, err := service.Enroll(ctx, user.ID, courseIDs); err != nil {
			return fmt.Errorf("enroll %s: %w", in.Username, err)
		}
	}
	return nil
}
