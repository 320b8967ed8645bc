package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"quizzer/internal/client"
	"quizzer/internal/domain"
	"quizzer/internal/tui"
)

type takeOptions struct {
	server   string
	username string
	password string
	courseID string
	timeout  time.Duration
	noColor  bool
}

// NewTakeCmd runs a quiz attempt against a server in the terminal.
func NewTakeCmd() *cobra.Command {
	opts := takeOptions{}
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take a course quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.password == "" {
				opts.password = os.Getenv("QUIZZER_PASSWORD")
			}
			return runTake(cmd.Context(), opts)
		},
	}

	server := os.Getenv("QUIZZER_URL")
	if server == "" {
		server = "http://localhost:8080"
	}
	cmd.Flags().StringVar(&opts.server, "server", server, "quizzer server base URL")
	cmd.Flags().StringVarP(&opts.username, "user", "u", "", "student username")
	cmd.Flags().StringVar(&opts.password, "password", "", "student password (or QUIZZER_PASSWORD)")
	cmd.Flags().StringVarP(&opts.courseID, "course", "c", "", "course id")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request and question loading timeout")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func runTake(ctx context.Context, opts takeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := client.New(opts.server, opts.timeout)
	if err != nil {
		return err
	}

	me, err := c.Login(ctx, opts.username, opts.password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if me.Role != domain.RoleStudent {
		return fmt.Errorf("%s is not a student", opts.username)
	}
	attempt, err := c.Attempt(ctx, opts.courseID, me.ID)
	if err != nil {
		return fmt.Errorf("start attempt: %w", err)
	}

	model := tui.NewModel(tui.Options{
		Attempt: attempt,
		Fetch: func(ctx context.Context) ([]domain.QuestionView, error) {
			return c.Feed(ctx, opts.courseID)
		},
		Submit: func(ctx context.Context, score int) error {
			_, err := c.SubmitScore(ctx, opts.courseID, me.ID, score)
			return err
		},
		LoadTimeout: opts.timeout,
		NoColor:     opts.noColor,
	})

	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	result, ok := final.(tui.Model)
	if !ok {
		return nil
	}
	if err := result.Err(); err != nil {
		return err
	}
	if score, ok := result.Score(); ok {
		fmt.Printf("Recorded score %d / %d for %s\n", score, attempt.QuestionCount*domain.PointsPerQuestion, attempt.Course.Name)
	}
	return nil
}
