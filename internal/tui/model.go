// Package tui is the terminal quiz runner built on Bubble Tea.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quizzer/internal/app"
	"quizzer/internal/runner"
)

// SubmitFunc persists the final score.
type SubmitFunc func(ctx context.Context, score int) error

// Options configures the runner model.
type Options struct {
	Attempt      app.Attempt
	Fetch        runner.FetchFunc
	Submit       SubmitFunc
	LoadTimeout  time.Duration
	TickInterval time.Duration
	Clock        func() time.Time
	NoColor      bool
}

// Model drives a runner.Session from keyboard input and a once-a-second tick.
type Model struct {
	session      *runner.Session
	attempt      app.Attempt
	fetch        runner.FetchFunc
	submit       SubmitFunc
	loadTimeout  time.Duration
	tickInterval time.Duration
	clock        func() time.Time
	now          time.Time

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	noColor bool

	submitting bool
	score      *int
	err        error
}

// NewModel constructs a runner model for one attempt.
func NewModel(opts Options) Model {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	loadTimeout := opts.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = 10 * time.Second
	}
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	duration := time.Duration(opts.Attempt.DurationMinutes) * time.Minute
	return Model{
		session:      runner.New(duration),
		attempt:      opts.Attempt,
		fetch:        opts.Fetch,
		submit:       opts.Submit,
		loadTimeout:  loadTimeout,
		tickInterval: tickInterval,
		clock:        clock,
		now:          clock(),
		keys:         defaultKeys(),
		help:         help.New(),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		noColor:      opts.NoColor,
	}
}

// Session exposes the underlying state machine.
func (m Model) Session() *runner.Session {
	return m.session
}

// Score is the submitted score once the attempt is over.
func (m Model) Score() (int, bool) {
	if m.score == nil {
		return 0, false
	}
	return *m.score, true
}

// Err reports why the attempt could not complete.
func (m Model) Err() error {
	return m.err
}

type feedLoadedMsg struct{ err error }

type tickMsg time.Time

type submittedMsg struct {
	score int
	err   error
}

// Init loads the feed and starts the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadFeed(), tick(m.tickInterval))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = typed.Width
		return m, nil
	case spinner.TickMsg:
		if m.session.State() != runner.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case feedLoadedMsg:
		if typed.err != nil {
			m.err = typed.err
			return m, tea.Quit
		}
		if m.session.State() == runner.Finished {
			return m.startSubmit()
		}
		return m, nil
	case tickMsg:
		m.now = time.Time(typed)
		if m.session.Tick(m.now) {
			return m.startSubmit()
		}
		if m.session.State() == runner.Finished {
			return m, nil
		}
		return m, tick(m.tickInterval)
	case submittedMsg:
		m.submitting = false
		if typed.err != nil {
			m.err = typed.err
		} else {
			score := typed.score
			m.score = &score
		}
		return m, tea.Quit
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Select):
		if idx, ok := optionIndex(msg.String()); ok {
			_ = m.session.Select(idx)
		}
	case key.Matches(msg, m.keys.Next):
		m.session.Next()
	case key.Matches(msg, m.keys.Prev):
		m.session.Prev()
	case key.Matches(msg, m.keys.Finish):
		if m.session.Finish() {
			return m.startSubmit()
		}
	}
	return m, nil
}

func (m Model) startSubmit() (tea.Model, tea.Cmd) {
	score, err := m.session.Submission()
	if errors.Is(err, runner.ErrAlreadySubmitted) {
		return m, nil
	}
	if err != nil {
		m.err = err
		return m, tea.Quit
	}
	m.submitting = true
	submit := m.submit
	return m, func() tea.Msg {
		if submit == nil {
			return submittedMsg{score: score}
		}
		return submittedMsg{score: score, err: submit(context.Background(), score)}
	}
}

func (m Model) loadFeed() tea.Cmd {
	session, fetch, timeout, clock := m.session, m.fetch, m.loadTimeout, m.clock
	return func() tea.Msg {
		return feedLoadedMsg{err: session.Start(context.Background(), timeout, fetch, clock)}
	}
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// View renders the current screen.
func (m Model) View() string {
	header := stylize(m.attempt.QuizName+" | "+m.attempt.Course.Name, m.noColor, lipgloss.Color("33"))
	var body string
	switch m.session.State() {
	case runner.Loading:
		body = m.spinner.View() + " Loading questions..."
	case runner.Failed:
		body = renderError(m.session.Err(), m.noColor)
	case runner.Active:
		body = renderQuestion(m.session, m.now, m.noColor)
	case runner.Finished:
		body = renderResult(m, m.noColor)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", m.help.View(m.keys))
}
