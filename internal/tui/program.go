// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"sync"

	"micscope/internal/pipeline"

	tea "github.com/charmbracelet/bubbletea"
)

// Program runs the visualizer and acts as a pipeline sink. Publish keeps
// only the newest pending update so a slow terminal never stalls the
// pipeline.
type Program struct {
	p       *tea.Program
	updates chan pipeline.Update
	status  chan string
	done    chan struct{}
	once    sync.Once

	ctx    context.Context // Cancelled by Close, before or during Run.
	cancel context.CancelFunc
}

// NewProgram prepares a full-screen visualizer.
func NewProgram(title string, buckets int, opts ...tea.ProgramOption) *Program {
	ctx, cancel := context.WithCancel(context.Background())
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	return &Program{
		p:       tea.NewProgram(NewModel(title, buckets), opts...),
		updates: make(chan pipeline.Update, 1),
		status:  make(chan string, 4),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run blocks until the user quits or Close is called. It returns
// immediately when Close came first.
func (pr *Program) Run() error {
	go pr.forward()
	_, err := pr.p.Run()
	pr.stopForward()
	if errors.Is(err, tea.ErrProgramKilled) && pr.ctx.Err() != nil {
		return nil
	}
	return err
}

func (pr *Program) forward() {
	for {
		select {
		case u := <-pr.updates:
			pr.p.Send(UpdateMsg(u))
		case s := <-pr.status:
			pr.p.Send(StatusMsg(s))
		case <-pr.done:
			return
		}
	}
}

func (pr *Program) stopForward() {
	pr.once.Do(func() { close(pr.done) })
}

// Publish replaces any pending update with u.
func (pr *Program) Publish(u pipeline.Update) error {
	for {
		select {
		case pr.updates <- u:
			return nil
		default:
		}
		select {
		case <-pr.updates:
		default:
		}
	}
}

// SetStatus shows msg under the charts. Messages are dropped when
// several are already pending.
func (pr *Program) SetStatus(msg string) {
	select {
	case pr.status <- msg:
	default:
	}
}

// Close stops the program whether or not Run has started yet.
func (pr *Program) Close() error {
	pr.cancel()
	pr.stopForward()
	return nil
}
