package ui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

type stepMsg struct {
	number  int
	status  StepStatus
	message string
}

type transferMsg struct {
	number      int
	done, total uint32
}

type finishMsg struct{}

// transferModel is a Bubble Tea model that redraws the step list and the
// running step's transfer bar until it receives finishMsg.
type transferModel struct {
	progress *Progress
	finished bool
}

// Init implements tea.Model
func (m transferModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m transferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepMsg:
		m.progress.UpdateStep(msg.number, msg.status, msg.message)
	case transferMsg:
		m.progress.UpdateTransfer(msg.number, msg.done, msg.total)
	case tea.WindowSizeMsg:
		m.progress.SetWidth(clampWidth(msg.Width))
	case finishMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model
func (m transferModel) View() string {
	return m.progress.Render() + "\n"
}

// Transfer renders live progress on a terminal. Updates may come from any
// goroutine; Stop leaves the final state on screen.
type Transfer struct {
	program *tea.Program
	done    chan error
}

// StartTransfer starts rendering p to out. Stdin is not read and SIGINT
// is left to the caller.
func StartTransfer(out io.Writer, p *Progress) *Transfer {
	program := tea.NewProgram(
		transferModel{progress: p},
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	t := &Transfer{program: program, done: make(chan error, 1)}
	go func() {
		_, err := program.Run()
		t.done <- err
	}()
	return t
}

// Step updates a step's status.
func (t *Transfer) Step(number int, status StepStatus, message string) {
	t.program.Send(stepMsg{number: number, status: status, message: message})
}

// Bytes updates the transfer counts of a step.
func (t *Transfer) Bytes(number int, done, total uint32) {
	t.program.Send(transferMsg{number: number, done: done, total: total})
}

// Stop renders the final frame and waits for the program to exit.
func (t *Transfer) Stop() error {
	t.program.Send(finishMsg{})
	return <-t.done
}
