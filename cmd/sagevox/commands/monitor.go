package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sagevox/sagevox-go/pkg/cli"
	"github.com/sagevox/sagevox-go/pkg/voicesession"
)

const (
	monitorWidth  = 80
	monitorHeight = 24
	monitorFPS    = 10
	monitorRows   = 8
)

// monitorState collects the rolling session history shown in the frame.
type monitorState struct {
	mu       sync.Mutex
	states   []string
	commands []string
	amps     []float64
}

func (m *monitorState) push(list *[]string, line string) {
	*list = append(*list, time.Now().Format("15:04:05")+"  "+line)
	if len(*list) > monitorRows {
		*list = (*list)[len(*list)-monitorRows:]
	}
}

func (m *monitorState) snapshotLines(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	if len(out) == 0 {
		out = []string{"(none)"}
	}
	return out
}

// monitorLoop renders a live frame until the session ends or the context is
// cancelled.
func monitorLoop(ctx context.Context, host *sessionHost) error {
	styles := cli.NewStyles(cli.DefaultTheme)
	mon := &monitorState{}

	vis := voicesession.NewVisualizer(host.controller, 24)
	amps := vis.Run(ctx)

	frame := cli.Frame{
		Styles: styles,
		Title:  "sagevox session",
		Status: host.book.Title,
		Sections: []cli.Section{
			{Label: "State", Content: func() []string {
				mon.mu.Lock()
				defer mon.mu.Unlock()
				return mon.snapshotLines(mon.states)
			}},
			{Label: "Commands", Content: func() []string {
				mon.mu.Lock()
				defer mon.mu.Unlock()
				return mon.snapshotLines(mon.commands)
			}},
			{Label: "Audio", Content: func() []string {
				mon.mu.Lock()
				defer mon.mu.Unlock()
				return []string{
					cli.Bars(mon.amps),
					fmt.Sprintf("engine: %s", host.engine.IOState()),
				}
			}},
		},
		Help: "ctrl-c: resume playback and quit",
	}

	ticker := time.NewTicker(time.Second / monitorFPS)
	defer ticker.Stop()

	done := false
	for !done {
		select {
		case <-ctx.Done():
			host.controller.ResumePlayback()
			done = true
		case a := <-amps:
			mon.mu.Lock()
			mon.amps = a
			mon.mu.Unlock()
		case ev := <-host.controller.Events():
			switch ev := ev.(type) {
			case *voicesession.StateChanged:
				mon.mu.Lock()
				line := ev.State.Phase.String()
				if ev.State.Message != "" {
					line += " (" + ev.State.Message + ")"
				}
				mon.push(&mon.states, line)
				mon.mu.Unlock()
				if ev.State.Phase == voicesession.PhaseResuming || ev.State.Phase == voicesession.PhaseError {
					done = true
				}
			case *voicesession.PlaybackCommand:
				mon.mu.Lock()
				mon.push(&mon.commands, fmt.Sprintf("%s %+v", ev.Command.CommandType(), ev.Command))
				mon.mu.Unlock()
			}
		case <-ticker.C:
			// Clear and repaint in place.
			fmt.Print("\033[H\033[2J")
			fmt.Println(frame.Render(monitorWidth, monitorHeight))
		}
	}
	fmt.Print("\033[H\033[2J")
	fmt.Println(frame.Render(monitorWidth, monitorHeight))
	return nil
}
