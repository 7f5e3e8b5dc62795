package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// spinner shows an animated spinner with message and dots until stopped
type spinner struct {
	out  io.Writer
	done chan struct{}
	wg   sync.WaitGroup
}

func startSpinner(out io.Writer, message string) *spinner {
	s := &spinner{out: out, done: make(chan struct{})}
	s.wg.Add(1)
	go s.run(message)
	return s
}

func (s *spinner) run(message string) {
	defer s.wg.Done()

	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	frameIndex := 0
	dotCount := 0

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			fmt.Fprint(s.out, "\r\033[K") // Clear line
			return
		case <-ticker.C:
			fmt.Fprintf(s.out, "\r%s %s%s", frames[frameIndex], message, strings.Repeat(".", dotCount))

			frameIndex = (frameIndex + 1) % len(frames)
			if frameIndex == 0 {
				dotCount = (dotCount + 1) % 4
			}
		}
	}
}

// Stop clears the spinner line and waits for the goroutine to exit
func (s *spinner) Stop() {
	close(s.done)
	s.wg.Wait()
}
