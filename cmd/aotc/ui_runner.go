package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"aotc/internal/buildpipeline"
	"aotc/internal/compile"
	"aotc/internal/ui"
)

type buildOutcome struct {
	result buildpipeline.Result
	err    error
}

// runBuildWithUI runs the build in the background and renders its events
// until the build finishes.
func runBuildWithUI(ctx context.Context, title string, req buildpipeline.Request) (buildpipeline.Result, error) {
	events := make(chan compile.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		req.Progress = compile.ChannelSink{Ch: events}
		res, err := buildpipeline.Build(ctx, &req)
		outcomeCh <- buildOutcome{result: res, err: err}
		close(events)
	}()

	program := tea.NewProgram(ui.NewProgressModel(title, events), tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		// keep draining so the build is not blocked on a full channel
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
