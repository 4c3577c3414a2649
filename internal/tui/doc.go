// Package tui provides the interactive chat interface for jit.
//
// The App shows a transcript of questions and answers, a spinner with the
// latest progress event while a request runs, and an input line. Besides
// free-form requests the input accepts a few commands:
//   - tools: list the available providers and tools
//   - memory:status: show how much conversation is remembered
//   - memory:clear: forget the conversation
//   - quit: leave (ctrl+c works too)
//
// ctrl+p and ctrl+n recall earlier input; the arrow keys and page keys scroll
// the transcript.
//
// Usage:
//
//	program, _ := tui.NewProgram(tui.Config{Responder: facade, Memory: session})
//	go func() {
//		for e := range emitter.Events() {
//			program.Send(tui.EventMsg{Event: e})
//		}
//	}()
//	_, err := program.Run()
package tui
