package llm

import "context"

// MockCompleter is a scripted Completer for tests: it returns Response (or
// Err) for every Complete call and records the requests it saw.
type MockCompleter struct {
	Response string
	Err      error
	Requests []Request
}

// Complete replays the scripted response.
func (m *MockCompleter) Complete(ctx context.Context, req Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
