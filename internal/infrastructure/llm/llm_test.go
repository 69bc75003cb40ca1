package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/circuitbreaker"
	"github.com/feynlearn/feynlearn-hub/pkg/retry"
)

// scripted replays canned responses and records the requests.
type scripted struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []Request
}

func (s *scripted) Generate(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantScore    int
		wantFeedback string
	}{
		{"plain", `{"score": 15, "feedback": "Clear and concise"}`, 15, "Clear and concise"},
		{"fenced", "```json\n{\"score\": 18, \"feedback\": \"Great\"}\n```", 18, "Great"},
		{"bare fence", "```\n{\"score\": 3, \"feedback\": \"Vague\"}\n```", 3, "Vague"},
		{"clamped high", `{"score": 35, "feedback": "Wow"}`, 20, "Wow"},
		{"clamped low", `{"score": -4, "feedback": "Hmm"}`, 1, "Hmm"},
		{"fractional", `{"score": 14.6, "feedback": "ok"}`, 15, "ok"},
		{"missing feedback", `{"score": 9}`, 9, DefaultFeedback},
		{"garbage", "I'd give it a 15!", DefaultScore, DefaultFeedback},
		{"empty", "", DefaultScore, DefaultFeedback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, feedback := ParseScore(tt.raw)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantFeedback, feedback)
		})
	}
}

func TestParsePersona(t *testing.T) {
	assert.Equal(t, PersonaSkeptical, ParsePersona("Skeptical"))
	assert.Equal(t, PersonaDevil, ParsePersona("devil"))
	assert.Equal(t, PersonaCurious, ParsePersona(""))
	assert.Equal(t, PersonaCurious, ParsePersona("supportive"))
}

func TestTutor_Chat(t *testing.T) {
	gen := &scripted{responses: []string{
		" Wait, why does the stack grow? 🤔 ",
		`{"score": 16, "feedback": "Solid base case explanation"}`,
	}}
	tutor := NewTutor(gen)

	reply, err := tutor.Chat(context.Background(), ChatInput{
		Topic:   "Recursion",
		Persona: "skeptical",
		Messages: []Turn{
			{Role: RoleModel, Text: "Hi! What are we learning today?"},
			{Role: RoleUser, Text: "Recursion."},
			{Role: RoleModel, Text: "What is it?"},
			{Role: RoleUser, Text: "A function that calls itself until a base case."},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Wait, why does the stack grow? 🤔", reply.Message)
	assert.Equal(t, 16, reply.Score)
	assert.Equal(t, "Solid base case explanation", reply.Feedback)

	require.Len(t, gen.requests, 2)
	chat := gen.requests[0]
	assert.Contains(t, chat.System, "skeptical senior student")
	assert.Contains(t, chat.System, `"Recursion"`)
	assert.Equal(t, "A function that calls itself until a base case.", chat.Prompt)
	require.Len(t, chat.History, 2, "leading model turn dropped")
	assert.Equal(t, RoleUser, chat.History[0].Role)
	assert.Equal(t, RoleModel, chat.History[1].Role)

	assert.Contains(t, gen.requests[1].Prompt, "scale of 1-20")
	assert.Empty(t, gen.requests[1].System)
}

func TestTutor_ChatValidation(t *testing.T) {
	tutor := NewTutor(&scripted{})
	ctx := context.Background()

	_, err := tutor.Chat(ctx, ChatInput{Messages: []Turn{{Role: RoleUser, Text: "x"}}})
	assert.True(t, shared.IsValidation(err))

	_, err = tutor.Chat(ctx, ChatInput{Topic: "Sets"})
	assert.True(t, shared.IsValidation(err))

	_, err = tutor.Chat(ctx, ChatInput{Topic: "Sets", Messages: []Turn{{Role: RoleModel, Text: "hello"}}})
	assert.True(t, shared.IsValidation(err))
}

func TestTutor_ChatUnparseableScoreFallsBack(t *testing.T) {
	gen := &scripted{responses: []string{"Cool!", "fifteen out of twenty"}}
	reply, err := NewTutor(gen).Chat(context.Background(), ChatInput{
		Topic:    "Sets",
		Messages: []Turn{{Role: RoleUser, Text: "A set has no duplicates."}},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultScore, reply.Score)
	assert.Equal(t, DefaultFeedback, reply.Feedback)
	assert.Empty(t, gen.requests[0].History)
	assert.Contains(t, gen.requests[0].System, "curious freshman")
}

func TestParseTopics(t *testing.T) {
	raw := "```json\n" + `[
		{"name": "Photosynthesis", "difficulty": "easy"},
		{"name": "Calvin Cycle", "difficulty": "HARD"},
		{"name": "Light Reactions", "difficulty": "tricky"},
		{"name": "  ", "difficulty": "easy"},
		{"name": "Chlorophyll", "difficulty": "medium"},
		{"name": "ATP", "difficulty": "medium"}
	]` + "\n```"

	topics, err := ParseTopics(raw)
	require.NoError(t, err)
	require.Len(t, topics, 5)
	assert.Equal(t, Topic{ID: "1", Name: "Photosynthesis", Difficulty: DifficultyEasy, Selected: true}, topics[0])
	assert.Equal(t, DifficultyHard, topics[1].Difficulty)
	assert.Equal(t, DifficultyMedium, topics[2].Difficulty)
	assert.Equal(t, "4", topics[3].ID)
	assert.True(t, topics[3].Selected)
	assert.False(t, topics[4].Selected)

	_, err = ParseTopics("not json")
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)

	_, err = ParseTopics("[]")
	assert.ErrorIs(t, err, shared.ErrLLMInvalidResponse)
}

func TestParseTopics_Capped(t *testing.T) {
	raw := `[`
	for i := 0; i < 12; i++ {
		if i > 0 {
			raw += ","
		}
		raw += `{"name":"T","difficulty":"easy"}`
	}
	raw += `]`

	topics, err := ParseTopics(raw)
	require.NoError(t, err)
	assert.Len(t, topics, MaxTopics)
}

func TestTutor_GenerateNotes(t *testing.T) {
	gen := &scripted{responses: []string{`{
		"title": "",
		"summary": "Cells make energy.",
		"flashcards": [{"question": "What is ATP?", "answer": "Energy currency"}]
	}`}}
	tutor := NewTutor(gen)
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	tutor.now = func() time.Time { return fixed }

	notes, err := tutor.GenerateNotes(context.Background(), "content", "biology-101")
	require.NoError(t, err)
	assert.Equal(t, "biology-101", notes.Title)
	assert.Equal(t, "biology-101", notes.OriginalTitle)
	assert.Equal(t, fixed, notes.GeneratedAt)
	require.Len(t, notes.Flashcards, 1)
	assert.True(t, gen.requests[0].JSON)

	_, err = NewTutor(&scripted{responses: []string{"{oops"}}).GenerateNotes(context.Background(), "c", "t")
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func fastRetry() *retry.Policy {
	p := RetryPolicy()
	p.Base = time.Millisecond
	p.Max = time.Millisecond
	return &p
}

func TestResilient_RetriesTransient(t *testing.T) {
	gen := &scripted{
		errs:      []error{transient(errors.New("503")), nil},
		responses: []string{"", "ok"},
	}
	r := NewResilient(gen, ResilientOptions{Retry: fastRetry()})

	out, err := r.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Len(t, gen.requests, 2)
}

func TestResilient_PermanentErrorNotRetried(t *testing.T) {
	gen := &scripted{errs: []error{errors.New("400 bad request")}}
	r := NewResilient(gen, ResilientOptions{Retry: fastRetry()})

	_, err := r.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrExternalService)
	assert.Len(t, gen.requests, 1)
}

func TestResilient_BreakerOpens(t *testing.T) {
	failing := GeneratorFunc(func(context.Context, Request) (string, error) {
		return "", errors.New("upstream down")
	})
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "llm-test", Threshold: 2, CoolDown: time.Hour})
	r := NewResilient(failing, ResilientOptions{Retry: fastRetry(), Breaker: breaker})

	for i := 0; i < 2; i++ {
		_, err := r.Generate(context.Background(), Request{Prompt: "p"})
		assert.ErrorIs(t, err, shared.ErrExternalService)
	}
	_, err := r.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, shared.ErrLLMUnavailable)
}

func TestClassify_MarksTransientFailures(t *testing.T) {
	assert.True(t, IsTransient(classify(&googleapi.Error{Code: 503})))
	assert.True(t, IsTransient(classify(&googleapi.Error{Code: 429})))
	assert.True(t, IsTransient(classify(context.DeadlineExceeded)))

	bad := classify(&googleapi.Error{Code: 400})
	assert.False(t, IsTransient(bad))
	assert.Contains(t, bad.Error(), "gemini generate")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1]`, StripFences("  [1]  "))
	assert.Equal(t, `x`, StripFences("```x```"))
}
