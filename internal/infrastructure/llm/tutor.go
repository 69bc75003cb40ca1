package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TUTOR
// The learner teaches; the model plays the student and grades the
// explanation on a 1..20 scale.
// ══════════════════════════════════════════════════════════════════════════════

// Persona is the character of the AI student during a chat.
type Persona string

const (
	PersonaCurious   Persona = "curious"
	PersonaSkeptical Persona = "skeptical"
	PersonaDevil     Persona = "devil"
)

// ParsePersona maps unknown values to PersonaCurious.
func ParsePersona(s string) Persona {
	switch Persona(strings.ToLower(strings.TrimSpace(s))) {
	case PersonaSkeptical:
		return PersonaSkeptical
	case PersonaDevil:
		return PersonaDevil
	default:
		return PersonaCurious
	}
}

// Score bounds and the fallback used when the grade cannot be parsed.
const (
	MinScore        = 1
	MaxScore        = 20
	DefaultScore    = 12
	DefaultFeedback = "Good explanation!"
)

// Topic extraction limits.
const (
	MaxTopics         = 8
	PreselectedTopics = 4
)

// Tutor builds prompts and parses model output.
type Tutor struct {
	gen Generator
	now func() time.Time
}

// NewTutor creates a Tutor.
func NewTutor(gen Generator) *Tutor {
	return &Tutor{gen: gen, now: func() time.Time { return time.Now().UTC() }}
}

// ─────────────────────────────────────────────────────────────────────────────
// Chat
// ─────────────────────────────────────────────────────────────────────────────

// ChatInput is one turn of a teaching session.
type ChatInput struct {
	Topic    string
	Persona  string
	Messages []Turn
}

// Validate validates the input.
func (in ChatInput) Validate() error {
	if strings.TrimSpace(in.Topic) == "" {
		return shared.Validation("learn", "Chat", "topic is required")
	}
	if len(in.Messages) == 0 {
		return shared.Validation("learn", "Chat", "messages are required")
	}
	last := in.Messages[len(in.Messages)-1]
	if last.Role != RoleUser || strings.TrimSpace(last.Text) == "" {
		return shared.Validation("learn", "Chat", "the last message must be a non-empty user message")
	}
	return nil
}

// ChatReply is the student's answer plus the grade of the explanation.
type ChatReply struct {
	Message  string `json:"message"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Chat answers the learner's last message in character and grades it.
func (t *Tutor) Chat(ctx context.Context, in ChatInput) (*ChatReply, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	last := in.Messages[len(in.Messages)-1]
	reply, err := t.gen.Generate(ctx, Request{
		System:          studentInstruction(in.Topic, ParsePersona(in.Persona)),
		History:         chatHistory(in.Messages[:len(in.Messages)-1]),
		Prompt:          last.Text,
		Temperature:     0.8,
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	grade, err := t.gen.Generate(ctx, Request{Prompt: scorePrompt(in.Topic, last.Text)})
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	score, feedback := ParseScore(grade)

	return &ChatReply{
		Message:  strings.TrimSpace(reply),
		Score:    score,
		Feedback: feedback,
	}, nil
}

// chatHistory drops leading model turns; the model API requires the
// history to open with a user turn.
func chatHistory(turns []Turn) []Turn {
	i := 0
	for i < len(turns) && turns[i].Role != RoleUser {
		i++
	}
	out := make([]Turn, 0, len(turns)-i)
	for _, tr := range turns[i:] {
		role := RoleModel
		if tr.Role == RoleUser {
			role = RoleUser
		}
		out = append(out, Turn{Role: role, Text: tr.Text})
	}
	return out
}

func studentInstruction(topic string, p Persona) string {
	var persona string
	switch p {
	case PersonaSkeptical:
		persona = fmt.Sprintf(`You are a skeptical senior student learning about %q. You:
- Challenge explanations and ask for evidence
- Point out logical inconsistencies
- Ask "why" and "how do you know that"
- Are harder to convince but respectful`, topic)
	case PersonaDevil:
		persona = fmt.Sprintf(`You are playing devil's advocate while learning about %q. You:
- Argue against explanations, even correct ones, to test understanding
- Present counter-arguments and edge cases
- Ask about exceptions to rules
- Push back hard but stay educational`, topic)
	default:
		persona = fmt.Sprintf(`You are a curious freshman student learning about %q. You:
- Ask basic but insightful questions
- Sometimes have misconceptions that need correcting
- Show enthusiasm when you understand something
- Request examples and analogies`, topic)
	}

	return persona + fmt.Sprintf(`

RULES:
1. You are the STUDENT, not the teacher. Ask questions, don't explain.
2. Keep responses short (1-3 sentences), an emoji is fine.
3. If the explanation is good, acknowledge it and ask a follow-up.
4. If it is unclear or wrong, say what confuses you.
5. Stay on the topic of %q.`, topic)
}

func scorePrompt(topic, explanation string) string {
	return fmt.Sprintf(`Rate this explanation about %q on a scale of 1-20 based on clarity, accuracy, and helpfulness.

Explanation: %q

Return ONLY a JSON object like this (no markdown):
{"score": 15, "feedback": "Brief 5-10 word feedback"}`, topic, explanation)
}

// ParseScore reads {"score","feedback"} from model output. Unparseable
// output yields DefaultScore and DefaultFeedback; scores are clamped.
func ParseScore(raw string) (int, string) {
	var out struct {
		Score    json.Number `json:"score"`
		Feedback string      `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &out); err != nil {
		return DefaultScore, DefaultFeedback
	}

	f, err := strconv.ParseFloat(out.Score.String(), 64)
	if err != nil || math.IsNaN(f) {
		return DefaultScore, DefaultFeedback
	}
	score := int(math.Round(f))
	score = max(MinScore, min(MaxScore, score))

	feedback := strings.TrimSpace(out.Feedback)
	if feedback == "" {
		feedback = DefaultFeedback
	}
	return score, feedback
}

// StripFences removes a surrounding markdown code fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ─────────────────────────────────────────────────────────────────────────────
// Topics
// ─────────────────────────────────────────────────────────────────────────────

// Difficulty of an extracted topic.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Topic is a teachable unit found in study material.
type Topic struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Difficulty Difficulty `json:"difficulty"`
	Selected   bool       `json:"selected"`
}

// ExtractTopics asks the model for the topics discussed in content.
func (t *Tutor) ExtractTopics(ctx context.Context, content string) ([]Topic, error) {
	raw, err := t.gen.Generate(ctx, Request{Prompt: topicsPrompt(content), JSON: true})
	if err != nil {
		return nil, fmt.Errorf("extract topics: %w", err)
	}
	return ParseTopics(raw)
}

// ParseTopics normalizes the model's topic list.
func ParseTopics(raw string) ([]Topic, error) {
	var items []struct {
		Name       string `json:"name"`
		Difficulty string `json:"difficulty"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &items); err != nil {
		return nil, shared.WrapError("llm", "ParseTopics", shared.ErrInvalidFormat, "failed to parse AI response", err)
	}

	topics := make([]Topic, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		d := Difficulty(strings.ToLower(strings.TrimSpace(it.Difficulty)))
		switch d {
		case DifficultyEasy, DifficultyMedium, DifficultyHard:
		default:
			d = DifficultyMedium
		}
		i := len(topics)
		topics = append(topics, Topic{
			ID:         strconv.Itoa(i + 1),
			Name:       name,
			Difficulty: d,
			Selected:   i < PreselectedTopics,
		})
		if len(topics) == MaxTopics {
			break
		}
	}
	if len(topics) == 0 {
		return nil, shared.ErrLLMInvalidResponse
	}
	return topics, nil
}

func topicsPrompt(content string) string {
	return `Analyze the following educational content and extract the main topics that a student could learn and teach to others.

For each topic:
1. Give it a clear, concise name (max 5-6 words)
2. Assess the difficulty level: "easy" (basic concepts), "medium" (requires some background), or "hard" (complex/advanced concepts)
3. Only use topics that are actually discussed in the content

Return a JSON array in this exact format:
[
  {"name": "Topic Name Here", "difficulty": "easy"},
  {"name": "Another Topic", "difficulty": "medium"}
]

Extract between 4-8 key topics.

Content to analyze:
---
` + content + `
---`
}

// ─────────────────────────────────────────────────────────────────────────────
// Notes
// ─────────────────────────────────────────────────────────────────────────────

// Notes are structured study notes.
type Notes struct {
	Title             string             `json:"title"`
	Summary           string             `json:"summary"`
	KeyConcepts       []KeyConcept       `json:"keyConcepts"`
	Sections          []NoteSection      `json:"sections"`
	Flashcards        []Flashcard        `json:"flashcards"`
	PracticeQuestions []PracticeQuestion `json:"practiceQuestions"`
	Mnemonics         []string           `json:"mnemonics"`
	RealWorldExamples []string           `json:"realWorldExamples"`
	OriginalTitle     string             `json:"originalTitle"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

type KeyConcept struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type NoteSection struct {
	Heading   string   `json:"heading"`
	Content   string   `json:"content"`
	KeyPoints []string `json:"keyPoints"`
}

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type PracticeQuestion struct {
	Question string `json:"question"`
	Hint     string `json:"hint"`
}

// GenerateNotes turns content into study notes.
func (t *Tutor) GenerateNotes(ctx context.Context, content, title string) (*Notes, error) {
	raw, err := t.gen.Generate(ctx, Request{Prompt: notesPrompt(content), JSON: true})
	if err != nil {
		return nil, fmt.Errorf("generate notes: %w", err)
	}

	var notes Notes
	if err := json.Unmarshal([]byte(StripFences(raw)), &notes); err != nil {
		return nil, shared.WrapError("llm", "ParseNotes", shared.ErrInvalidFormat, "failed to generate notes", err)
	}
	if strings.TrimSpace(notes.Title) == "" {
		notes.Title = title
	}
	notes.OriginalTitle = title
	notes.GeneratedAt = t.now()
	return &notes, nil
}

func notesPrompt(content string) string {
	return `You are an expert educator. Analyze the following content and create comprehensive, well-structured study notes.

Respond with JSON in this exact format:
{
  "title": "A clear, concise title for the topic",
  "summary": "A 2-3 sentence overview of the main topic",
  "keyConcepts": [{"term": "Key Term", "definition": "Clear explanation"}],
  "sections": [{"heading": "Section Title", "content": "Detailed explanation with examples", "keyPoints": ["Important point"]}],
  "flashcards": [{"question": "What is...?", "answer": "The answer is..."}],
  "practiceQuestions": [{"question": "Explain the concept of...", "hint": "Think about..."}],
  "mnemonics": ["Memory aid"],
  "realWorldExamples": ["Practical application"]
}

Guidelines:
- 3-6 sections covering the main topics
- 4-8 key concepts
- 5-10 flashcards
- 3-5 practice questions
- at least 2 mnemonics
- 2-3 real-world examples
- simple, clear language

Content to analyze:
---
` + content + `
---`
}
