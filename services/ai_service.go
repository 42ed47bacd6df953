// services/ai_service.go
package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Canned feedback used whenever the AI gateway is unavailable or rate-limited.
// The quiz flow never blocks or fails on feedback.
const (
	fallbackFeedbackCorrect   = "Great job! Try to reduce your carbon footprint by making small daily changes."
	fallbackFeedbackIncorrect = "Keep learning! Every small action counts towards a sustainable future."
	fallbackFeedbackGeneric   = "Great effort! Keep learning about sustainability and taking action in your daily life."
)

var (
	// ErrAIRateLimited maps the gateway's 429 for question generation.
	ErrAIRateLimited = errors.New("ai gateway rate limit exceeded")
	// ErrAIQuotaExhausted maps the gateway's 402 for question generation.
	ErrAIQuotaExhausted = errors.New("ai credits exhausted")
)

// AIService proxies the chat-completions gateway for answer feedback and quiz
// question generation.
type AIService struct {
	GatewayURL string
	APIKey     string
	Model      string
	Client     *http.Client
}

func NewAIService() *AIService {
	gatewayURL := os.Getenv("AI_GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "https://ai.gateway.lovable.dev/v1/chat/completions"
	}
	model := os.Getenv("AI_MODEL")
	if model == "" {
		model = "google/gemini-2.5-flash"
	}
	return &AIService{
		GatewayURL: gatewayURL,
		APIKey:     os.Getenv("AI_API_KEY"),
		Model:      model,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools,omitempty"`
	ToolChoice interface{}   `json:"tool_choice,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// FeedbackRequest is one graded answer sent for encouragement text.
type FeedbackRequest struct {
	Question   string `json:"question"`
	UserAnswer string `json:"userAnswer"`
	Correct    bool   `json:"correct"`
	Context    string `json:"context"`
}

// GetFeedback returns one short feedback string for a graded answer. Any
// upstream failure degrades to a canned string; the caller always succeeds.
func (s *AIService) GetFeedback(req FeedbackRequest) string {
	status := "Incorrect"
	if req.Correct {
		status = "Correct"
	}

	systemPrompt := fmt.Sprintf(`You are an eco-friendly sustainability educator. Provide concise, actionable feedback for quiz answers.
Your response should:
1. Explain why the answer is %s
2. Provide ONE specific, actionable tip the user can implement immediately
Keep it brief (2-3 sentences max) and encouraging.`, status)

	userPrompt := fmt.Sprintf(`Question: %s
User's answer: %s
Status: %s
Context: %s

Provide brief explanation and one actionable eco-tip.`, req.Question, req.UserAnswer, status, req.Context)

	resp, status429, err := s.chat(chatRequest{
		Model: s.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		if status429 {
			if req.Correct {
				return fallbackFeedbackCorrect
			}
			return fallbackFeedbackIncorrect
		}
		log.Printf("⚠️ Feedback proxy error: %v", err)
		return fallbackFeedbackGeneric
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return fallbackFeedbackGeneric
	}
	return resp.Choices[0].Message.Content
}

// GeneratedQuestion is one AI-authored question in the interchange shape.
type GeneratedQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctAnswer"`
	ContextForAI string   `json:"context_for_ai"`
}

// GenerateRequest drives quiz question generation ("add") or refinement ("edit").
type GenerateRequest struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	NumberOfQuestions int                `json:"numberOfQuestions"`
	PointsPerQuestion int                `json:"pointsPerQuestion"`
	AdditionalContext string             `json:"additionalContext"`
	Theme             string             `json:"theme"`
	Mode              string             `json:"mode"` // "add" | "edit"
	ExistingQuestions []QuestionDocument `json:"existingQuestions"`
}

// GenerateQuestions calls the gateway with a forced tool call and returns the
// structured question list. 429 and 402 surface as distinct errors.
func (s *AIService) GenerateQuestions(req GenerateRequest) ([]GeneratedQuestion, error) {
	if req.NumberOfQuestions <= 0 {
		req.NumberOfQuestions = 3
	}
	if req.Mode == "" {
		req.Mode = "add"
	}

	systemPrompt := "You are an expert quiz creator specializing in educational content. Generate engaging, educational quiz questions based on the provided topic."
	var userPrompt string

	if req.Mode == "edit" {
		existing, _ := json.MarshalIndent(req.ExistingQuestions, "", "  ")
		systemPrompt += "\n\nYour task is to improve and refine existing quiz questions. Make them clearer, more educational, and ensure they have good distractors."
		userPrompt = fmt.Sprintf(`Improve these existing quiz questions for the topic:

Title: %s
Description: %s
%s%s
Existing Questions:
%s

Enhance each question by:
1. Making the question clearer and more precise
2. Improving the quality of answer options
3. Ensuring distractors are plausible but clearly wrong
4. Adding educational context`,
			req.Title, req.Description,
			optionalLine("Theme", req.Theme), optionalLine("Additional Context", req.AdditionalContext),
			existing)
	} else {
		systemPrompt += fmt.Sprintf(`

Rules:
1. Create exactly %d questions
2. Each question should have 4 options
3. Each question should have clear educational value
4. Include diverse question types (factual, conceptual, application-based)
5. Provide helpful context for AI to understand the question's educational purpose
6. Mark the correct answer clearly`, req.NumberOfQuestions)
		userPrompt = fmt.Sprintf(`Create %d quiz questions for the following topic:

Title: %s
Description: %s
%s%s
Return the questions in the specified JSON format.`,
			req.NumberOfQuestions, req.Title, req.Description,
			optionalLine("Theme/Focus", req.Theme), optionalLine("Additional Requirements", req.AdditionalContext))
	}

	toolSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"questions": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"question":       map[string]interface{}{"type": "string", "description": "The question text"},
						"options":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Array of 4 answer options"},
						"correctAnswer":  map[string]interface{}{"type": "number", "description": "Index of the correct answer (0-3)"},
						"context_for_ai": map[string]interface{}{"type": "string", "description": "Additional context to help AI understand this question"},
					},
					"required": []string{"question", "options", "correctAnswer", "context_for_ai"},
				},
			},
		},
		"required": []string{"questions"},
	}

	resp, _, err := s.chat(chatRequest{
		Model: s.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Tools: []chatTool{{
			Type: "function",
			Function: chatFunction{
				Name:        "generate_quiz_questions",
				Description: "Generate educational quiz questions with options and context",
				Parameters:  toolSchema,
			},
		}},
		ToolChoice: map[string]interface{}{
			"type":     "function",
			"function": map[string]string{"name": "generate_quiz_questions"},
		},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, errors.New("unexpected AI response format")
	}
	call := resp.Choices[0].Message.ToolCalls[0]
	if call.Function.Name != "generate_quiz_questions" {
		return nil, errors.New("unexpected AI response format")
	}

	var payload struct {
		Questions []GeneratedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode generated questions: %w", err)
	}

	log.Printf("🤖 Generated %d questions (mode=%s)", len(payload.Questions), req.Mode)
	return payload.Questions, nil
}

// chat posts one completion request. The bool reports whether the failure was
// specifically a 429.
func (s *AIService) chat(body chatRequest) (*chatResponse, bool, error) {
	if s.APIKey == "" {
		return nil, false, errors.New("AI_API_KEY is not configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequest("POST", s.GatewayURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, true, ErrAIRateLimited
	case http.StatusPaymentRequired:
		return nil, false, ErrAIQuotaExhausted
	default:
		return nil, false, fmt.Errorf("ai gateway returned status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, err
	}
	return &out, false, nil
}

func optionalLine(label, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s\n", label, value)
}
