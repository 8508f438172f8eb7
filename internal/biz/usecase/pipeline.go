package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

// PipelineRequest is the single entry shape for every AI interaction
type PipelineRequest struct {
	Intent  repo.Intent
	ChatID  string
	AgentID string

	// TranscriptOverride bypasses the persisted, size-capped transcript
	// with raw text. The history loader uses it to feed whole batches.
	TranscriptOverride string

	// UserMessage is the user's turn for the interactive-chat intent.
	UserMessage string
}

// GoalAnalysis is opaque model output about goal completion, passed
// through rather than computed locally.
type GoalAnalysis struct {
	IsGoalAchieved bool   `json:"isGoalAchieved"`
	Confidence     int    `json:"confidence"`
	Reasoning      string `json:"reasoning"`
}

// PipelineResponse is the one normalized shape every intent resolves to
type PipelineResponse struct {
	Text              string
	SuggestedMessages []string
	GoalAnalysis      *GoalAnalysis

	ExtractedFacts []domain.Fact
	Metadata       *domain.KnowledgeMetadata

	Summary    string
	KeyPoints  []string
	NextSteps  []string
	GoalStatus domain.GoalStatus
}

// PipelineUsecase is the single chokepoint between every feature and
// the AI provider: it assembles shared, per-chat and per-agent context,
// builds an intent-specific request, and normalizes the response.
// Callers never talk to the provider directly.
type PipelineUsecase struct {
	settings  repo.SettingsRepo
	ai        repo.AIProviderRepo
	thread    repo.ThreadRepo
	knowledge repo.KnowledgeRepo
	agents    repo.AgentRepo
}

// NewPipelineUsecase creates the context pipeline.
func NewPipelineUsecase(settings repo.SettingsRepo, ai repo.AIProviderRepo, thread repo.ThreadRepo, knowledge repo.KnowledgeRepo, agents repo.AgentRepo) *PipelineUsecase {
	return &PipelineUsecase{
		settings:  settings,
		ai:        ai,
		thread:    thread,
		knowledge: knowledge,
		agents:    agents,
	}
}

// Execute runs one intent through the pipeline.
func (uc *PipelineUsecase) Execute(ctx context.Context, req *PipelineRequest) (*PipelineResponse, error) {
	// 1. Shared context: provider settings and writing style.
	settings, err := uc.settings.Settings(ctx)
	if err != nil {
		return nil, pipelineErr(ErrKindConfig, "load settings", err)
	}

	// 2. Per-chat context.
	transcript := req.TranscriptOverride
	if transcript == "" && req.ChatID != "" {
		lines, err := uc.thread.Transcript(ctx, req.ChatID)
		if err != nil {
			return nil, pipelineErr(ErrKindTransport, "load transcript", err)
		}
		transcript = strings.Join(lines, "\n")
	}

	var knowledgeBlock string
	if req.ChatID != "" {
		k, err := uc.knowledge.Get(ctx, req.ChatID)
		if err != nil {
			return nil, pipelineErr(ErrKindTransport, "load knowledge", err)
		}
		knowledgeBlock = k.FormatForPrompt()
	}

	var exchanges []repo.Exchange
	if req.Intent == repo.IntentInteractiveChat && req.ChatID != "" {
		exchanges, err = uc.thread.Exchanges(ctx, req.ChatID)
		if err != nil {
			return nil, pipelineErr(ErrKindTransport, "load exchanges", err)
		}
	}

	// 3. Agent context.
	var agent *domain.Agent
	if req.AgentID != "" {
		agent, err = uc.agents.Get(ctx, req.AgentID)
		if err != nil {
			return nil, pipelineErr(ErrKindTransport, "load agent", err)
		}
		if agent == nil {
			return nil, pipelineErr(ErrKindConfig, "load agent", fmt.Errorf("agent %s not found", req.AgentID))
		}
	}

	// 4. Intent-specific request body.
	creq, err := uc.buildRequest(req, settings, agent, transcript, knowledgeBlock, exchanges)
	if err != nil {
		return nil, err
	}

	// 5. Provider call.
	raw, err := uc.ai.Complete(ctx, creq)
	if err != nil {
		// 6. Non-success classified for the caller's retry policy.
		return nil, pipelineErr(ErrKindTransport, "completion", err)
	}

	// 7. Normalize the per-intent payload.
	resp, err := parseResponse(req.Intent, raw)
	if err != nil {
		return nil, err
	}

	if req.Intent == repo.IntentInteractiveChat && req.ChatID != "" {
		now := time.Now()
		_ = uc.thread.AppendExchange(ctx, req.ChatID, repo.Exchange{Role: "user", Content: req.UserMessage, At: now})
		_ = uc.thread.AppendExchange(ctx, req.ChatID, repo.Exchange{Role: "assistant", Content: resp.Text, At: now})
	}

	return resp, nil
}

func (uc *PipelineUsecase) buildRequest(req *PipelineRequest, settings *repo.ProviderSettings, agent *domain.Agent, transcript, knowledgeBlock string, exchanges []repo.Exchange) (*repo.CompletionRequest, error) {
	var system, user strings.Builder

	system.WriteString("You are drafting messages inside a personal messaging inbox, writing as the inbox owner.\n")
	if settings.Tone != "" {
		system.WriteString(fmt.Sprintf("Tone: %s\n", settings.Tone))
	}
	if settings.WritingStyle != "" {
		system.WriteString(fmt.Sprintf("Writing style: %s\n", settings.WritingStyle))
	}
	if agent != nil {
		system.WriteString(fmt.Sprintf("\n## Persona\n%s\n\n## Goal\n%s\n", agent.SystemPrompt, agent.Goal))
	}
	if knowledgeBlock != "" {
		system.WriteString("\n" + knowledgeBlock)
	}

	if transcript != "" {
		user.WriteString("## Conversation\n")
		user.WriteString(transcript)
		user.WriteString("\n\n")
	}

	creq := &repo.CompletionRequest{Model: settings.Model, Temperature: 0.7}

	switch req.Intent {
	case repo.IntentDraftReply:
		user.WriteString(draftReplyInstructions)
		creq.WantJSON = true
		creq.MaxTokens = 800
	case repo.IntentDraftProactive:
		user.WriteString(draftProactiveInstructions)
		creq.WantJSON = true
		creq.MaxTokens = 800
	case repo.IntentInteractiveChat:
		if len(exchanges) > 0 {
			user.WriteString("## Earlier assistant exchanges\n")
			for _, ex := range exchanges {
				user.WriteString(fmt.Sprintf("[%s]: %s\n", ex.Role, ex.Content))
			}
			user.WriteString("\n")
		}
		user.WriteString("## Question\n")
		user.WriteString(req.UserMessage)
		creq.Temperature = 0.5
		creq.MaxTokens = 1000
	case repo.IntentConversationSummary:
		user.WriteString(summaryInstructions)
		creq.WantJSON = true
		creq.Temperature = 0.3
		creq.MaxTokens = 600
	case repo.IntentKnowledgeExtract:
		user.WriteString(knowledgeExtractInstructions)
		creq.WantJSON = true
		creq.Temperature = 0.1
		creq.MaxTokens = 1200
	default:
		return nil, pipelineErr(ErrKindConfig, "build request", fmt.Errorf("unknown intent %q", req.Intent))
	}

	creq.SystemPrompt = system.String()
	creq.UserPrompt = user.String()
	return creq, nil
}

const draftReplyInstructions = `Draft a reply to the most recent incoming message.
Respond with a JSON object:
{"text": "the reply", "suggestedMessages": ["alt 1", "alt 2"], "goalAnalysis": {"isGoalAchieved": false, "confidence": 0, "reasoning": ""}}
goalAnalysis judges whether the stated goal has been achieved in this conversation.`

const draftProactiveInstructions = `Draft a proactive opening message that moves the stated goal forward without replying to anything specific.
Respond with a JSON object:
{"text": "the message", "suggestedMessages": [], "goalAnalysis": {"isGoalAchieved": false, "confidence": 0, "reasoning": ""}}`

const summaryInstructions = `Summarize this conversation for a human taking it over.
Respond with a JSON object:
{"summary": "...", "keyPoints": ["..."], "nextSteps": ["..."], "goalStatus": "achieved|in-progress|unclear"}`

const knowledgeExtractInstructions = `Extract durable facts about the other participants from this conversation.
Respond with a JSON object:
{"facts": [{"category": "preference|personal|work|plan|other", "content": "...", "confidence": 0-100, "about": "who"}],
 "conversationTone": "...", "primaryLanguage": "...", "relationshipType": "...", "topics": ["..."]}
Only include facts stated or strongly implied. Skip pleasantries.`

// draftPayload is the JSON body for the draft intents
type draftPayload struct {
	Text              string        `json:"text"`
	SuggestedMessages []string      `json:"suggestedMessages"`
	GoalAnalysis      *GoalAnalysis `json:"goalAnalysis"`
}

// summaryPayload is the JSON body for conversation-summary
type summaryPayload struct {
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"keyPoints"`
	NextSteps  []string `json:"nextSteps"`
	GoalStatus string   `json:"goalStatus"`
}

// extractPayload is the JSON body for knowledge-extract
type extractPayload struct {
	Facts []struct {
		Category   string `json:"category"`
		Content    string `json:"content"`
		Confidence int    `json:"confidence"`
		About      string `json:"about"`
	} `json:"facts"`
	ConversationTone string   `json:"conversationTone"`
	PrimaryLanguage  string   `json:"primaryLanguage"`
	RelationshipType string   `json:"relationshipType"`
	Topics           []string `json:"topics"`
}

// parseResponse normalizes the provider's per-intent payload. Draft and
// summary intents tolerate a plain-text response by using it verbatim;
// knowledge extraction has no workable plain-text fallback and fails as
// an extraction error instead.
func parseResponse(intent repo.Intent, raw string) (*PipelineResponse, error) {
	raw = strings.TrimSpace(stripCodeFence(raw))

	switch intent {
	case repo.IntentDraftReply, repo.IntentDraftProactive:
		var payload draftPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload.Text == "" {
			return &PipelineResponse{Text: raw}, nil
		}
		return &PipelineResponse{
			Text:              payload.Text,
			SuggestedMessages: payload.SuggestedMessages,
			GoalAnalysis:      payload.GoalAnalysis,
		}, nil

	case repo.IntentInteractiveChat:
		return &PipelineResponse{Text: raw}, nil

	case repo.IntentConversationSummary:
		var payload summaryPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload.Summary == "" {
			return &PipelineResponse{Text: raw, Summary: raw, GoalStatus: domain.GoalUnclear}, nil
		}
		return &PipelineResponse{
			Text:       payload.Summary,
			Summary:    payload.Summary,
			KeyPoints:  payload.KeyPoints,
			NextSteps:  payload.NextSteps,
			GoalStatus: parseGoalStatus(payload.GoalStatus),
		}, nil

	case repo.IntentKnowledgeExtract:
		var payload extractPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, pipelineErr(ErrKindExtraction, "parse extraction", err)
		}
		resp := &PipelineResponse{
			Metadata: &domain.KnowledgeMetadata{
				ConversationTone: payload.ConversationTone,
				PrimaryLanguage:  payload.PrimaryLanguage,
				RelationshipType: payload.RelationshipType,
				Topics:           payload.Topics,
			},
		}
		for _, f := range payload.Facts {
			resp.ExtractedFacts = append(resp.ExtractedFacts, domain.Fact{
				Category:   f.Category,
				Content:    f.Content,
				Confidence: f.Confidence,
				About:      f.About,
				Source:     "history-extraction",
			})
		}
		return resp, nil

	default:
		return nil, pipelineErr(ErrKindConfig, "parse response", fmt.Errorf("unknown intent %q", intent))
	}
}

func parseGoalStatus(s string) domain.GoalStatus {
	switch domain.GoalStatus(strings.ToLower(strings.TrimSpace(s))) {
	case domain.GoalAchieved:
		return domain.GoalAchieved
	case domain.GoalInProgress:
		return domain.GoalInProgress
	default:
		return domain.GoalUnclear
	}
}

// stripCodeFence removes a markdown fence some models wrap JSON in
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return s
}
