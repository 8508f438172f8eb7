package domain

import (
	"fmt"
	"strings"
	"time"
)

// GoalCompletionBehavior controls what happens to a chat's automation
// once the agent's goal has been detected as achieved.
type GoalCompletionBehavior string

const (
	// GoalBehaviorAutoDisable turns the automation off entirely.
	GoalBehaviorAutoDisable GoalCompletionBehavior = "auto-disable"
	// GoalBehaviorMaintenance keeps the automation running; the goal flag
	// is cleared on the next handled message.
	GoalBehaviorMaintenance GoalCompletionBehavior = "maintenance"
	// GoalBehaviorHandoff holds the chat in goal-completed until a human
	// takes over and clears it.
	GoalBehaviorHandoff GoalCompletionBehavior = "handoff"
)

// BehaviorSettings is an agent's human-pacing bundle
type BehaviorSettings struct {
	ReplyDelayMinSec int    `json:"replyDelayMinSec"`
	ReplyDelayMaxSec int    `json:"replyDelayMaxSec"`
	ActiveHours      string `json:"activeHours"` // "HH:MM-HH:MM", empty means always
	Timezone         string `json:"timezone"`

	SimulateTyping    bool    `json:"simulateTyping"`
	TypingCharsPerSec float64 `json:"typingCharsPerSec"`
	SendReadReceipts  bool    `json:"sendReadReceipts"`

	// Multi-message pacing: gap between consecutive automated sends and
	// how many sends before the agent backs off for a rest.
	MultiMessageGapSec   int `json:"multiMessageGapSec"`
	FatigueAfterMessages int `json:"fatigueAfterMessages"`
	FatigueCooldownMin   int `json:"fatigueCooldownMin"`
}

// DefaultBehaviorSettings returns the pacing used when an agent does not
// override it.
func DefaultBehaviorSettings() BehaviorSettings {
	return BehaviorSettings{
		ReplyDelayMinSec:     45,
		ReplyDelayMaxSec:     300,
		ActiveHours:          "08:00-23:00",
		Timezone:             "UTC",
		SimulateTyping:       true,
		TypingCharsPerSec:    6,
		SendReadReceipts:     true,
		MultiMessageGapSec:   20,
		FatigueAfterMessages: 8,
		FatigueCooldownMin:   30,
	}
}

// WithinActiveHours reports whether t falls inside the agent's activity
// window. An empty or malformed window means always active.
func (b *BehaviorSettings) WithinActiveHours(t time.Time) bool {
	if b.ActiveHours == "" {
		return true
	}
	parts := strings.SplitN(b.ActiveHours, "-", 2)
	if len(parts) != 2 {
		return true
	}
	loc := time.UTC
	if b.Timezone != "" {
		if l, err := time.LoadLocation(b.Timezone); err == nil {
			loc = l
		}
	}
	local := t.In(loc)
	start, err1 := parseClock(parts[0])
	end, err2 := parseClock(parts[1])
	if err1 != nil || err2 != nil {
		return true
	}
	minutes := local.Hour()*60 + local.Minute()
	if start <= end {
		return minutes >= start && minutes < end
	}
	// Window crosses midnight, e.g. 22:00-06:00
	return minutes >= start || minutes < end
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return h*60 + m, nil
}

// Agent represents a reusable automation persona
type Agent struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Goal         string                 `json:"goal"`
	SystemPrompt string                 `json:"systemPrompt"`
	Behavior     BehaviorSettings       `json:"behavior"`
	OnGoal       GoalCompletionBehavior `json:"goalCompletionBehavior"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// AgentTemplate is a catalog entry users can instantiate agents from
type AgentTemplate struct {
	Name         string
	Description  string
	Goal         string
	SystemPrompt string
	OnGoal       GoalCompletionBehavior
}

// AgentTemplates is the fixed template catalog.
var AgentTemplates = []AgentTemplate{
	{
		Name:         "Scheduler",
		Description:  "Pins down a time and place to meet, then hands the chat back.",
		Goal:         "Agree on a concrete date, time and place for the meeting.",
		SystemPrompt: "You are coordinating scheduling on behalf of the user. Be brief, friendly and decisive. Propose concrete options rather than open questions.",
		OnGoal:       GoalBehaviorHandoff,
	},
	{
		Name:         "Follow-upper",
		Description:  "Keeps a conversation warm with occasional check-ins.",
		Goal:         "Keep the relationship active with light, periodic follow-ups.",
		SystemPrompt: "You send short, warm follow-up messages in the user's voice. Never pressure, never send more than one message per check-in.",
		OnGoal:       GoalBehaviorMaintenance,
	},
	{
		Name:         "Closer",
		Description:  "Drives an open deal or request to a yes/no, then stops.",
		Goal:         "Get a clear commitment or a clear refusal on the open request.",
		SystemPrompt: "You are negotiating on behalf of the user. Stay polite and concrete, surface the open request early, and push gently toward a decision.",
		OnGoal:       GoalBehaviorAutoDisable,
	},
}

// NewAgentFromTemplate instantiates an agent from a catalog template.
func NewAgentFromTemplate(id string, tpl AgentTemplate, now time.Time) *Agent {
	return &Agent{
		ID:           id,
		Name:         tpl.Name,
		Description:  tpl.Description,
		Goal:         tpl.Goal,
		SystemPrompt: tpl.SystemPrompt,
		Behavior:     DefaultBehaviorSettings(),
		OnGoal:       tpl.OnGoal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
