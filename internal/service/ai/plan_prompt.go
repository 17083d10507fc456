package ai

import (
	"encoding/json"
	"fmt"

	"github.com/zhouzirui/date-night/backend/internal/model/preference"
)

// IntimacyExclusionInstruction is added to the system instruction whenever
// either partner declined physical intimacy.
const IntimacyExclusionInstruction = "At least one partner declined physical intimacy. Do not recommend any physical intimacy at all, regardless of the other partner's preferences."

const plannerSystemPrompt = `You are a date night planner helping two romantic partners based on both of their preferences.
First, give the date night a title based on the plan.
Second, write an itinerary compromising on their preferences.
If one partner says "Pass" or "No Thanks" for physical intimacy, do not recommend any physical intimacy at all regardless of the other partner's submission.
Make sure to consider both partners' preferences and find a balance between them.`

const plannerUserPrompt = `Here are the preferences for two partners:

Partner 1: %s
Partner 2: %s

Draft the date night plan.`

// PlanRequest is the combined request sent to the generation model.
type PlanRequest struct {
	System          string
	User            string
	ExcludeIntimacy bool
}

// BuildPlanRequest normalizes both records and embeds them in the planner prompt.
func BuildPlanRequest(first, second preference.Preferences) (PlanRequest, error) {
	partner1 := preference.Normalize(first)
	partner2 := preference.Normalize(second)

	raw1, err := json.Marshal(partner1)
	if err != nil {
		return PlanRequest{}, fmt.Errorf("encode partner 1 preferences: %w", err)
	}
	raw2, err := json.Marshal(partner2)
	if err != nil {
		return PlanRequest{}, fmt.Errorf("encode partner 2 preferences: %w", err)
	}

	req := PlanRequest{
		System:          plannerSystemPrompt,
		User:            fmt.Sprintf(plannerUserPrompt, raw1, raw2),
		ExcludeIntimacy: partner1.RefusesIntimacy() || partner2.RefusesIntimacy(),
	}
	if req.ExcludeIntimacy {
		req.System += "\n\n" + IntimacyExclusionInstruction
	}
	return req, nil
}
