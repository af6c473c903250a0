// Package calls runs the live side of a voice call: it starts and ends the
// call's metrics session, mirrors active calls to Redis and executes the
// function calls the conversation driver issues.
package calls

import "google.golang.org/genai"

// Tool names as the conversation driver sees them.
const (
	ToolGetLeadHistory   = "get_lead_history"
	ToolQualifyLead      = "qualify_lead"
	ToolSaveNote         = "save_conversation_note"
	ToolScheduleCallback = "schedule_callback"
	ToolRecommendAccount = "recommend_account"
	ToolEstimateCost     = "estimate_trading_cost"
	ToolSearchKnowledge  = "search_knowledge"
	ToolExplainConcept   = "explain_forex_concept"
	ToolMarketHours      = "market_hours"
)

const (
	phoneDescription       = "Caller phone number, ideally in international format."
	experienceDescription  = "Trading experience: none, beginner, intermediate or experienced."
	accountTypeDescription = "Account product: Standard, Raw Spreads, Premium or Dynamic Leverage."
	priorityDescription    = "What the caller values most: low_spread, low_commission or balanced."
)

func stringParam(description string, enum ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description, Enum: enum}
}

func numberParam(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: description}
}

func integerParam(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: description}
}

func object(required []string, props map[string]*genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

// Declarations returns the function declarations for every call tool.
func Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        ToolGetLeadHistory,
			Description: "Look up what is known about the caller from previous calls: profile, notes and pending callbacks. Call this at the start of every call.",
			Parameters: object([]string{"phone"}, map[string]*genai.Schema{
				"phone": stringParam(phoneDescription),
			}),
		},
		{
			Name:        ToolQualifyLead,
			Description: "Score the caller as HOT, WARM or COLD from capital, experience and urgency, save the result and return the recommended next step.",
			Parameters: object([]string{"phone", "trading_experience", "urgency"}, map[string]*genai.Schema{
				"phone":              stringParam(phoneDescription),
				"name":               stringParam("Caller name, if given."),
				"email":              stringParam("Caller email, if given."),
				"capital_available":  numberParam("Capital the caller can invest, in USD. Omit when unknown."),
				"trading_experience": stringParam(experienceDescription, "none", "beginner", "intermediate", "experienced"),
				"urgency":            stringParam("How soon the caller wants to start: low, medium or high.", "low", "medium", "high"),
				"pain_points": {
					Type:        genai.TypeArray,
					Description: "Problems the caller mentioned with trading or their current broker.",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
				"current_broker": stringParam("Broker the caller uses today, if any."),
			}),
		},
		{
			Name:        ToolSaveNote,
			Description: "Save an observation about the caller: a pain point, objection or preference.",
			Parameters: object([]string{"phone", "note_type", "content"}, map[string]*genai.Schema{
				"phone":     stringParam(phoneDescription),
				"note_type": stringParam("Kind of note.", "pain_point", "objection", "preference", "other"),
				"content":   stringParam("The note, in one or two sentences."),
			}),
		},
		{
			Name:        ToolScheduleCallback,
			Description: "Book a callback with a human advisor at the time the caller prefers.",
			Parameters: object([]string{"phone", "preferred_time"}, map[string]*genai.Schema{
				"phone":          stringParam(phoneDescription),
				"preferred_time": stringParam("When to call back, e.g. 2026-03-02 15:00 or 'tomorrow morning'."),
				"timezone":       stringParam("IANA timezone of the caller, e.g. America/Argentina/Buenos_Aires."),
				"reason":         stringParam("What the callback is about."),
			}),
		},
		{
			Name:        ToolRecommendAccount,
			Description: "Recommend the account product that fits the caller's capital, experience and priorities.",
			Parameters: object([]string{"capital"}, map[string]*genai.Schema{
				"capital":            numberParam("Capital the caller will deposit, in USD."),
				"trading_experience": stringParam(experienceDescription, "none", "beginner", "intermediate", "experienced"),
				"priority":           stringParam(priorityDescription, "low_spread", "low_commission", "balanced"),
			}),
		},
		{
			Name:        ToolEstimateCost,
			Description: "Estimate what trading on an account costs per trade and per month.",
			Parameters: object([]string{"account_type", "trades_per_month"}, map[string]*genai.Schema{
				"account_type":     stringParam(accountTypeDescription),
				"trades_per_month": integerParam("Round-turn trades per month."),
				"lot_size":         numberParam("Lots per trade. Defaults to 1 standard lot."),
				"capital":          numberParam("Caller capital in USD, used to suggest only accounts they can open."),
			}),
		},
		{
			Name:        ToolSearchKnowledge,
			Description: "Search the broker knowledge base for regulation, deposits, withdrawals, platforms and product details.",
			Parameters: object([]string{"query"}, map[string]*genai.Schema{
				"query": stringParam("The caller's question."),
				"k":     integerParam("Number of snippets to return, 1 to 10."),
			}),
		},
		{
			Name:        ToolExplainConcept,
			Description: "Explain a trading concept such as spread, pip, leverage or margin in plain words.",
			Parameters: object([]string{"concept"}, map[string]*genai.Schema{
				"concept": stringParam("The concept or the caller's question about it."),
			}),
		},
		{
			Name:        ToolMarketHours,
			Description: "Tell the caller when a market is open.",
			Parameters: object(nil, map[string]*genai.Schema{
				"market": stringParam("forex, indices, commodities or crypto. Defaults to forex."),
			}),
		},
	}
}
