// Command callsim plays the reference sales calls end to end against the
// in-memory lead store and prints each qualification decision together with
// the call cost summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"voice_sales_backend/internal/accounts"
	"voice_sales_backend/internal/callmetrics"
	"voice_sales_backend/internal/calls"
	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/knowledge"
	"voice_sales_backend/internal/leads"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/notification"
	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/config"
	"voice_sales_backend/platform/logger"
	"voice_sales_backend/platform/phone"
	"voice_sales_backend/platform/validator"

	"google.golang.org/genai"
)

type scenario struct {
	name       string
	phone      string
	callerName string
	capital    float64
	experience string
	urgency    string
	followUp   *genai.FunctionCall
}

var scenarios = []scenario{
	{
		name: "A", phone: "+1 650 253 0001", callerName: "Valentina",
		capital: 5000, experience: "experienced", urgency: "high",
		followUp: &genai.FunctionCall{Name: calls.ToolRecommendAccount, Args: map[string]any{
			"capital": 5000, "trading_experience": "experienced", "priority": "low_spreads",
		}},
	},
	{
		name: "B", phone: "+1 650 253 0002", callerName: "Martín",
		capital: 300, experience: "beginner", urgency: "medium",
		followUp: &genai.FunctionCall{Name: calls.ToolScheduleCallback, Args: map[string]any{
			"preferred_time": "tomorrow at 10am", "reason": "wants to review the demo first",
		}},
	},
	{
		name: "C", phone: "+1 650 253 0003", callerName: "Lucas",
		capital: 50, experience: "none", urgency: "low",
		followUp: &genai.FunctionCall{Name: calls.ToolSearchKnowledge, Args: map[string]any{
			"query": "demo practice account",
		}},
	},
}

// simClock advances only when told to, so every call lasts exactly as long as scripted.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// printSender writes desk notifications to stdout instead of delivering them.
type printSender struct{}

func (printSender) Send(_ context.Context, recipient string, payload notification.Payload) (string, error) {
	fmt.Printf("    notify %s: %s\n", recipient, payload.Subject)
	return "sim", nil
}

func main() {
	policyFile := flag.String("policy", "", "policy table override file")
	region := flag.String("region", "US", "default phone region")
	callLength := flag.Duration("call-length", 5*time.Minute, "simulated length of each call")
	env := flag.String("env", "production", "logger environment (development logs at debug level)")
	flag.Parse()

	log := logger.New(*env)

	tables := policy.Default()
	if *policyFile != "" {
		loaded, err := policy.Load(*policyFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load policy:", err)
			os.Exit(1)
		}
		tables = loaded
	}

	cfg := &config.Config{
		DefaultTimezone:      "America/Argentina/Buenos_Aires",
		SalesDeskRecipients:  []string{"desk@example.com"},
		CallbackReminderLead: 15 * time.Minute,
		FollowUpDelay:        10 * time.Minute,
		FollowUpMessage:      "Here is the demo account link we talked about.",
	}

	store := repository.NewMemoryStore()
	bus := events.NewInMemoryBus(log)
	phones := phone.NewNormalizer(*region)

	notification.New(printSender{}, nil, store, cfg, log).RegisterHandlers(bus)

	leadsModule := leads.NewModule(store, phones, tables, bus, validator.New(), cfg, log)
	knowledgeModule, err := knowledge.NewModule(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "knowledge:", err)
		os.Exit(1)
	}

	clock := &simClock{now: time.Now().UTC().Truncate(time.Second)}
	tracker := callmetrics.NewTracker(tables.Pricing, log)
	tracker.SetClock(clock.Now)

	dispatcher := calls.NewDispatcher(calls.Tools{
		History:   leadsModule.ManagementService(),
		Qualifier: leadsModule.QualificationService(),
		Notes:     leadsModule.NotesService(),
		Callbacks: leadsModule.SchedulingService(),
		Accounts:  accounts.NewEngine(tables.Catalog),
		Knowledge: knowledgeModule.Service(),
	}, tracker, log)
	svc := calls.NewService(tracker, dispatcher, nil, phones, bus, log)

	ctx := context.Background()
	failed := false
	for _, sc := range scenarios {
		if err := run(ctx, svc, clock, *callLength, sc); err != nil {
			fmt.Fprintf(os.Stderr, "scenario %s: %v\n", sc.name, err)
			failed = true
		}
		bus.Wait()
	}

	stats := svc.Stats()
	fmt.Printf("\ncalls=%d total_cost=$%s avg_cost_per_call=$%s avg_cost_per_minute=$%s\n",
		stats.TotalCalls, stats.TotalCost, stats.AvgCostPerCall, stats.AvgCostPerMinute)
	if failed {
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *calls.Service, clock *simClock, length time.Duration, sc scenario) error {
	started, err := svc.Start(ctx, calls.StartRequest{CallID: "sim-" + sc.name, Phone: sc.phone})
	if err != nil {
		return err
	}
	fmt.Printf("scenario %s  %s  %s\n", sc.name, sc.callerName, started.Phone)

	steps := []*genai.FunctionCall{
		{Name: calls.ToolGetLeadHistory, Args: map[string]any{"phone": started.Phone}},
		{Name: calls.ToolQualifyLead, Args: map[string]any{
			"phone":              started.Phone,
			"name":               sc.callerName,
			"capital_available":  sc.capital,
			"trading_experience": sc.experience,
			"urgency":            sc.urgency,
		}},
	}
	if sc.followUp != nil {
		args := map[string]any{"phone": started.Phone}
		for k, v := range sc.followUp.Args {
			args[k] = v
		}
		steps = append(steps, &genai.FunctionCall{Name: sc.followUp.Name, Args: args})
	}

	for i, call := range steps {
		call.ID = fmt.Sprintf("%s-%d", started.CallID, i+1)
		resp, err := svc.Dispatch(ctx, started.CallID, call)
		if err != nil {
			return err
		}
		printResponse(resp)
	}

	if _, err := svc.RecordUsage(ctx, started.CallID, calls.UsageRequest{
		STTSeconds:      60,
		LLMInputTokens:  1000,
		LLMOutputTokens: 500,
		TTSCharacters:   1000,
	}); err != nil {
		return err
	}

	clock.Advance(length)
	summary, err := svc.End(ctx, started.CallID)
	if err != nil {
		return err
	}
	fmt.Printf("    cost: stt=$%s llm=$%s tts=$%s total=$%s per_minute=$%s over %.0fs\n\n",
		summary.Breakdown.STT, summary.Breakdown.LLM, summary.Breakdown.TTS,
		summary.Total, summary.CostPerMinute, summary.DurationSeconds)
	return nil
}

func printResponse(resp *genai.FunctionResponse) {
	r := resp.Response
	if msg, ok := r["error"]; ok {
		fmt.Printf("    %-24s error: %v (%v)\n", resp.Name, msg, r["kind"])
		return
	}
	switch resp.Name {
	case calls.ToolGetLeadHistory:
		fmt.Printf("    %-24s found=%v\n", resp.Name, r["found"])
	case calls.ToolQualifyLead:
		fmt.Printf("    %-24s tier=%v score=%v action=%v\n", resp.Name, r["tier"], r["score"], r["recommendedAction"])
	case calls.ToolRecommendAccount:
		fmt.Printf("    %-24s account=%v\n", resp.Name, r["accountType"])
	case calls.ToolScheduleCallback:
		fmt.Printf("    %-24s preferred=%q scheduled=%v\n", resp.Name, r["preferredTime"], r["scheduledAt"])
	case calls.ToolSearchKnowledge:
		fmt.Printf("    %-24s found=%v\n", resp.Name, r["found"])
	default:
		fmt.Printf("    %-24s ok\n", resp.Name)
	}
}
