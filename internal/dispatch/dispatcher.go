package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaiwa-bot/kaiwa/internal/line"
	"github.com/kaiwa-bot/kaiwa/internal/memory"
	"github.com/kaiwa-bot/kaiwa/internal/session"
)

// imagePlaceholder stands in for the user text when persisting image turns.
const imagePlaceholder = "[image]"

// Outcome is the terminal state of one dispatched event.
type Outcome string

const (
	OutcomeReplied Outcome = "replied"
	OutcomeIgnored Outcome = "ignored"
	OutcomeSkipped Outcome = "skipped"
)

// SessionResolver resolves the durable session for a conversation identity.
type SessionResolver interface {
	Resolve(ctx context.Context, identity string) session.Resolution
}

// ContextRetriever assembles short-term and long-term context.
type ContextRetriever interface {
	RecentTurns(ctx context.Context, identity, sessionID string) memory.Retrieval
	SearchFacts(ctx context.Context, identity, query string) memory.Retrieval
}

// AgentInvoker invokes the agent runtime; it always returns reply-able text.
type AgentInvoker interface {
	Invoke(ctx context.Context, sessionID, userMessage, shortTerm, longTerm string) string
}

// TurnRecorder appends one exchange to the conversation log.
type TurnRecorder interface {
	Record(ctx context.Context, identity, sessionID, userText, assistantText string) error
}

// Platform is the messaging platform surface the dispatcher needs.
type Platform interface {
	Reply(ctx context.Context, replyToken, text string) error
	GetMessageContent(ctx context.Context, messageID string) ([]byte, error)
}

// ImageDescriber turns image bytes into descriptive text; it always
// returns reply-able text.
type ImageDescriber interface {
	Describe(ctx context.Context, imageData []byte) string
}

// Dispatcher routes one inbound event through its pipeline. Events in a
// batch are processed sequentially and independently: a failure inside one
// event is contained and the next event still runs.
type Dispatcher struct {
	sessions  SessionResolver
	retriever ContextRetriever
	agent     AgentInvoker
	recorder  TurnRecorder
	platform  Platform
	vision    ImageDescriber
	dedup     *dedupCache
	logger    *slog.Logger
}

// NewDispatcher creates an event dispatcher. Pass a zero dedupWindow to
// disable webhook event id deduplication.
func NewDispatcher(log *slog.Logger, sessions SessionResolver, retriever ContextRetriever, agent AgentInvoker, recorder TurnRecorder, platform Platform, vision ImageDescriber, dedupWindow time.Duration) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	var dedup *dedupCache
	if dedupWindow > 0 {
		dedup = newDedupCache(dedupWindow)
	}
	return &Dispatcher{
		sessions:  sessions,
		retriever: retriever,
		agent:     agent,
		recorder:  recorder,
		platform:  platform,
		vision:    vision,
		dedup:     dedup,
		logger:    log.With(slog.String("component", "dispatcher")),
	}
}

// DispatchBatch processes the events of one webhook delivery in order.
func (d *Dispatcher) DispatchBatch(ctx context.Context, events []line.Event) {
	for _, event := range events {
		d.Dispatch(ctx, event)
	}
}

// Dispatch classifies one event and runs the matching pipeline. It never
// returns an error: per-event failures are logged and contained so the
// rest of the batch proceeds.
func (d *Dispatcher) Dispatch(ctx context.Context, event line.Event) Outcome {
	if event.Type != line.EventTypeMessage {
		return OutcomeIgnored
	}
	if d.dedup.Seen(event.WebhookEventID) {
		d.logger.Info("duplicate event skipped", slog.String("event_id", event.WebhookEventID))
		return OutcomeSkipped
	}

	identity := event.ConversationKey()
	if identity == "" {
		d.logger.Warn("message event without conversation identity skipped")
		return OutcomeSkipped
	}

	switch event.Message.Type {
	case line.MessageTypeText:
		d.handleText(ctx, event, identity)
		return OutcomeReplied
	case line.MessageTypeImage:
		d.handleImage(ctx, event, identity)
		return OutcomeReplied
	default:
		d.logger.Debug("unsupported message type skipped", slog.String("type", event.Message.Type))
		return OutcomeSkipped
	}
}

func (d *Dispatcher) handleText(ctx context.Context, event line.Event, identity string) {
	userMessage := event.Message.Text

	res := d.sessions.Resolve(ctx, identity)
	shortTerm := d.retriever.RecentTurns(ctx, identity, res.SessionID)
	longTerm := d.retriever.SearchFacts(ctx, identity, userMessage)

	reply := d.agent.Invoke(ctx, res.SessionID, userMessage, shortTerm.Text(), longTerm.Text())

	// The reply is already computed; a lost memory write must not fail it.
	if err := d.recorder.Record(ctx, identity, res.SessionID, userMessage, reply); err != nil {
		d.logger.Warn("turn persistence failed",
			slog.String("identity", identity),
			slog.Any("error", err),
		)
	}

	d.reply(ctx, event.ReplyToken, reply, identity)
}

func (d *Dispatcher) handleImage(ctx context.Context, event line.Event, identity string) {
	description := d.describeImage(ctx, event.Message.ID)

	res := d.sessions.Resolve(ctx, identity)
	if err := d.recorder.Record(ctx, identity, res.SessionID, imagePlaceholder, description); err != nil {
		d.logger.Warn("turn persistence failed",
			slog.String("identity", identity),
			slog.Any("error", err),
		)
	}

	d.reply(ctx, event.ReplyToken, description, identity)
}

func (d *Dispatcher) describeImage(ctx context.Context, messageID string) string {
	data, err := d.platform.GetMessageContent(ctx, messageID)
	if err != nil {
		d.logger.Error("image content fetch failed",
			slog.String("message_id", messageID),
			slog.Any("error", err),
		)
		return fmt.Sprintf("Sorry, I could not analyze the image: %v", err)
	}
	return d.vision.Describe(ctx, data)
}

func (d *Dispatcher) reply(ctx context.Context, replyToken, text, identity string) {
	if strings.TrimSpace(replyToken) == "" {
		return
	}
	// Fire and forget: reply failures are logged, never retried.
	if err := d.platform.Reply(ctx, replyToken, text); err != nil {
		d.logger.Error("reply delivery failed",
			slog.String("identity", identity),
			slog.Any("error", err),
		)
	}
}
