package intake

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/log"
	"finbot/internal/metrics"

	"github.com/google/uuid"
)

const (
	// HistoryLimit bounds the context sent with every parse request.
	HistoryLimit = 100
	// AdviceLimit bounds the transactions sent to the advisor.
	AdviceLimit = 60
)

// Ledger is the part of the ledger service the pipeline writes through.
type Ledger interface {
	Now() time.Time
	Transactions() []core.Transaction
	Find(id core.ID) (core.Transaction, bool)
	AddBatch(ctx context.Context, txs []core.Transaction)
	Confirm(ctx context.Context, id core.ID, parsed core.Transaction) (core.Transaction, error)
}

// ChatLog stores the conversation.
type ChatLog interface {
	AppendChat(ctx context.Context, msgs ...core.ChatMessage)
}

// Reply is what one submission produced: every chat message appended, user
// message first, and the transactions recorded.
type Reply struct {
	Messages     []core.ChatMessage `json:"messages"`
	Transactions []core.Transaction `json:"transactions"`
}

type Pipeline struct {
	parser  Parser
	advisor Advisor
	ledger  Ledger
	chat    ChatLog
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewPipeline wires the pipeline. A nil parser or advisor makes every call
// answer with the connection failure message.
func NewPipeline(parser Parser, advisor Advisor, l Ledger, chat ChatLog, logger *log.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		parser:  parser,
		advisor: advisor,
		ledger:  l,
		chat:    chat,
		logger:  logger.WithComponent(log.ComponentIntake),
		metrics: m,
	}
}

func (p *Pipeline) newMessage(role core.Role, content string) core.ChatMessage {
	return core.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: p.ledger.Now().UnixMilli(),
	}
}

func (p *Pipeline) userMessage(in Input) core.ChatMessage {
	switch {
	case strings.TrimSpace(in.Text) != "":
		return p.newMessage(core.RoleUser, in.Text)
	case len(in.Audio) > 0:
		msg := p.newMessage(core.RoleUser, MsgUserAudio)
		mime := in.MIMEType
		if mime == "" {
			mime = "audio/webm"
		}
		msg.AudioBase64 = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(in.Audio)
		return msg
	default:
		return p.newMessage(core.RoleUser, MsgUserImage)
	}
}

// Handle records the user message, asks the parser, and turns its answer into
// ledger entries and bot messages. Parser failures never change the ledger.
func (p *Pipeline) Handle(ctx context.Context, in Input) (Reply, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Empty() {
		return Reply{}, ErrEmptyInput
	}

	reply := Reply{Messages: []core.ChatMessage{p.userMessage(in)}}
	now := p.ledger.Now()
	today := core.DateOf(now)

	result, err := p.parse(ctx, in, core.Recent(p.ledger.Transactions(), HistoryLimit), today)
	switch {
	case err != nil:
		p.logger.ErrorContext(ctx, "Parser call failed", log.FieldOperation, log.OpParse, log.FieldError, err)
		reply.Messages = append(reply.Messages, p.newMessage(core.RoleBot, MsgConnectionFail))
	case result == nil:
		p.logger.WarnContext(ctx, "Parser returned no result", log.FieldOperation, log.OpParse)
		reply.Messages = append(reply.Messages, p.newMessage(core.RoleBot, MsgProcessingFail))
	default:
		p.apply(ctx, result, today, &reply)
	}

	p.chat.AppendChat(ctx, reply.Messages...)
	return reply, nil
}

func (p *Pipeline) parse(ctx context.Context, in Input, history []core.Transaction, today core.Date) (*Result, error) {
	if p.parser == nil {
		p.metrics.RecordIntake("unavailable", 0)
		return nil, ErrParserUnavailable
	}
	start := time.Now()
	result, err := p.parser.Parse(ctx, in, history, today)
	switch {
	case err != nil:
		p.metrics.RecordIntake("error", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrParserUnavailable, err)
	case result == nil:
		p.metrics.RecordIntake("empty", time.Since(start))
	default:
		p.metrics.RecordIntake("ok", time.Since(start))
	}
	return result, nil
}

func (p *Pipeline) apply(ctx context.Context, result *Result, today core.Date, reply *Reply) {
	answer := strings.TrimSpace(result.AnalysisAnswer)
	if answer != "" {
		reply.Messages = append(reply.Messages, p.newMessage(core.RoleBot, answer))
	}

	for _, parsed := range result.Transactions {
		tx, ok := toTransaction(parsed, today)
		if !ok {
			p.logger.DebugContext(ctx, "Dropping non-positive proposal", log.FieldAmount, parsed.Amount)
			continue
		}
		tx.ID = core.ID(uuid.NewString())
		reply.Transactions = append(reply.Transactions, tx)

		msg := p.newMessage(core.RoleBot, ConfirmationText(tx))
		msg.RelatedTransactionID = tx.ID
		reply.Messages = append(reply.Messages, msg)
	}
	if len(reply.Transactions) > 0 {
		p.ledger.AddBatch(ctx, reply.Transactions)
	}

	// The fallback depends on what the parser sent, not on what survived
	// the amount filter.
	if answer == "" && len(result.Transactions) == 0 {
		reply.Messages = append(reply.Messages, p.newMessage(core.RoleBot, MsgFallback))
	}
}

// toTransaction applies defaults to a proposal. Amounts are rounded to whole
// dong first, so anything below 0.5 counts as zero. It reports false for
// proposals whose rounded amount is not positive.
func toTransaction(parsed ParsedTransaction, today core.Date) (core.Transaction, bool) {
	amount := int64(math.Round(parsed.Amount))
	if amount <= 0 {
		return core.Transaction{}, false
	}
	date, err := core.ParseDate(parsed.Date)
	if err != nil {
		date = today
	}
	description := strings.TrimSpace(parsed.Description)
	if description == "" {
		description = DefaultDescription
	}
	typ := core.TxType(strings.ToUpper(string(parsed.Type)))
	if !typ.Valid() {
		typ = core.Expense
	}
	tx := core.Transaction{
		Amount:      amount,
		Category:    parsed.Category,
		Description: description,
		Date:        date,
		Type:        typ,
		Status:      core.Confirmed,
		Person:      strings.TrimSpace(parsed.Person),
		Location:    strings.TrimSpace(parsed.Location),
	}
	return tx.Normalize(), true
}

// ProcessPending re-parses a PENDING transaction's description without
// history and confirms it with the first proposal.
func (p *Pipeline) ProcessPending(ctx context.Context, id core.ID) (core.Transaction, error) {
	pending, ok := p.ledger.Find(id)
	if !ok {
		return core.Transaction{}, fmt.Errorf("process %s: %w", id, ledger.ErrNotFound)
	}
	if !pending.IsPending() {
		return core.Transaction{}, fmt.Errorf("process %s: %w", id, ErrNotPending)
	}

	result, err := p.parse(ctx, Input{Text: pending.Description}, nil, core.DateOf(p.ledger.Now()))
	if err != nil {
		return core.Transaction{}, err
	}
	if result == nil || len(result.Transactions) == 0 {
		return core.Transaction{}, ErrNothingParsed
	}

	first := result.Transactions[0]
	// A zero date keeps the pending item's own date.
	parsed, ok := toTransaction(first, core.Date{})
	if !ok {
		return core.Transaction{}, ErrNothingParsed
	}
	parsed.Description = strings.TrimSpace(first.Description)
	if parsed.Description == "" {
		parsed.Description = pending.Description
	}

	confirmed, err := p.ledger.Confirm(ctx, id, parsed)
	if err != nil {
		return core.Transaction{}, err
	}
	p.logger.InfoContext(ctx, "Pending transaction confirmed",
		log.FieldTxID, confirmed.ID.String(), log.FieldAmount, confirmed.Amount)
	return confirmed, nil
}

// Advice asks the advisor about the most recent confirmed transactions and
// always returns text suitable for display.
func (p *Pipeline) Advice(ctx context.Context) string {
	if p.advisor == nil {
		return MsgAdviceFail
	}
	answer, err := p.advisor.Advise(ctx, core.Recent(p.ledger.Transactions(), AdviceLimit))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.ErrorContext(ctx, "Advisor call failed", log.FieldError, err)
		}
		return MsgAdviceFail
	}
	if strings.TrimSpace(answer) == "" {
		return MsgAdviceEmpty
	}
	return answer
}
