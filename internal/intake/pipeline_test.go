package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/services"
	"finbot/internal/storage/memory"
)

var now = time.Date(2024, 3, 13, 9, 30, 0, 0, time.FixedZone("ICT", 7*3600))

type fakeParser struct {
	result  *Result
	err     error
	calls   int
	input   Input
	history []core.Transaction
	today   core.Date
	onParse func()
}

func (f *fakeParser) Parse(_ context.Context, in Input, history []core.Transaction, today core.Date) (*Result, error) {
	if f.onParse != nil {
		f.onParse()
	}
	f.calls++
	f.input = in
	f.history = history
	f.today = today
	return f.result, f.err
}

type fakeAdvisor struct {
	answer  string
	err     error
	history []core.Transaction
}

func (f *fakeAdvisor) Advise(_ context.Context, history []core.Transaction) (string, error) {
	f.history = history
	return f.answer, f.err
}

func newPipeline(parser Parser, advisor Advisor) (*Pipeline, *ledger.Store) {
	store := ledger.New(memory.New(), nil)
	svc := services.NewLedgerService(store, nil, nil, func() time.Time { return now }, nil, nil)
	return NewPipeline(parser, advisor, svc, store, nil, nil), store
}

func contents(msgs []core.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestPipeline_RecordsPositiveProposals(t *testing.T) {
	ctx := context.Background()
	parser := &fakeParser{result: &Result{Transactions: []ParsedTransaction{
		{Amount: 30000, Category: "Ăn uống", Description: "Ăn phở", Type: core.Expense, Person: "Nam", Location: "Quán Bà Hằng"},
		{Amount: -10, Description: "bad"},
		{Amount: 0, Description: "zero"},
		{Amount: 5000000, Category: "Lương", Description: "", Date: "2024-03-01", Type: "income"},
	}}}
	p, store := newPipeline(parser, nil)

	reply, err := p.Handle(ctx, Input{Text: "  ăn phở 30k với nam  "})
	require.NoError(t, err)

	require.Len(t, reply.Transactions, 2)
	first, second := reply.Transactions[0], reply.Transactions[1]
	assert.Equal(t, int64(30000), first.Amount)
	assert.Equal(t, "2024-03-13", first.Date.String())
	assert.Equal(t, core.Confirmed, first.Status)
	assert.Equal(t, core.Income, second.Type)
	assert.Equal(t, DefaultDescription, second.Description)
	assert.Equal(t, "2024-03-01", second.Date.String())
	assert.Equal(t, reply.Transactions, store.Transactions())

	require.Len(t, reply.Messages, 3)
	assert.Equal(t, core.RoleUser, reply.Messages[0].Role)
	assert.Equal(t, "ăn phở 30k với nam", reply.Messages[0].Content)
	assert.Equal(t, "✅ Ghi nhận: **30.000 ₫** - _Ăn phở_ 📍 Quán Bà Hằng 👤 Nam (Ăn uống)", reply.Messages[1].Content)
	assert.Equal(t, first.ID, reply.Messages[1].RelatedTransactionID)
	assert.Equal(t, second.ID, reply.Messages[2].RelatedTransactionID)
	assert.Equal(t, now.UnixMilli(), reply.Messages[1].Timestamp)
	seen := make(map[string]bool)
	for _, m := range reply.Messages {
		require.NotEmpty(t, m.ID)
		assert.False(t, seen[m.ID], "duplicate message id %s", m.ID)
		seen[m.ID] = true
	}

	assert.Equal(t, reply.Messages, store.ChatHistory())
	assert.Equal(t, "ăn phở 30k với nam", parser.input.Text)
	assert.Equal(t, "2024-03-13", parser.today.String())
}

func TestPipeline_FallbackRules(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "all proposals invalid keeps silent",
			result: &Result{Transactions: []ParsedTransaction{{Amount: -10}}},
			want:   []string{"hi"},
		},
		{
			name:   "null transactions and no answer",
			result: &Result{},
			want:   []string{"hi", MsgFallback},
		},
		{
			name:   "empty transactions and no answer",
			result: &Result{Transactions: []ParsedTransaction{}},
			want:   []string{"hi", MsgFallback},
		},
		{
			name:   "answer only",
			result: &Result{AnalysisAnswer: "Tháng này bạn tiêu 2 triệu."},
			want:   []string{"hi", "Tháng này bạn tiêu 2 triệu."},
		},
		{
			name:   "nil result",
			result: nil,
			want:   []string{"hi", MsgProcessingFail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store := newPipeline(&fakeParser{result: tt.result}, nil)
			reply, err := p.Handle(context.Background(), Input{Text: "hi"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, contents(reply.Messages))
			assert.Empty(t, store.Transactions())
		})
	}
}

func TestPipeline_ParserFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	parser := &fakeParser{err: errors.New("401 unauthorized")}
	p, store := newPipeline(parser, nil)
	store.Add(ctx, core.Transaction{ID: "x", Amount: 1, Date: core.NewDate(2024, 1, 1), Type: core.Expense, Status: core.Confirmed})

	reply, err := p.Handle(ctx, Input{Text: "cafe 20k"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe 20k", MsgConnectionFail}, contents(reply.Messages))
	assert.Len(t, store.Transactions(), 1)

	unwired, _ := newPipeline(nil, nil)
	reply, err = unwired.Handle(ctx, Input{Text: "cafe"})
	require.NoError(t, err)
	assert.Equal(t, MsgConnectionFail, reply.Messages[1].Content)
}

func TestPipeline_HistoryContext(t *testing.T) {
	ctx := context.Background()
	parser := &fakeParser{result: &Result{AnalysisAnswer: "ok"}}
	p, store := newPipeline(parser, nil)

	for i := 0; i < 120; i++ {
		store.Add(ctx, core.Transaction{ID: core.NormalizeID(i), Amount: int64(i + 1), Date: core.NewDate(2024, 1, 1),
			Type: core.Expense, Status: core.Confirmed})
	}
	store.Add(ctx, core.Transaction{ID: "p", Date: core.NewDate(2024, 1, 1), Type: core.Expense, Status: core.Pending})

	_, err := p.Handle(ctx, Input{Text: "tháng này tiêu bao nhiêu?"})
	require.NoError(t, err)
	require.Len(t, parser.history, HistoryLimit)
	assert.Equal(t, core.ID("20"), parser.history[0].ID)
	assert.Equal(t, core.ID("119"), parser.history[HistoryLimit-1].ID)
}

func TestPipeline_AudioAndEmptyInput(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(&fakeParser{result: &Result{AnalysisAnswer: "ok"}}, nil)

	_, err := p.Handle(ctx, Input{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyInput)

	reply, err := p.Handle(ctx, Input{Audio: []byte{1, 2, 3}, MIMEType: "audio/ogg"})
	require.NoError(t, err)
	assert.Equal(t, MsgUserAudio, reply.Messages[0].Content)
	assert.Equal(t, "data:audio/ogg;base64,AQID", reply.Messages[0].AudioBase64)

	reply, err = p.Handle(ctx, Input{Image: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, MsgUserImage, reply.Messages[0].Content)
}

func TestPipeline_ProcessPending(t *testing.T) {
	ctx := context.Background()
	pending := core.Transaction{ID: "tg-1", Description: "cafe highland 45k", Date: core.NewDate(2024, 3, 10),
		Type: core.Expense, Status: core.Pending, Category: "Khác"}

	t.Run("confirms with first proposal", func(t *testing.T) {
		parser := &fakeParser{result: &Result{Transactions: []ParsedTransaction{
			{Amount: 45000, Category: "Ăn uống", Description: "Cà phê", Type: core.Expense, Location: "Highland"},
			{Amount: 1, Description: "ignored"},
		}}}
		p, store := newPipeline(parser, nil)
		store.Add(ctx, pending)

		got, err := p.ProcessPending(ctx, "tg-1")
		require.NoError(t, err)
		assert.Equal(t, core.Confirmed, got.Status)
		assert.Equal(t, int64(45000), got.Amount)
		assert.Equal(t, "Cà phê", got.Description)
		assert.Equal(t, "2024-03-10", got.Date.String())
		assert.Empty(t, got.Location)
		assert.Equal(t, []core.Transaction{got}, store.Transactions())

		assert.Equal(t, "cafe highland 45k", parser.input.Text)
		assert.Nil(t, parser.history)
	})

	t.Run("parsed date wins", func(t *testing.T) {
		parser := &fakeParser{result: &Result{Transactions: []ParsedTransaction{
			{Amount: 45000, Description: "Cà phê", Date: "2024-03-09", Type: core.Expense},
		}}}
		p, store := newPipeline(parser, nil)
		store.Add(ctx, pending)

		got, err := p.ProcessPending(ctx, "tg-1")
		require.NoError(t, err)
		assert.Equal(t, "2024-03-09", got.Date.String())
	})

	t.Run("nothing parsed", func(t *testing.T) {
		p, store := newPipeline(&fakeParser{result: &Result{AnalysisAnswer: "?"}}, nil)
		store.Add(ctx, pending)

		_, err := p.ProcessPending(ctx, "tg-1")
		assert.ErrorIs(t, err, ErrNothingParsed)
		assert.Equal(t, []core.Transaction{pending}, store.Transactions())
	})

	t.Run("not pending", func(t *testing.T) {
		p, store := newPipeline(&fakeParser{}, nil)
		confirmed := pending
		confirmed.Status = core.Confirmed
		store.Add(ctx, confirmed)

		_, err := p.ProcessPending(ctx, "tg-1")
		assert.ErrorIs(t, err, ErrNotPending)
	})

	t.Run("deleted while parsing", func(t *testing.T) {
		parser := &fakeParser{result: &Result{Transactions: []ParsedTransaction{
			{Amount: 45000, Description: "Cà phê", Type: core.Expense},
		}}}
		p, store := newPipeline(parser, nil)
		store.Add(ctx, pending)
		parser.onParse = func() {
			_, err := store.Remove(ctx, "tg-1")
			require.NoError(t, err)
		}

		_, err := p.ProcessPending(ctx, "tg-1")
		assert.ErrorIs(t, err, ledger.ErrNotFound)
		assert.Empty(t, store.Transactions())
	})

	t.Run("confirmed while parsing", func(t *testing.T) {
		parser := &fakeParser{result: &Result{Transactions: []ParsedTransaction{
			{Amount: 45000, Description: "Cà phê", Type: core.Expense},
		}}}
		p, store := newPipeline(parser, nil)
		store.Add(ctx, pending)
		done := pending
		done.Amount = 50000
		done.Status = core.Confirmed
		parser.onParse = func() {
			require.NoError(t, store.Replace(ctx, done))
		}

		_, err := p.ProcessPending(ctx, "tg-1")
		assert.ErrorIs(t, err, ErrNotPending)
		assert.Equal(t, []core.Transaction{done}, store.Transactions())
	})

	t.Run("unknown id", func(t *testing.T) {
		p, _ := newPipeline(&fakeParser{}, nil)
		_, err := p.ProcessPending(ctx, "nope")
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestPipeline_Advice(t *testing.T) {
	ctx := context.Background()

	adv := &fakeAdvisor{answer: "Bạn hay ăn ngoài."}
	p, store := newPipeline(nil, adv)
	for i := 0; i < 70; i++ {
		store.Add(ctx, core.Transaction{ID: core.NormalizeID(i), Amount: 1, Date: core.NewDate(2024, 1, 1),
			Type: core.Expense, Status: core.Confirmed})
	}
	assert.Equal(t, "Bạn hay ăn ngoài.", p.Advice(ctx))
	assert.Len(t, adv.history, AdviceLimit)

	p, _ = newPipeline(nil, &fakeAdvisor{err: errors.New("quota")})
	assert.Equal(t, MsgAdviceFail, p.Advice(ctx))

	p, _ = newPipeline(nil, &fakeAdvisor{answer: "  "})
	assert.Equal(t, MsgAdviceEmpty, p.Advice(ctx))

	p, _ = newPipeline(nil, nil)
	assert.Equal(t, MsgAdviceFail, p.Advice(ctx))
}
