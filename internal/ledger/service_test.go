package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryLedger struct {
	nextID   int64
	journals map[int64]Journal
	accounts map[int64]AccountState
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		journals: make(map[int64]Journal),
		accounts: make(map[int64]AccountState),
	}
}

func (m *memoryLedger) activate(ids ...int64) {
	for _, id := range ids {
		m.accounts[id] = AccountState{Active: true}
	}
}

func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryLedger) GetJournal(_ context.Context, tenantID uuid.UUID, id int64) (Journal, error) {
	j, ok := m.journals[id]
	if !ok || j.TenantID != tenantID {
		return Journal{}, ErrJournalNotFound
	}
	return j, nil
}

func (m *memoryLedger) ListJournals(_ context.Context, tenantID uuid.UUID, limit int) ([]Journal, error) {
	var out []Journal
	for _, j := range m.journals {
		if j.TenantID == tenantID {
			out = append(out, j)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryLedger) AccountStates(_ context.Context, _ uuid.UUID, ids []int64) (map[int64]AccountState, error) {
	out := make(map[int64]AccountState, len(ids))
	for _, id := range ids {
		if state, ok := m.accounts[id]; ok {
			out[id] = state
		}
	}
	return out, nil
}

func (m *memoryLedger) InsertJournal(_ context.Context, j Journal) (int64, error) {
	for _, existing := range m.journals {
		if existing.TenantID != j.TenantID {
			continue
		}
		if existing.Number == j.Number {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateNumber, j.Number)
		}
		if existing.SourceModule == j.SourceModule && existing.SourceID == j.SourceID {
			return 0, fmt.Errorf("%w: %s", ErrSourceAlreadyLinked, j.Number)
		}
	}
	m.nextID++
	j.ID = m.nextID
	m.journals[j.ID] = j
	return j.ID, nil
}

func (m *memoryLedger) InsertJournalLines(_ context.Context, journalID int64, lines []JournalLine) error {
	j := m.journals[journalID]
	j.Lines = lines
	m.journals[journalID] = j
	return nil
}

func (m *memoryLedger) GetJournalForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Journal, error) {
	return m.GetJournal(ctx, tenantID, id)
}

func (m *memoryLedger) MarkVoid(_ context.Context, tenantID uuid.UUID, id, reversalID int64) error {
	j, ok := m.journals[id]
	if !ok || j.TenantID != tenantID {
		return ErrJournalNotFound
	}
	j.Status = StatusVoid
	j.ReversedByID = &reversalID
	m.journals[id] = j
	return nil
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func postingInput(tenantID uuid.UUID, number string, lines ...PostingLineInput) PostingInput {
	return PostingInput{
		TenantID:     tenantID,
		Number:       number,
		Date:         time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		SourceModule: "ledger:manual",
		SourceID:     uuid.NewSHA1(tenantID, []byte("manual:"+number)),
		Lines:        lines,
	}
}

func TestValidate(t *testing.T) {
	tenantID := uuid.New()

	t.Run("too few lines", func(t *testing.T) {
		in := postingInput(tenantID, "JV-1", PostingLineInput{AccountID: 1, Debit: money("10")})
		require.ErrorIs(t, in.Validate(), ErrTooFewLines)
	})

	t.Run("line with both sides", func(t *testing.T) {
		in := postingInput(tenantID, "JV-1",
			PostingLineInput{AccountID: 1, Debit: money("10"), Credit: money("10")},
			PostingLineInput{AccountID: 2, Credit: money("10")},
		)
		require.Error(t, in.Validate())
	})

	t.Run("line with neither side", func(t *testing.T) {
		in := postingInput(tenantID, "JV-1",
			PostingLineInput{AccountID: 1},
			PostingLineInput{AccountID: 2, Credit: money("10")},
		)
		require.Error(t, in.Validate())
	})

	t.Run("imbalance carries the amount", func(t *testing.T) {
		in := postingInput(tenantID, "JV-1",
			PostingLineInput{AccountID: 1, Debit: money("100")},
			PostingLineInput{AccountID: 2, Credit: money("99.99")},
		)
		err := in.Validate()
		require.ErrorIs(t, err, ErrUnbalanced)
		require.Contains(t, err.Error(), "0.01")
	})

	t.Run("balanced", func(t *testing.T) {
		in := postingInput(tenantID, "JV-1",
			PostingLineInput{AccountID: 1, Debit: money("100")},
			PostingLineInput{AccountID: 2, Credit: money("100")},
		)
		require.NoError(t, in.Validate())
	})
}

func TestPost(t *testing.T) {
	repo := newMemoryLedger()
	repo.activate(1, 2)
	svc := NewService(repo, nil)
	tenantID := uuid.New()

	posted, err := svc.Post(context.Background(), postingInput(tenantID, "JV-1",
		PostingLineInput{AccountID: 1, Debit: money("250.50")},
		PostingLineInput{AccountID: 2, Credit: money("250.50")},
	))
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.Len(t, posted.Lines, 2)

	_, err = svc.Post(context.Background(), postingInput(tenantID, "JV-1",
		PostingLineInput{AccountID: 1, Debit: money("1")},
		PostingLineInput{AccountID: 2, Credit: money("1")},
	))
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestPostRejectsInactiveAccount(t *testing.T) {
	repo := newMemoryLedger()
	repo.activate(1)
	repo.accounts[2] = AccountState{Active: false}
	svc := NewService(repo, nil)

	_, err := svc.Post(context.Background(), postingInput(uuid.New(), "JV-1",
		PostingLineInput{AccountID: 1, Debit: money("10")},
		PostingLineInput{AccountID: 2, Credit: money("10")},
	))
	require.ErrorIs(t, err, ErrInactiveAccount)

	_, err = svc.Post(context.Background(), postingInput(uuid.New(), "JV-2",
		PostingLineInput{AccountID: 1, Debit: money("10")},
		PostingLineInput{AccountID: 99, Credit: money("10")},
	))
	require.ErrorIs(t, err, ErrInactiveAccount)
}

func TestPostReplaySignal(t *testing.T) {
	repo := newMemoryLedger()
	repo.activate(1, 2)
	svc := NewService(repo, nil)
	tenantID := uuid.New()
	sourceID := uuid.New()

	first := postingInput(tenantID, "INV-1-S",
		PostingLineInput{AccountID: 1, Debit: money("10")},
		PostingLineInput{AccountID: 2, Credit: money("10")},
	)
	first.SourceModule = "trading:invoice"
	first.SourceID = sourceID
	_, err := svc.Post(context.Background(), first)
	require.NoError(t, err)

	second := first
	second.Number = "INV-1-S2"
	_, err = svc.Post(context.Background(), second)
	require.True(t, ReplayOf(err))
}

func TestReverse(t *testing.T) {
	repo := newMemoryLedger()
	repo.activate(1, 2)
	svc := NewService(repo, nil)
	tenantID := uuid.New()

	posted, err := svc.Post(context.Background(), postingInput(tenantID, "JV-1",
		PostingLineInput{AccountID: 1, Debit: money("75")},
		PostingLineInput{AccountID: 2, Credit: money("75")},
	))
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), tenantID, posted.ID, "")
	require.NoError(t, err)
	require.Equal(t, "JV-1-REV", reversal.Number)
	require.Len(t, reversal.Lines, 2)
	require.True(t, reversal.Lines[0].Credit.Equal(money("75")))
	require.True(t, reversal.Lines[0].Debit.IsZero())
	require.True(t, reversal.Lines[1].Debit.Equal(money("75")))

	original, err := svc.Get(context.Background(), tenantID, posted.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, original.Status)
	require.NotNil(t, original.ReversedByID)
	require.Equal(t, reversal.ID, *original.ReversedByID)

	_, err = svc.Reverse(context.Background(), tenantID, posted.ID, "")
	require.ErrorIs(t, err, ErrAlreadyVoided)
}

// foldActivity sums debits and credits per account the way the repository
// aggregation does: every journal except DRAFT counts.
func (m *memoryLedger) foldActivity(tenantID uuid.UUID) map[int64]Activity {
	out := make(map[int64]Activity)
	for _, j := range m.journals {
		if j.TenantID != tenantID || j.Status == StatusDraft {
			continue
		}
		for _, l := range j.Lines {
			act := out[l.AccountID]
			act.Debit = act.Debit.Add(l.Debit)
			act.Credit = act.Credit.Add(l.Credit)
			out[l.AccountID] = act
		}
	}
	return out
}

func TestReverseActivityNetsToZero(t *testing.T) {
	repo := newMemoryLedger()
	repo.activate(1, 2)
	svc := NewService(repo, nil)
	tenantID := uuid.New()

	posted, err := svc.Post(context.Background(), postingInput(tenantID, "JV-1",
		PostingLineInput{AccountID: 1, Debit: money("75")},
		PostingLineInput{AccountID: 2, Credit: money("75")},
	))
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), tenantID, posted.ID, "")
	require.NoError(t, err)

	activity := repo.foldActivity(tenantID)
	for accountID, act := range activity {
		net := act.Debit.Sub(act.Credit)
		require.True(t, net.IsZero(), "account %d nets to %s", accountID, net)
	}
}

func TestPostNotifiesObserver(t *testing.T) {
	repo := newMemoryLedger()
	repo.activate(1, 2)
	svc := NewService(repo, nil)
	tenantID := uuid.New()

	var sources []string
	ObservePosted(func(source string) {
		sources = append(sources, source)
	})
	defer ObservePosted(nil)

	posted, err := svc.Post(context.Background(), postingInput(tenantID, "JV-1",
		PostingLineInput{AccountID: 1, Debit: money("10")},
		PostingLineInput{AccountID: 2, Credit: money("10")},
	))
	require.NoError(t, err)
	_, err = svc.Reverse(context.Background(), tenantID, posted.ID, "")
	require.NoError(t, err)
	require.Equal(t, []string{"ledger:manual", "ledger:manual:REVERSAL"}, sources)
}

func TestReverseMissingJournal(t *testing.T) {
	svc := NewService(newMemoryLedger(), nil)
	_, err := svc.Reverse(context.Background(), uuid.New(), 42, "")
	require.ErrorIs(t, err, ErrJournalNotFound)
}
