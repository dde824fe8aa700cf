package quota

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	l, err := Open(path)
	require.NoError(t, err)
	return l, path
}

func TestPeekUnknownPhone(t *testing.T) {
	l, _ := openTestLedger(t)

	rec, err := l.Peek("13800000000")
	require.NoError(t, err)
	assert.Equal(t, Record{}, rec)
}

func TestConsumeCeilings(t *testing.T) {
	l, _ := openTestLedger(t)
	phone := "13800000000"

	for i := 1; i <= MaxTotal; i++ {
		rec, err := l.Consume(phone, false)
		require.NoError(t, err)
		assert.Equal(t, i, rec.Total)
		assert.Equal(t, 0, rec.Pro)
	}

	_, err := l.Consume(phone, false)
	assert.ErrorIs(t, err, ErrTotalExhausted)
	_, err = l.Consume(phone, true)
	assert.ErrorIs(t, err, ErrTotalExhausted)

	rec, err := l.Peek(phone)
	require.NoError(t, err)
	assert.Equal(t, Record{Total: MaxTotal}, rec)
}

func TestConsumeProCeiling(t *testing.T) {
	l, _ := openTestLedger(t)
	phone := "13800000000"

	rec, err := l.Consume(phone, true)
	require.NoError(t, err)
	assert.Equal(t, Record{Total: 1, Pro: 1}, rec)

	// Pro is capped below the total ceiling.
	_, err = l.Consume(phone, true)
	assert.ErrorIs(t, err, ErrProExhausted)

	// Daily uses still work until the total runs out.
	rec, err = l.Consume(phone, false)
	require.NoError(t, err)
	assert.Equal(t, Record{Total: 2, Pro: 1}, rec)
}

func TestLedgerSurvivesReopen(t *testing.T) {
	l, path := openTestLedger(t)
	phone := "13800000000"

	_, err := l.Consume(phone, true)
	require.NoError(t, err)
	_, err = l.Consume(phone, false)
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	rec, err := reopened.Peek(phone)
	require.NoError(t, err)
	assert.Equal(t, Record{Total: 2, Pro: 1}, rec)
}

func TestOpenRejectsCorruptLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestConcurrentConsumeLosesNoUpdates(t *testing.T) {
	l, _ := openTestLedger(t)

	phones := []string{"13800000001", "13800000002", "13800000003"}
	var wg sync.WaitGroup
	for _, phone := range phones {
		for i := 0; i < MaxTotal; i++ {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				l.Consume(p, false)
			}(phone)
		}
	}
	wg.Wait()

	for _, phone := range phones {
		rec, err := l.Peek(phone)
		require.NoError(t, err)
		assert.Equal(t, MaxTotal, rec.Total, phone)
	}
}
