package slips

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusDraft, StatusGenerated},
		{StatusGenerated, StatusSent},
		{StatusGenerated, StatusAmended},
		{StatusSent, StatusFiled},
		{StatusSent, StatusAmended},
		{StatusFiled, StatusAmended},
	}
	for _, tc := range allowed {
		require.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
		require.NoError(t, ValidateTransition(tc.from, tc.to))
	}

	denied := []struct{ from, to Status }{
		{StatusDraft, StatusSent},
		{StatusDraft, StatusFiled},
		{StatusGenerated, StatusFiled},
		{StatusSent, StatusGenerated},
		{StatusFiled, StatusSent},
		{StatusAmended, StatusGenerated},
		{StatusAmended, StatusSent},
		{StatusAmended, StatusFiled},
		{StatusAmended, StatusDraft},
	}
	for _, tc := range denied {
		require.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
		require.ErrorIs(t, ValidateTransition(tc.from, tc.to), ErrInvalidTransition)
	}
}

func TestCanAmend(t *testing.T) {
	require.True(t, CanAmend(&TaxSlip{Status: StatusSent}))
	require.True(t, CanAmend(&TaxSlip{Status: StatusFiled}))
	require.False(t, CanAmend(&TaxSlip{Status: StatusDraft}))
	require.False(t, CanAmend(&TaxSlip{Status: StatusGenerated}))
	require.False(t, CanAmend(&TaxSlip{Status: StatusAmended}))
	require.False(t, CanAmend(nil))
}

func TestCanCancel(t *testing.T) {
	require.True(t, CanCancel(&TaxSlip{Status: StatusGenerated, SlipType: TypeOriginal}))
	require.True(t, CanCancel(&TaxSlip{Status: StatusGenerated, SlipType: TypeAmended}))
	require.False(t, CanCancel(&TaxSlip{Status: StatusGenerated, SlipType: TypeCancelled}))
	require.False(t, CanCancel(&TaxSlip{Status: StatusDraft, SlipType: TypeOriginal}))
	require.False(t, CanCancel(&TaxSlip{Status: StatusSent, SlipType: TypeOriginal}))
	require.False(t, CanCancel(nil))
}

func TestFormatSlipNumber(t *testing.T) {
	require.Equal(t, "RL24-2025-000001", FormatSlipNumber(2025, 1))
	require.Equal(t, "RL24-2025-000042", FormatSlipNumber(2025, 42))
	require.Equal(t, "RL24-2024-123456", FormatSlipNumber(2024, 123456))
}

func TestBoxALabel(t *testing.T) {
	require.Equal(t, "Relevé original", TypeOriginal.BoxALabel())
	require.Equal(t, "Relevé modifié", TypeAmended.BoxALabel())
	require.Equal(t, "Relevé annulé", TypeCancelled.BoxALabel())
}

func TestNormalise(t *testing.T) {
	st, err := NormaliseStatus(" draft ")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, st)
	_, err = NormaliseStatus("bogus")
	require.Error(t, err)

	tp, err := NormaliseType("amended")
	require.NoError(t, err)
	require.Equal(t, TypeAmended, tp)
	_, err = NormaliseType("")
	require.Error(t, err)
}
