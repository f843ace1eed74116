package aggregator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/akhbar/internal/aggregator"
	"github.com/Adda-Baaj/akhbar/internal/domain"
)

func TestTitleKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Breaking: Event!", want: "breaking event"},
		{in: "عاجل: انفجار في بيروت!", want: "عاجل انفجار في بيروت"},
		{in: "snake_case stays", want: "snake_case stays"},
		{in: "«اقتباس»، ؟", want: "اقتباس "},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, aggregator.TitleKey(tt.in))
		})
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	in := []domain.Headline{
		{ID: "1", Title: "Breaking: Event!"},
		{ID: "2", Title: "Other"},
		{ID: "3", Title: "breaking event"},
		{ID: "4", Title: "other"},
	}

	got := aggregator.Dedupe(in)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].ID)
	require.Equal(t, "2", got[1].ID)
}
