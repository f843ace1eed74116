package classifier_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/akhbar/internal/classifier"
)

func TestIsBreaking(t *testing.T) {
	keywords := []string{"عاجل", "الآن"}

	tests := []struct {
		name        string
		title       string
		description string
		keywords    []string
		want        bool
	}{
		{name: "keyword in title", title: "عاجل: زلزال", keywords: keywords, want: true},
		{name: "keyword in description", title: "زلزال", description: "يحدث الآن", keywords: keywords, want: true},
		{name: "no keyword", title: "زلزال", description: "أمس", keywords: keywords, want: false},
		{name: "empty keyword set", title: "عاجل", keywords: nil, want: false},
		{name: "blank keywords ignored", title: "عاجل", keywords: []string{" "}, want: false},
		{name: "case insensitive", title: "BREAKING now", keywords: []string{"Breaking"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, classifier.IsBreaking(tt.title, tt.description, tt.keywords))
		})
	}
}

func TestIsPolitical(t *testing.T) {
	require.True(t, classifier.IsPolitical("جلسة مجلس النواب", ""))
	require.True(t, classifier.IsPolitical("", "لقاء في عين التينة"))
	require.False(t, classifier.IsPolitical("طقس ماطر", "أمطار غزيرة"))
	require.False(t, classifier.IsPolitical("", ""))
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		title       string
		description string
		want        string
	}{
		{title: "الحكومة تجتمع", want: "سياسة"},
		{title: "ارتفاع أسعار النفط", want: "اقتصاد"},
		{title: "مباراة حاسمة", want: "رياضة"},
		{title: "ذكاء اصطناعي", description: "تطبيق ذكي", want: "تكنولوجيا"},
		{title: "افتتاح مستشفى", want: "صحة"},
		{title: "اكتشاف كوكب", want: "علوم"},
		{title: "طقس ماطر", want: classifier.DefaultCategory},
		// politics is declared before economy
		{title: "وزير الاقتصاد", description: "بورصة", want: "سياسة"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := classifier.Categorize(tt.title, tt.description)
			require.Equal(t, tt.want, got)
			require.True(t, classifier.IsKnownCategory(got))
		})
	}
}

func TestClassificationIsDeterministic(t *testing.T) {
	title, desc := "عاجل: رئيس الحكومة", "مباراة"
	for range 5 {
		require.Equal(t, "سياسة", classifier.Categorize(title, desc))
		require.True(t, classifier.IsPolitical(title, desc))
		require.True(t, classifier.IsBreaking(title, desc, []string{"عاجل"}))
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	cats := classifier.Categories()
	require.Len(t, cats, 6)
	cats[0].Keywords[0] = "mutated"
	require.Equal(t, "سياسة", classifier.Categorize("سياسة", ""))
	require.False(t, classifier.IsKnownCategory("طبخ"))
}
