// Package classifier holds the keyword heuristics applied to headline text.
//
// Every function is pure and total: it matches case-insensitive substrings
// of "title + space + description" against static tables.
package classifier

import "strings"

// DefaultCategory is returned when no category keyword matches.
const DefaultCategory = "عام"

// AllCategories is the search sentinel meaning "no category filter".
const AllCategories = "الكل"

// Category pairs a category name with the keywords that select it.
type Category struct {
	Name     string
	Keywords []string
}

// categories is ordered: the first declared category wins when text matches several.
var categories = []Category{
	{Name: "سياسة", Keywords: []string{"سياسة", "حكومة", "رئيس", "وزير", "برلمان", "انتخابات", "دبلوماسية"}},
	{Name: "اقتصاد", Keywords: []string{"اقتصاد", "تجارة", "استثمار", "أسعار", "تضخم", "بورصة", "شركة"}},
	{Name: "رياضة", Keywords: []string{"رياضة", "كرة", "مباراة", "بطولة", "فريق", "لاعب"}},
	{Name: "تكنولوجيا", Keywords: []string{"تكنولوجيا", "إنترنت", "ذكي", "رقمي", "تقني", "برمجة"}},
	{Name: "صحة", Keywords: []string{"صحة", "طب", "علاج", "مرض", "وباء", "طبيب", "مستشفى"}},
	{Name: "علوم", Keywords: []string{"علم", "اكتشاف", "بحث", "دراسة", "تجربة", "عالم"}},
}

// politicalKeywords covers government, institutions and Lebanese political figures and parties.
var politicalKeywords = []string{
	"حكومة", "وزير", "رئيس", "برلمان", "مجلس", "انتخابات", "حزب", "سياسة", "دبلوماسية",
	"ميقاتي", "عون", "بري", "جعجع", "جنبلاط", "الحريري", "فرنجية", "باسيل", "أبو فاعور",
	"حزب الله", "القوات", "التيار", "الكتائب", "المردة", "التقدمي", "المستقبل",
	"مجلس الوزراء", "مجلس النواب", "قصر بعبدا", "بيت الوسط", "عين التينة",
	"دولة", "حكم", "قرار", "قانون", "اتفاق", "معاهدة", "أزمة سياسية", "حل سياسي",
}

// Text joins title and description the way every classifier sees them.
func Text(title, description string) string {
	return strings.ToLower(title + " " + description)
}

// IsBreaking reports whether any of the source's breaking keywords occurs in the text.
// An empty keyword set never matches.
func IsBreaking(title, description string, keywords []string) bool {
	return containsAny(Text(title, description), keywords)
}

// IsPolitical reports whether the text mentions any political keyword.
func IsPolitical(title, description string) bool {
	return containsAny(Text(title, description), politicalKeywords)
}

// Categorize returns the first category whose keywords occur in the text, or DefaultCategory.
func Categorize(title, description string) string {
	text := Text(title, description)
	for _, c := range categories {
		if containsAny(text, c.Keywords) {
			return c.Name
		}
	}
	return DefaultCategory
}

// Categories returns the ordered category table.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = Category{Name: c.Name, Keywords: append([]string(nil), c.Keywords...)}
	}
	return out
}

// IsKnownCategory reports whether name is a table category or the default.
func IsKnownCategory(name string) bool {
	if name == DefaultCategory {
		return true
	}
	for _, c := range categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
