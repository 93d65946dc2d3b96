package agent

import "testing"

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()
	c := NewClassifier(ClassifierConfig{})

	tests := []struct {
		name string
		text string
		want Route
	}{
		{"greeting", "مرحباً، كيف حالك؟", RouteDirect},
		{"search arabic", "ابحث عن آخر أخبار الذكاء الاصطناعي", RouteSearch},
		{"search english", "Search the latest Go release", RouteSearch},
		{"code", "اكتب كود بايثون يحسب المتوسط", RouteCode},
		{"shell", "نفذ الأمر ls في الطرفية", RouteShell},
		{"complex", "ضع خطة لتعلم الإحصاء", RouteComplex},
		{"code wins over search", "ابحث ثم اكتب كود يرتب النتائج", RouteCode},
		{"search wins over complex", "ابحث وقارن بين المصادر", RouteSearch},
		{"case folded", "PYTHON please", RouteCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := c.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassifier_CustomKeywords(t *testing.T) {
	t.Parallel()
	c := NewClassifier(ClassifierConfig{Search: []string{"  Google  ", ""}})

	if got := c.Classify("google this"); got != RouteSearch {
		t.Errorf("Classify = %q, want search", got)
	}
	if got := c.Classify("ابحث عن شيء"); got != RouteDirect {
		t.Errorf("custom list should replace defaults, got %q", got)
	}
}
