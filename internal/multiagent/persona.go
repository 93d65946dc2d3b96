// Package multiagent holds the persona roster and the sequential
// deliberation protocol that turns several persona opinions into one answer.
package multiagent

import (
	"errors"
	"fmt"
	"strings"
)

// Persona is a named behavioral profile used to condition prompts.
type Persona struct {
	Name        string `yaml:"name"`
	Emoji       string `yaml:"emoji"`
	Role        string `yaml:"role"`
	Personality string `yaml:"personality"`
}

// Display returns the name as shown to users, prefixed with the emoji.
func (p Persona) Display() string {
	if p.Emoji == "" {
		return p.Name
	}
	return p.Emoji + " " + p.Name
}

// Preamble is the persona description placed at the top of its prompts.
func (p Persona) Preamble() string {
	return fmt.Sprintf("أنت %s.\nدورك: %s\nشخصيتك: %s", p.Name, p.Role, p.Personality)
}

// DefaultRoster returns the built-in five personas. The last one
// synthesizes collaboration rounds and the first opens discussions.
func DefaultRoster() []Persona {
	return []Persona{
		{Name: "أحمد", Emoji: "🔍", Role: "باحث أول، خبير في البحث عن مصادر المعلومات والبيانات المفتوحة", Personality: "دقيق ومنهجي، يحب الأدلة والإحصاءات"},
		{Name: "سارة", Emoji: "🤖", Role: "محللة بيانات، متخصصة في تحليل البيانات وأتمتة جمعها", Personality: "تقنية ومبدعة، تقترح حلولاً برمجية"},
		{Name: "خالد", Emoji: "🌐", Role: "باحث ويب، خبير في استخراج المعلومات من الإنترنت والـ APIs", Personality: "عملي ومباشر، يركز على النتائج السريعة"},
		{Name: "منى", Emoji: "📊", Role: "استراتيجية، متخصصة في استراتيجيات البحث وتنظيم المعلومات", Personality: "تفكر بشكل كبير، ترى الصورة الكاملة"},
		{Name: "يوسف", Emoji: "⚡", Role: "مطور أتمتة، متخصص في بناء أدوات أتمتة البحث", Personality: "مبتكر وحماسي، يقترح تقنيات جديدة"},
	}
}

// ValidateRoster checks that every persona has a unique, non-blank name.
func ValidateRoster(roster []Persona) error {
	if len(roster) == 0 {
		return ErrEmptyRoster
	}
	var errs []error
	seen := make(map[string]bool, len(roster))
	for i, p := range roster {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("multiagent: persona %d: name is required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("multiagent: duplicate persona %q", name))
		}
		seen[name] = true
	}
	return errors.Join(errs...)
}
