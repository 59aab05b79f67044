package registry

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"wrestlenews/internal/domain"
)

var builtinPromotions = map[string][]string{
	"WWE":     {"wwe", "raw", "smackdown", "nxt", "wrestlemania", "summerslam", "royal rumble", "survivor series", "world wrestling entertainment"},
	"AEW":     {"aew", "all elite wrestling", "aew dynamite", "aew collision", "aew rampage", "double or nothing", "full gear"},
	"NJPW":    {"njpw", "new japan", "new japan pro wrestling", "wrestle kingdom", "g1 climax"},
	"TNA":     {"tna", "impact wrestling", "total nonstop action"},
	"ROH":     {"roh", "ring of honor"},
	"CMLL":    {"cmll"},
	"AAA":     {"lucha libre aaa", "aaa wrestling", "triplemania"},
	"NWA":     {"nwa", "national wrestling alliance"},
	"STARDOM": {"stardom"},
}

// Promotions - открытый реестр тегов промоушенов с синонимами.
// Новые промоушены добавляются данными, а не кодом.
type Promotions struct {
	mu      sync.RWMutex
	aliases map[string]domain.Promotion
}

// NewPromotions создает реестр со встроенными промоушенами и дополнительными из конфигурации.
func NewPromotions(extra map[string][]string) *Promotions {
	p := &Promotions{aliases: make(map[string]domain.Promotion)}
	for name, aliases := range builtinPromotions {
		p.Add(name, aliases...)
	}
	for name, aliases := range extra {
		p.Add(name, aliases...)
	}
	return p
}

// Add регистрирует промоушен и его синонимы. Имя само является синонимом.
func (p *Promotions) Add(name string, aliases ...string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	tag := domain.Promotion(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aliases[normalizePhrase(name)] = tag
	for _, a := range aliases {
		if key := normalizePhrase(a); key != "" {
			p.aliases[key] = tag
		}
	}
}

// Canonical возвращает тег по имени или синониму.
func (p *Promotions) Canonical(raw string) (domain.Promotion, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tag, ok := p.aliases[normalizePhrase(raw)]
	return tag, ok
}

// Detect ищет упоминания промоушенов в тексте по целым словам и фразам.
func (p *Promotions) Detect(text string) []domain.Promotion {
	haystack := " " + normalizePhrase(text) + " "
	if strings.TrimSpace(haystack) == "" {
		return nil
	}
	found := make(map[domain.Promotion]struct{})
	p.mu.RLock()
	for alias, tag := range p.aliases {
		if strings.Contains(haystack, " "+alias+" ") {
			found[tag] = struct{}{}
		}
	}
	p.mu.RUnlock()
	out := make([]domain.Promotion, 0, len(found))
	for tag := range found {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known возвращает все канонические теги.
func (p *Promotions) Known() []domain.Promotion {
	p.mu.RLock()
	set := make(map[domain.Promotion]struct{})
	for _, tag := range p.aliases {
		set[tag] = struct{}{}
	}
	p.mu.RUnlock()
	out := make([]domain.Promotion, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// normalizePhrase приводит текст к нижнему регистру и оставляет только
// буквы и цифры, разделенные одиночными пробелами.
func normalizePhrase(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}
