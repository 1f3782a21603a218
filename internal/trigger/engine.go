package trigger

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Result is the outcome of classifying a single message.
type Result struct {
	ShouldAnalyze bool
	Reason        string
	TargetUserID  string
}

// Engine is the stateless rule-based trigger classifier. It decides whether
// a message deserves deeper analysis and against whom, from text alone.
type Engine struct {
	categories []Category
	logger     *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		categories: categories,
		logger:     logger,
	}
}

// Classify runs the ordered category table against the message content.
// The counterpart is the replied-to author if any, otherwise the first
// mentioned user. A message whose resolved counterpart is its own author is
// never analyzed.
func (e *Engine) Classify(content, authorID string, mentionedUserIDs []string, replyToAuthorID string) Result {
	target := replyToAuthorID
	if target == "" && len(mentionedUserIDs) > 0 {
		target = mentionedUserIDs[0]
	}
	if target != "" && target == authorID {
		return Result{ShouldAnalyze: false, Reason: "self-mention"}
	}

	lowered := strings.ToLower(content)
	for _, cat := range e.categories {
		if cat.Targeted && target == "" {
			continue
		}
		if !cat.matches(content, lowered) {
			continue
		}
		subject := target
		if subject == "" {
			subject = authorID
		}
		e.logger.Debug("trigger matched",
			zap.String("category", cat.Name),
			zap.String("author_id", authorID),
			zap.String("target_id", subject))
		return Result{ShouldAnalyze: true, Reason: cat.Reason, TargetUserID: subject}
	}

	return Result{ShouldAnalyze: false}
}

func (c *Category) matches(content, lowered string) bool {
	for _, kw := range c.Keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	for _, p := range c.Patterns {
		if p.MatchString(content) {
			return true
		}
	}
	if c.Match != nil {
		return c.Match(content, lowered)
	}
	return false
}

// aggressiveTone fires on three or more exclamation marks (half or full
// width), or on an all-caps message longer than ten letters.
func aggressiveTone(content, _ string) bool {
	if strings.Count(content, "!")+strings.Count(content, "！") >= 3 {
		return true
	}
	letters, upper := 0, 0
	for _, r := range content {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return letters > 10 && upper > 0
}

// DetectLanguage returns a coarse script hint ("zh", "ja", or "en") for the
// analyzer prompt. Kana presence wins over Han since Japanese text mixes both.
func DetectLanguage(content string) string {
	han := false
	for _, r := range content {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			return "ja"
		}
		if unicode.In(r, unicode.Han) {
			han = true
		}
	}
	if han {
		return "zh"
	}
	return "en"
}
