package trigger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine() *Engine {
	return NewEngine(zap.NewNop())
}

func TestClassifySelfMention(t *testing.T) {
	e := newTestEngine()

	// Content that would otherwise match must never fire against oneself.
	res := e.Classify("you people are all idiots", "u1", []string{"u1"}, "")
	assert.False(t, res.ShouldAnalyze)
	assert.Equal(t, "self-mention", res.Reason)

	res = e.Classify("廢物", "u1", nil, "u1")
	assert.False(t, res.ShouldAnalyze)
	assert.Equal(t, "self-mention", res.Reason)
}

func TestClassifyCounterpartResolution(t *testing.T) {
	e := newTestEngine()

	// Reply author wins over the mention list.
	res := e.Classify("idiot", "u1", []string{"u3"}, "u2")
	require.True(t, res.ShouldAnalyze)
	assert.Equal(t, "u2", res.TargetUserID)

	// First mention when there is no reply.
	res = e.Classify("idiot", "u1", []string{"u3", "u4"}, "")
	require.True(t, res.ShouldAnalyze)
	assert.Equal(t, "u3", res.TargetUserID)
}

func TestClassifyUntargetedFallsBackToAuthor(t *testing.T) {
	e := newTestEngine()

	res := e.Classify("you people are impossible to work with", "u1", nil, "")
	require.True(t, res.ShouldAnalyze)
	assert.Equal(t, "u1", res.TargetUserID)
	assert.Equal(t, "generalizing or implicit bias language", res.Reason)
}

func TestClassifyTargetedRequiresCounterpart(t *testing.T) {
	e := newTestEngine()

	// "useless" is a targeted category; with no counterpart it cannot fire.
	res := e.Classify("this tool is useless", "u1", nil, "")
	assert.False(t, res.ShouldAnalyze)

	res = e.Classify("you are useless", "u1", []string{"u2"}, "")
	require.True(t, res.ShouldAnalyze)
	assert.Equal(t, "obvious negative keyword", res.Reason)
	assert.Equal(t, "u2", res.TargetUserID)
}

func TestClassifyCategories(t *testing.T) {
	e := newTestEngine()

	cases := []struct {
		name    string
		content string
		reason  string
	}{
		{"negative keyword zh", "你就是個廢物", "obvious negative keyword"},
		{"negative keyword ja", "この役立たず", "obvious negative keyword"},
		{"judgmental question", "Why can't you ever finish on time?", "judgmental or leading question"},
		{"judgmental question zh", "你到底會不會寫程式", "judgmental or leading question"},
		{"condescending", "Let me explain this slowly so you get it", "condescending tone"},
		{"dismissive", "nobody asked for your opinion", "dismissive language"},
		{"public humiliation zh", "我要當著大家的面說清楚", "public humiliation"},
		{"competence denial", "You can't do anything right", "competence denial"},
		{"competence denial ja", "何もできないくせに", "competence denial"},
		{"labeling", "you're always so careless with the details", "labeling as personality"},
		{"escalation", "this is your last warning", "escalation language"},
		{"generalization en", "all engineers are lazy", "generalizing or implicit bias language"},
		{"insult", "what an idiot", "direct insult"},
		{"insult ja", "本当にバカだな", "direct insult"},
		{"threat", "you'll regret this", "threat or intimidation"},
		{"threat zh", "你給我小心一點", "threat or intimidation"},
		{"gender bias", "stop crying like a girl", "gender bias"},
		{"gender bias ja", "女のくせに生意気だ", "gender bias"},
		{"age bias", "ok boomer, move aside", "age bias"},
		{"age bias zh", "年輕人就是沉不住氣", "age bias"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := e.Classify(tc.content, "author", []string{"target"}, "")
			require.True(t, res.ShouldAnalyze, "content %q should trigger", tc.content)
			assert.Equal(t, tc.reason, res.Reason)
			assert.Equal(t, "target", res.TargetUserID)
		})
	}
}

func TestClassifyLatinCaseInsensitive(t *testing.T) {
	e := newTestEngine()

	res := e.Classify("You Are USELESS", "u1", []string{"u2"}, "")
	require.True(t, res.ShouldAnalyze)
	assert.Equal(t, "obvious negative keyword", res.Reason)
}

func TestClassifyAggressiveTone(t *testing.T) {
	e := newTestEngine()

	res := e.Classify("fix it now!!!", "u1", []string{"u2"}, "")
	require.True(t, res.ShouldAnalyze)
	assert.Equal(t, "aggressive tone", res.Reason)

	res = e.Classify("STOP BREAKING THE BUILD", "u1", []string{"u2"}, "")
	require.True(t, res.ShouldAnalyze)
	assert.Equal(t, "aggressive tone", res.Reason)

	// Short shouting and mixed case stay quiet.
	assert.False(t, e.Classify("STOP", "u1", []string{"u2"}, "").ShouldAnalyze)
	assert.False(t, e.Classify("Please STOP breaking the build", "u1", []string{"u2"}, "").ShouldAnalyze)
}

func TestClassifyNeutralContent(t *testing.T) {
	e := newTestEngine()

	for _, content := range []string{
		"thanks for the review, merging now",
		"lunch at noon?",
		"今天的會議改到三點",
		"よろしくお願いします",
	} {
		res := e.Classify(content, "u1", []string{"u2"}, "")
		assert.False(t, res.ShouldAnalyze, "content %q should not trigger", content)
	}
}

func TestGeneralizationScenario(t *testing.T) {
	e := newTestEngine()

	res := e.Classify("你們工程師就是這樣", "A", []string{"B"}, "")
	require.True(t, res.ShouldAnalyze)
	assert.Equal(t, "B", res.TargetUserID)
	assert.Contains(t, res.Reason, "bias")
}

func TestCategoryTable(t *testing.T) {
	cats := Categories()
	require.NotEmpty(t, cats)

	// Every category carries a reason and at least one matcher.
	for _, cat := range cats {
		assert.NotEmpty(t, cat.Name)
		assert.NotEmpty(t, cat.Reason)
		hasMatcher := len(cat.Keywords) > 0 || len(cat.Patterns) > 0 || cat.Match != nil
		assert.True(t, hasMatcher, "category %s has no matcher", cat.Name)
	}

	// Latin keywords are stored lowercase so the single lowercased-content
	// comparison stays correct.
	for _, cat := range cats {
		for _, kw := range cat.Keywords {
			assert.Equal(t, strings.ToLower(kw), kw, "category %s keyword %q not lowercase", cat.Name, kw)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage("hello there"))
	assert.Equal(t, "zh", DetectLanguage("你們工程師就是這樣"))
	assert.Equal(t, "ja", DetectLanguage("何もできないくせに"))
	assert.Equal(t, "ja", DetectLanguage("バカ"))
}
