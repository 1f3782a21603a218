package trigger

import "regexp"

// CategoryTableVersion identifies the matcher table below. Bump it whenever
// a category is added, removed, or reordered.
const CategoryTableVersion = 2

// Category is one entry of the ordered matcher table. Targeted categories
// only fire when the message has a resolved counterpart; untargeted ones
// fall back to the author as their own subject.
//
// Latin keywords are stored lowercase and matched against the lowercased
// content; CJK keywords are matched verbatim.
type Category struct {
	Name     string
	Reason   string
	Targeted bool
	Keywords []string
	Patterns []*regexp.Regexp
	Match    func(content, lowered string) bool
}

// categories is evaluated top to bottom; the first match supplies the reason.
// Order affects only the reason string, never the analyze decision.
var categories = []Category{
	{
		Name:     "negative_keyword",
		Reason:   "obvious negative keyword",
		Targeted: true,
		Keywords: []string{
			"useless", "worthless", "pathetic", "hopeless case",
			"garbage work", "waste of space",
			"廢物", "垃圾", "沒用的東西", "爛透了", "一無是處",
			"役立たず", "使えないやつ", "最低だな",
		},
	},
	{
		Name:     "judgmental_question",
		Reason:   "judgmental or leading question",
		Targeted: true,
		Keywords: []string{
			"你到底會不會", "你怎麼連這都不會", "你是不是不懂",
			"なんでできないの", "何回言えばわかる",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)why (can'?t|don'?t|won'?t) you (ever|just)`),
			regexp.MustCompile(`(?i)what('s| is) wrong with you`),
			regexp.MustCompile(`(?i)did you even (try|think|read|test)`),
			regexp.MustCompile(`(?i)how hard (is it|can it be) to`),
		},
	},
	{
		Name:     "condescending",
		Reason:   "condescending tone",
		Targeted: true,
		Keywords: []string{
			"let me explain this slowly", "as i already told you",
			"even a child could", "do i have to spell it out",
			"this is basic stuff",
			"這麼簡單都不懂", "我再講一次給你聽", "我說得還不夠清楚嗎",
			"簡単なことなのに", "何度も言わせないで",
		},
	},
	{
		Name:     "dismissive",
		Reason:   "dismissive language",
		Targeted: true,
		Keywords: []string{
			"nobody asked", "that's not my problem", "stop wasting my time",
			"i don't care what you think",
			"不關我的事", "少囉嗦", "別浪費我的時間", "懶得理你",
			"どうでもいい", "勝手にすれば", "知らないよ",
		},
	},
	{
		Name:     "public_humiliation",
		Reason:   "public humiliation",
		Targeted: true,
		Keywords: []string{
			"in front of everyone", "let everyone see",
			"讓大家看看你做的", "當著大家的面", "大家都知道你",
			"みんなの前で言ってやる", "みんな知ってるぞ",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)everyone (knows|can see) how (bad|sloppy|useless)`),
		},
	},
	{
		Name:     "competence_denial",
		Reason:   "competence denial",
		Targeted: true,
		Keywords: []string{
			"you're not qualified", "you are not qualified", "incompetent",
			"you never get anything done",
			"你根本不會", "你沒能力", "你不夠格", "什麼都做不好",
			"能力がない", "何もできないくせに", "向いてない",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)you (can'?t|cannot) do anything right`),
			regexp.MustCompile(`(?i)not capable of (doing|finishing|handling)`),
		},
	},
	{
		Name:     "aggressive_tone",
		Reason:   "aggressive tone",
		Targeted: true,
		Match:    aggressiveTone,
	},
	{
		Name:     "labeling",
		Reason:   "labeling as personality",
		Targeted: false,
		Keywords: []string{
			"that's just who you are", "typical of you",
			"你就是這種人", "你這個人就是", "你一向都這樣",
			"お前はそういう奴だ", "いつもそうだよな",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)you('re| are) (always|such a|so)( \w+)? (lazy|careless|sloppy|slow|difficult)`),
		},
	},
	{
		Name:     "escalation",
		Reason:   "escalation language",
		Targeted: false,
		Keywords: []string{
			"last warning", "final straw", "i'm done with you", "don't push me",
			"最後警告", "別逼我", "我警告你", "再試試看",
			"最後の警告だ", "いい加減にしろ",
		},
	},
	{
		Name:     "generalization",
		Reason:   "generalizing or implicit bias language",
		Targeted: false,
		Keywords: []string{
			"you people", "your kind", "people like you always",
			"你們這種人", "你們這些人",
			"お前らはみんな", "だからお前らは",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(all|you) (engineers|designers|managers|interns|juniors) (are|always)`),
			regexp.MustCompile(`你們[\p{Han}]{0,6}就是這樣`),
			regexp.MustCompile(`[\p{Han}]{1,6}就是[\p{Han}]{0,4}樣子`),
		},
	},
	{
		Name:     "insult",
		Reason:   "direct insult",
		Targeted: false,
		Keywords: []string{
			"idiot", "moron", "dumbass", "loser", "stupid",
			"白痴", "智障", "蠢貨", "笨蛋", "低能",
			"バカ", "馬鹿", "アホ", "間抜け",
		},
	},
	{
		Name:     "threat",
		Reason:   "threat or intimidation",
		Targeted: false,
		Keywords: []string{
			"you'll regret", "you will regret", "watch your back",
			"you're finished here",
			"你給我小心", "你會後悔", "你完蛋了", "我會讓你好看",
			"覚えてろ", "後悔させてやる", "ただじゃおかない",
		},
	},
	{
		Name:     "gender_bias",
		Reason:   "gender bias",
		Targeted: false,
		Keywords: []string{
			"like a girl", "man up", "women can't", "for a woman",
			"女人就是", "男人就該", "娘娘腔",
			"女のくせに", "男のくせに",
		},
	},
	{
		Name:     "age_bias",
		Reason:   "age bias",
		Targeted: false,
		Keywords: []string{
			"ok boomer", "too old for this job", "kids these days",
			"at your age you should",
			"年輕人就是", "倚老賣老", "老古板", "你這個年紀還",
			"最近の若い者は", "老害",
		},
	},
}

// Categories returns the matcher table in evaluation order.
func Categories() []Category {
	return categories
}
