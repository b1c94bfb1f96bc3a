package router

import (
	"regexp"
	"strings"
	"unicode"
)

// Pattern cascade compiled once at package init. Matching is first-hit-wins
// in the order the classifier checks them.

var greetingRE = regexp.MustCompile(`(?i)^(hey|hi|hello|good\s+(morning|afternoon|evening)|what'?s up|howdy|yo|sup|greetings|jarvis|thanks|thank you|goodbye|bye|good\s*night|see you|later)\b`)

var simpleQuestionRE = regexp.MustCompile(`(?i)^(what\s+time|what\s+day|what\s+date|how\s+are\s+you|who\s+are\s+you|what\s+is\s+your\s+name|tell\s+me\s+a\s+joke|what\s+can\s+you\s+do)\b`)

var codingRE = regexp.MustCompile(`(?i)\b(write\s+(a\s+)?(code|script|function|class|program|api)|debug\s+(this|my|the)|fix\s+(this|my|the)\s+(code|bug|error)|refactor|implement\s+\w+|unit\s+test|code\s+review|pull\s+request|regex\s+for|sql\s+query)\b`)

var complexCodeRE = regexp.MustCompile(`(?i)\b(architect|design\s+pattern|system\s+design|microservice|distributed|concurren|optimize\s+(the|this|my)|scalab|data\s+pipeline|machine\s+learning|neural\s+network)\b`)

var analysisRE = regexp.MustCompile(`(?i)\b(explain\s+(how|why|in\s+detail|the\s+difference)|analyze|compare\s+(and\s+contrast|these|the)|pros?\s+and\s+cons?|trade-?offs?|research\s+\w+|in[\s-]depth|comprehensive|thorough(ly)?)\b`)

var planningRE = regexp.MustCompile(`(?i)\b(plan\s+(for|out|a|the)|create\s+a\s+(roadmap|strategy|plan)|step[\s-]+by[\s-]+step|how\s+should\s+i\s+(approach|start|build)|help\s+me\s+(plan|organize|structure)|project\s+plan|action\s+plan|break(down|\s+it\s+down))\b`)

var premiumRequestRE = regexp.MustCompile(`(?i)\b(ask\s+claude|use\s+claude|claude[,:]?\s+help|send\s+to\s+claude)\b`)

// toolPattern maps a high-confidence utterance shape to a tool and its
// pre-parsed arguments. extract may fail; the classifier degrades to empty
// args instead of failing the whole classification.
type toolPattern struct {
	re      *regexp.Regexp
	tool    string
	extract func(match []string) (map[string]string, bool)
}

var toolPatterns = []toolPattern{
	{
		re:   regexp.MustCompile(`(?i)\bweather\s+(?:in|for|at)\s+(.+)`),
		tool: "weather.current",
		extract: func(m []string) (map[string]string, bool) {
			loc := strings.TrimSpace(m[1])
			if !hasWordChar(loc) {
				return nil, false
			}
			return map[string]string{"location": loc}, true
		},
	},
	{
		re:   regexp.MustCompile(`(?i)\b(?:what(?:'s| is) the weather|current weather|how(?:'s| is) the weather)\b`),
		tool: "weather.current",
		extract: func([]string) (map[string]string, bool) {
			return map[string]string{"location": "auto"}, true
		},
	},
	{
		re:   regexp.MustCompile(`(?i)\b(?:what(?:'s| is) on my (?:calendar|schedule)|today(?:'s)?\s+(?:calendar|schedule|events))\b`),
		tool: "calendar.today",
		extract: func([]string) (map[string]string, bool) {
			return map[string]string{}, true
		},
	},
	{
		re:   regexp.MustCompile(`(?i)\b(?:add|create|make)\s+(?:a\s+)?note[:\s]+(.+)`),
		tool: "notes.add",
		extract: func(m []string) (map[string]string, bool) {
			content := strings.TrimSpace(m[1])
			if !hasWordChar(content) {
				return nil, false
			}
			return map[string]string{"content": content, "tag": "general"}, true
		},
	},
	{
		re:   regexp.MustCompile(`(?i)\b(?:list|show|read)\s+(?:my\s+)?notes\b`),
		tool: "notes.list",
		extract: func([]string) (map[string]string, bool) {
			return map[string]string{}, true
		},
	},
	{
		re:   regexp.MustCompile(`(?i)\b(?:look\s+at\s+(?:this|that)|what\s+(?:do|can)\s+you\s+see|activate\s+(?:the\s+)?camera)\b`),
		tool: "vision.look",
		extract: func([]string) (map[string]string, bool) {
			return map[string]string{"prompt": "Describe what you see."}, true
		},
	},
	{
		re:   regexp.MustCompile(`(?i)\b(?:pi\s+status|check\s+(?:the\s+)?pi|raspberry\s*pi\s+health)\b`),
		tool: "pi.system_info",
		extract: func([]string) (map[string]string, bool) {
			return map[string]string{"check": "all"}, true
		},
	},
}

// hasWordChar reports whether s contains at least one letter or digit, the
// minimum for an extracted argument to be usable.
func hasWordChar(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	})
}
