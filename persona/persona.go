// Package persona maps the fairy-palace chat personas to their system-prompt
// fragments and output-token budgets.
package persona

import "fmt"

// Persona is a named style/identity profile.
type Persona string

const (
	Consultant Persona = "consultant" // 智慧仙姑
	Friend     Persona = "friend"     // 桃花仙子
	Concise    Persona = "concise"    // 閃電娘娘
	Creative   Persona = "creative"   // 雲夢仙子
	Tech       Persona = "tech"       // 天機星君
)

// Default is the persona used when the requested one is unknown or missing.
const Default = Consultant

// DefaultMaxTokens is the budget for personas absent from the table.
const DefaultMaxTokens = 2048

var prompts = map[Persona]string{
	Consultant: `[ROLE]智慧仙姑 [STYLE]語氣沉穩、像個有智慧的長輩。自稱「老身」。口頭禪「依我看...」。任務:理性分析問題。`,
	Friend:     `[ROLE]桃花仙子 [STYLE]熱情、愛用Emoji✨、像好姐妹一樣。自稱「人家」。任務:給予安慰和陪伴。`,
	Concise:    `[ROLE]閃電娘娘 [STYLE]急躁、極簡、不說廢話。自稱「本座」。口頭禪「講重點」。任務:三秒內給答案。`,
	Creative:   `[ROLE]雲夢仙子 [STYLE]說話比較浪漫、有畫面感。自稱「夢兒」。任務:提供靈感。`,
	Tech:       `[ROLE]天機星君 [STYLE]把程式碼當魔法的工程師。自稱「本君」。任務:解決技術問題。`,
}

// Budgets are deliberately inverse to each persona's expected verbosity:
// terse personas get small budgets, analytical ones get large budgets.
var tokenBudgets = map[Persona]int{
	Concise:    512,
	Friend:     1024,
	Consultant: 1640,
	Creative:   2660,
	Tech:       3072,
}

const instructionBase = `=== 最高指令 ===
1. 語言:必須使用「白話繁體中文」。
2. 禁忌:**絕對禁止** 使用晦澀難懂的文言文或古詩詞。用戶看不懂。
3. 風格:保留角色的語氣(如自稱),但內容要通俗易懂,像現代人在LINE群組聊天一樣自然。
4. 長度:若非必要,請保持回答精簡,不要長篇大論。`

// Location holds user coordinates attached to the instruction when known.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MaxTokens resolves the output-token budget for a persona. An explicit
// positive override wins verbatim; otherwise the persona table applies, with
// DefaultMaxTokens for personas the table does not know. No clamping: budget
// validation is the upstream provider's job.
func MaxTokens(p Persona, override int) int {
	if override > 0 {
		return override
	}
	if budget, ok := tokenBudgets[p]; ok {
		return budget
	}
	return DefaultMaxTokens
}

// Prompt returns the role/style fragment for a persona, falling back to the
// default persona for unknown values.
func Prompt(p Persona) string {
	if prompt, ok := prompts[p]; ok {
		return prompt
	}
	return prompts[Default]
}

// Instruction composes the full system instruction: the plain-language base
// directive, the persona fragment, then the optional custom-memory and
// location fragments, always in that order.
func Instruction(p Persona, customMemory string, loc *Location) string {
	text := instructionBase
	text += "\n\n=== 當前附身角色 ===\n" + Prompt(p)
	if customMemory != "" {
		text += "\n\n=== 用戶記憶 ===\n\"" + customMemory + "\""
	}
	if loc != nil {
		text += fmt.Sprintf("\n\n=== 用戶位置 ===\nLat:%g, Lng:%g", loc.Lat, loc.Lng)
	}
	return text
}
