package topics

import "fmt"

// LanguageInstruction returns the response-language instruction appended to
// the base system message. Unknown codes fall back to English.
func LanguageInstruction(lang string) string {
	switch lang {
	case "zh":
		return "请用中文回答"
	case "ms":
		return "Sila jawab dalam Bahasa Malaysia"
	default:
		return "Please respond to the user in English"
	}
}

// WelcomeMessage returns the localized assistant greeting seeded into every
// new session at sequence 2
func WelcomeMessage(lang string) string {
	switch lang {
	case "zh":
		return "你好！我是数学导师，你的虚拟数学助手。今天我能帮你解决什么问题？"
	case "ms":
		return "Hai! Saya MathMentor, pembantu matematik maya anda. Bagaimana saya boleh membantu anda hari ini?"
	default:
		return "Hi! I'm MathMentor, your virtual math assistant. How can I help you today?"
	}
}

// FallbackReply is returned when the model produced no usable content
func FallbackReply(lang string) string {
	switch lang {
	case "zh":
		return "抱歉，我没有理解你的意思，可以换个说法再试一次吗？"
	case "ms":
		return "Maaf, saya tidak faham maksud anda. Boleh cuba sekali lagi?"
	default:
		return "Sorry, I didn't quite understand that. Could you rephrase and try again?"
	}
}

// DegradedReply substitutes for the narrated answer when the follow-up model
// call fails after a tool side effect was already applied
func DegradedReply(lang string) string {
	switch lang {
	case "zh":
		return "你的进度已经记录。我们继续吧——你想接着学习哪一部分？"
	case "ms":
		return "Kemajuan anda telah direkodkan. Mari kita teruskan - bahagian mana yang anda ingin pelajari seterusnya?"
	default:
		return "Your progress has been recorded. Let's keep going - which part would you like to work on next?"
	}
}

// NewTopicSuggestion builds the localized reply for a topic-switch suggestion,
// with one link seeding the suggested topic and one starting a blank session.
func NewTopicSuggestion(suggestedTopicID, lang string) string {
	name := Name(suggestedTopicID, lang)
	topicLink := fmt.Sprintf("/new-session?topic=%s", suggestedTopicID)
	blankLink := "/new-session"

	switch lang {
	case "zh":
		return fmt.Sprintf("看起来你想学习新的主题：%s。建议开启一个新的会话来学习它。\n\n[开始学习 %s](%s)\n[开始空白会话](%s)",
			name, name, topicLink, blankLink)
	case "ms":
		return fmt.Sprintf("Nampaknya anda ingin mempelajari topik baharu: %s. Mulakan sesi baharu untuk mempelajarinya.\n\n[Mula belajar %s](%s)\n[Mula sesi kosong](%s)",
			name, name, topicLink, blankLink)
	default:
		return fmt.Sprintf("It looks like you want to explore a new topic: %s. Start a fresh session to learn it.\n\n[Start learning %s](%s)\n[Start a blank session](%s)",
			name, name, topicLink, blankLink)
	}
}
