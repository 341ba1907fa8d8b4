package persona

// DefaultID is the persona used when a widget does not ask for one.
const DefaultID = "agrobot"

// Persona captures the assistant attributes exposed to the frontend and the
// fixed instructions sent with every completion request.
type Persona struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Title             string   `json:"title"`
	Model             string   `json:"model,omitempty"`
	SystemInstruction string   `json:"-"`
	WelcomeMessage    string   `json:"welcomeMessage"`
	FallbackReply     string   `json:"-"` // 模型返回空文本时使用
	FailureReply      string   `json:"-"` // 调用失败时使用
	Placeholder       string   `json:"placeholder,omitempty"`
	Expertise         []string `json:"expertise,omitempty"`
}

// Seed provides the built-in assistant personas.
func Seed() []Persona {
	return []Persona{
		{
			ID:    DefaultID,
			Name:  "AgroBot",
			Title: "Smart Irrigation AI",
			SystemInstruction: "You are AgroBot, a helpful assistant for Agromic Industry Pvt Ltd. " +
				"You specialize in drip irrigation and mini sprinklers. " +
				"Answer farmers questions about water-efficient farming, crop types, and system benefits. " +
				"Keep answers simple, practical, and helpful. " +
				"If the question is not about farming or irrigation, politely steer them back to Agromic products.",
			WelcomeMessage: "Hello! I am AgroBot, your irrigation assistant. How can I help you save water today?",
			FallbackReply:  "I'm sorry, I couldn't process that. Please try again.",
			FailureReply:   "Service is currently busy. Please try again in a moment.",
			Placeholder:    "How much water can I save?",
			Expertise:      []string{"drip irrigation", "mini sprinklers", "water-efficient farming", "crop types"},
		},
	}
}
