package llm

// Message is a single turn in a chat conversation. Conversation history
// handed to Client.ChatWithMessages and the answer engine is expressed
// as a slice of these.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds per-request options for chat completions.
type ChatParams struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// MaxTokens caps the number of tokens generated. 0 means no cap.
	MaxTokens int

	// Temperature controls the randomness of the output.
	// Default is 0.7 if not specified.
	Temperature float32
}
