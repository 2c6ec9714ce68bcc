// Package openai implements ai.AIProvider over OpenAI-compatible HTTP APIs
// using langchaingo. Embeddings typically come from a local Ollama or TEI
// server and answers from a hosted chat model such as Groq.
//
//	cfg := ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithGeneratorToken(os.Getenv("GROQ_API_KEY")),
//	)
//	provider, err := openai.NewProvider(cfg)
package openai
