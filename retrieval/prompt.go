package retrieval

import "strings"

// PromptTemplate is the fixed instruction sent to the language model.
const PromptTemplate = `You are a helpful AI assistant. Use ONLY the provided context to answer the question accurately.
If the context does not contain the answer, say that you do not know.

Context:
{context}

Question: {question}

Answer:`

// FallbackAnswer replaces an empty model reply.
const FallbackAnswer = "I could not find an answer to that question in the document."

// contextSeparator joins chunk texts in the context block.
const contextSeparator = "\n\n"

// BuildPrompt fills PromptTemplate. Placeholders inside context or question
// are not expanded again.
func BuildPrompt(context, question string) string {
	r := strings.NewReplacer("{context}", context, "{question}", question)
	return r.Replace(PromptTemplate)
}

// AssembleContext joins chunk texts in rank order with blank lines.
func AssembleContext(texts []string) string {
	return strings.Join(texts, contextSeparator)
}
