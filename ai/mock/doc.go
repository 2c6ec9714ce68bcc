// Package mock provides test doubles for the ai interfaces.
//
//	provider := mock.NewMockProvider()
//	gen := provider.(*mock.MockProvider).GetMockGenerator()
//	gen.Reply = "42"
//
// MockEmbedder returns deterministic unit vectors derived from an FNV hash of
// the text; MockGenerator returns a canned reply and records prompts.
package mock
