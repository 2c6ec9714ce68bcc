package retrieval

import "github.com/poiesic/docqa/core"

// Stage is a state in the question lifecycle. A failure in any stage is
// reported through Monitor.Fail and StageError with the last stage reached.
type Stage string

const (
	StageReceived         Stage = "received"
	StageEmbedded         Stage = "embedded"
	StageRetrieved        Stage = "retrieved"
	StageContextAssembled Stage = "context_assembled"
	StageAnswered         Stage = "answered"
)

// Monitor provides hooks to observe a question moving through the
// orchestrator. Exactly one of Finish or Fail is called per question.
type Monitor interface {
	Start(documentID, question string)
	AfterEmbedding(dimension int)
	AfterRetrieval(handles []int, distances []float32)
	AfterContextAssembly(context string, resolved int)
	Finish(answer *core.Answer)
	Fail(stage Stage, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                    {}
func (n *noopMonitor) AfterEmbedding(_ int)                 {}
func (n *noopMonitor) AfterRetrieval(_ []int, _ []float32)  {}
func (n *noopMonitor) AfterContextAssembly(_ string, _ int) {}
func (n *noopMonitor) Finish(_ *core.Answer)                {}
func (n *noopMonitor) Fail(_ Stage, _ error)                {}
