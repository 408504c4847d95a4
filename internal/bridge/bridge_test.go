package bridge

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCallBacklogParsesSignal(t *testing.T) {
	orig := BacklogCommand
	defer func() { BacklogCommand = orig }()
	BacklogCommand = []string{"sh", "-c", `echo '{"signal":"execute_plan:group-G3"}'`}

	result, err := CallBacklog(context.Background(), discardLogger(), BacklogBridgeArgs{
		SessionID: "s1", TaskID: "t1", GroupID: "g2", ExitStatus: "completed",
	})
	if err != nil {
		t.Fatalf("CallBacklog: %v", err)
	}
	if result.Signal != "execute_plan:group-G3" {
		t.Fatalf("expected parsed signal, got %q", result.Signal)
	}
}

func TestCallBacklogNonZeroExitIsError(t *testing.T) {
	orig := BacklogCommand
	defer func() { BacklogCommand = orig }()
	BacklogCommand = []string{"sh", "-c", "exit 1"}

	_, err := CallBacklog(context.Background(), discardLogger(), BacklogBridgeArgs{})
	if err == nil {
		t.Fatal("expected error on non-zero exit")
	}
}

func TestCallBacklogMalformedJSONIsError(t *testing.T) {
	orig := BacklogCommand
	defer func() { BacklogCommand = orig }()
	BacklogCommand = []string{"sh", "-c", "echo not-json"}

	_, err := CallBacklog(context.Background(), discardLogger(), BacklogBridgeArgs{})
	if err == nil {
		t.Fatal("expected error on malformed JSON")
	}
}

func TestExtractReasoningMissingBinaryDoesNotPanic(t *testing.T) {
	orig := ReasoningExtractorCommand
	defer func() { ReasoningExtractorCommand = orig }()
	ReasoningExtractorCommand = []string{"definitely-not-a-real-binary-xyz"}

	ExtractReasoning(discardLogger(), ReasoningExtractorArgs{TaskID: "t1", Outcome: "success"})
}

func TestExtractReasoningStartsDetached(t *testing.T) {
	orig := ReasoningExtractorCommand
	defer func() { ReasoningExtractorCommand = orig }()
	ReasoningExtractorCommand = []string{"sh", "-c", "cat > /dev/null"}

	ExtractReasoning(discardLogger(), ReasoningExtractorArgs{TaskID: "t1", Outcome: "success", Trajectory: "step 1\nstep 2\n"})
}
